// Package dataset reads the labelled training CSV and derives the held-out split and the
// per-feature distribution summaries served to the UI.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/Skufu/heartrisk/internal/domain"
)

// TargetColumn holds the 0/1 label.
const TargetColumn = "target"

// Row is one labelled example.
type Row struct {
	Features domain.FeatureVector
	Target   int
}

// Dataset is the parsed training file.
type Dataset struct {
	Rows []Row
}

// Load reads a dataset CSV from path.
func Load(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	ds, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("read dataset %s: %w", path, err)
	}
	return ds, nil
}

// Read parses a dataset CSV. The header must contain every schema field plus target;
// extra columns are ignored. Values may be written as floats ("63.0") but must be integral.
// Numeric and categorical values are not range checked.
func Read(r io.Reader) (*Dataset, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty dataset")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.TrimSpace(h)] = i
	}

	required := append(domain.FieldNames(), TargetColumn)
	var missing []string
	for _, name := range required {
		if _, ok := index[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing columns in dataset: %s", strings.Join(missing, ", "))
	}

	ds := &Dataset{}
	line := 1
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		vals := make(map[string]int, len(required))
		for _, name := range required {
			v, err := parseInt(rec[index[name]])
			if err != nil {
				return nil, fmt.Errorf("line %d column %s: %w", line, name, err)
			}
			vals[name] = v
		}

		// Training rows may carry categories the request form never offers (ca=4 in the
		// public dataset); only binary columns are checked.
		fv, err := domain.FeatureVectorFromValues(vals)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		for _, name := range domain.FieldsOfKind(domain.Binary) {
			if v := vals[name]; v != 0 && v != 1 {
				return nil, fmt.Errorf("line %d: %s must be 0 or 1, got %d", line, name, v)
			}
		}

		target := vals[TargetColumn]
		if target != 0 && target != 1 {
			return nil, fmt.Errorf("line %d: target must be 0 or 1, got %d", line, target)
		}
		ds.Rows = append(ds.Rows, Row{Features: fv, Target: target})
	}

	if len(ds.Rows) == 0 {
		return nil, errors.New("dataset has no rows")
	}
	return ds, nil
}

func parseInt(s string) (int, error) {
	s = strings.TrimSpace(s)
	if v, err := strconv.Atoi(s); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	if f != float64(int(f)) {
		return 0, fmt.Errorf("non-integer value %q", s)
	}
	return int(f), nil
}

// Split partitions rows into train and test sets, stratified by target. Each class
// contributes ceil(testFraction * classSize) rows to the test set after a shuffle seeded
// with seed, so the split is identical across runs.
func (d *Dataset) Split(testFraction float64, seed int64) (train, test []Row, err error) {
	if testFraction <= 0 || testFraction >= 1 {
		return nil, nil, fmt.Errorf("test fraction must be in (0, 1), got %v", testFraction)
	}

	byClass := map[int][]int{}
	for i, r := range d.Rows {
		byClass[r.Target] = append(byClass[r.Target], i)
	}
	classes := make([]int, 0, len(byClass))
	for c := range byClass {
		classes = append(classes, c)
	}
	sort.Ints(classes)

	rng := rand.New(rand.NewSource(seed))
	isTest := make([]bool, len(d.Rows))
	for _, c := range classes {
		idx := byClass[c]
		rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })

		n := ceilFraction(len(idx), testFraction)
		if n >= len(idx) && len(idx) > 1 {
			n = len(idx) - 1
		}
		for _, i := range idx[:n] {
			isTest[i] = true
		}
	}

	for i, r := range d.Rows {
		if isTest[i] {
			test = append(test, r)
		} else {
			train = append(train, r)
		}
	}
	if len(train) == 0 || len(test) == 0 {
		return nil, nil, fmt.Errorf("dataset of %d rows is too small to split", len(d.Rows))
	}
	return train, test, nil
}

func ceilFraction(n int, frac float64) int {
	return int(math.Ceil(float64(n)*frac - 1e-9))
}
