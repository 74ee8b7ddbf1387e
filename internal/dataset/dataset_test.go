package dataset

import (
	"fmt"
	"math"
	"strings"
	"testing"
)

const header = "age,sex,cp,trtbps,chol,fbs,restecg,thalachh,exng,ca,target\n"

func synthetic(n int) string {
	var b strings.Builder
	b.WriteString(header)
	for i := 0; i < n; i++ {
		target := i % 3 % 2
		fmt.Fprintf(&b, "%d,%d,%d,%d,%d,%d,%d,%d,%d,%d,%d\n",
			30+i%50, i%2, i%4, 100+i%80, 150+i%300, i%2, i%3, 90+i%100, (i+1)%2, i%4, target)
	}
	return b.String()
}

func TestRead_Valid(t *testing.T) {
	ds, err := Read(strings.NewReader(synthetic(10)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ds.Rows) != 10 {
		t.Fatalf("expected 10 rows, got %d", len(ds.Rows))
	}
	if ds.Rows[3].Features.Age != 33 || ds.Rows[3].Features.CP != 3 {
		t.Fatalf("unexpected row: %+v", ds.Rows[3])
	}
}

func TestRead_ExtraColumnsAndFloats(t *testing.T) {
	in := "oldpeak,age,sex,cp,trtbps,chol,fbs,restecg,thalachh,exng,ca,target\n" +
		"2.3,63.0,1,3,145,233,1,0,150,0,0,1\n"
	ds, err := Read(strings.NewReader(in))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ds.Rows[0].Features.Age != 63 || ds.Rows[0].Target != 1 {
		t.Fatalf("unexpected row: %+v", ds.Rows[0])
	}
}

func TestRead_CategoryOutsideForm(t *testing.T) {
	in := "age,sex,cp,trtbps,chol,fbs,restecg,thalachh,exng,oldpeak,slp,caa,ca,thall,target\n" +
		"63,1,3,145,233,1,0,150,0,2.3,0,0,0,1,1\n" +
		"58,0,0,100,248,0,0,122,0,1.0,1,4,4,2,1\n"
	ds, err := Read(strings.NewReader(in))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ds.Rows) != 2 || ds.Rows[1].Features.CA != 4 {
		t.Fatalf("expected ca=4 row to be kept, got %+v", ds.Rows)
	}
}

func TestRead_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", "empty dataset"},
		{"missing column", "age,sex\n1,0\n", "missing columns"},
		{"no rows", header, "no rows"},
		{"bad target", header + "50,1,0,120,200,0,0,150,0,0,2\n", "target must be 0 or 1"},
		{"binary out of range", header + "50,2,0,120,200,0,0,150,0,0,1\n", "sex must be 0 or 1"},
		{"fractional", header + "50.5,1,0,120,200,0,0,150,0,0,1\n", "non-integer"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Read(strings.NewReader(tc.in))
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestSplit_StratifiedAndDeterministic(t *testing.T) {
	ds, err := Read(strings.NewReader(synthetic(100)))
	if err != nil {
		t.Fatal(err)
	}

	positives := 0
	for _, r := range ds.Rows {
		positives += r.Target
	}
	negatives := len(ds.Rows) - positives

	train, test, err := ds.Split(0.2, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(train)+len(test) != len(ds.Rows) {
		t.Fatalf("split lost rows: %d + %d", len(train), len(test))
	}

	wantTest := int(math.Ceil(float64(positives)*0.2-1e-9)) + int(math.Ceil(float64(negatives)*0.2-1e-9))
	if len(test) != wantTest {
		t.Fatalf("expected %d test rows, got %d", wantTest, len(test))
	}

	testPos := 0
	for _, r := range test {
		testPos += r.Target
	}
	if testPos != int(math.Ceil(float64(positives)*0.2-1e-9)) {
		t.Fatalf("test split is not stratified: %d positives", testPos)
	}

	_, again, err := ds.Split(0.2, 0)
	if err != nil {
		t.Fatal(err)
	}
	for i := range test {
		if test[i] != again[i] {
			t.Fatalf("split is not deterministic at %d", i)
		}
	}
}

func TestSplit_InvalidFraction(t *testing.T) {
	ds, _ := Read(strings.NewReader(synthetic(10)))
	for _, f := range []float64{0, 1, -0.5} {
		if _, _, err := ds.Split(f, 0); err == nil {
			t.Errorf("expected error for fraction %v", f)
		}
	}
}

func TestSummarize(t *testing.T) {
	values := []float64{1, 2, 2, 3, 4, 5, 5, 5, 9, 10}
	d, err := Summarize(values, 3)
	if err != nil {
		t.Fatal(err)
	}

	wantEdges := []float64{1, 4, 7, 10}
	for i, e := range wantEdges {
		if math.Abs(d.BinEdges[i]-e) > 1e-12 {
			t.Fatalf("edges = %v, want %v", d.BinEdges, wantEdges)
		}
	}
	// [1,4) -> 1,2,2,3; [4,7) -> 4,5,5,5; [7,10] -> 9,10
	wantCounts := []int{4, 4, 2}
	for i, c := range wantCounts {
		if d.Histogram[i] != c {
			t.Fatalf("histogram = %v, want %v", d.Histogram, wantCounts)
		}
	}

	if d.Min != 1 || d.Max != 10 {
		t.Fatalf("min/max = %v/%v", d.Min, d.Max)
	}
	if math.Abs(d.Mean-4.6) > 1e-12 {
		t.Fatalf("mean = %v", d.Mean)
	}
	// population variance: sum((x-4.6)^2)/10 = 78.4/10
	if math.Abs(d.Std-2.8) > 1e-9 {
		t.Fatalf("std = %v", d.Std)
	}
}

func TestSummarize_ConstantColumn(t *testing.T) {
	d, err := Summarize([]float64{7, 7, 7}, 4)
	if err != nil {
		t.Fatal(err)
	}
	total := 0
	for _, c := range d.Histogram {
		total += c
	}
	if total != 3 || d.Std != 0 || d.BinEdges[0] != 6.5 || d.BinEdges[4] != 7.5 {
		t.Fatalf("unexpected summary: %+v", d)
	}
}

func TestDistributions_NumericFeaturesOnly(t *testing.T) {
	ds, _ := Read(strings.NewReader(synthetic(40)))
	dists, err := ds.Distributions(DefaultBins)
	if err != nil {
		t.Fatal(err)
	}
	if len(dists) != 4 {
		t.Fatalf("expected 4 distributions, got %d", len(dists))
	}
	for name, d := range dists {
		sum := 0
		for _, c := range d.Histogram {
			sum += c
		}
		if sum != 40 {
			t.Errorf("%s: histogram sums to %d", name, sum)
		}
		if len(d.BinEdges) != DefaultBins+1 {
			t.Errorf("%s: %d edges", name, len(d.BinEdges))
		}
	}
	if _, ok := dists["cp"]; ok {
		t.Error("categorical feature should not be summarized")
	}
}
