package submission

import (
	"strconv"
	"strings"
	"time"

	"github.com/Skufu/heartrisk/internal/domain"
)

// DateLayout is the accepted format of date_from / date_to.
const DateLayout = "2006-01-02"

// Pagination bounds.
const (
	DefaultPerPage = 20
	MaxPerPage     = 100
)

// Filter restricts submissions by creation time. From is inclusive, To is exclusive;
// a nil bound is open.
type Filter struct {
	From *time.Time
	To   *time.Time
}

// ParseFilter reads YYYY-MM-DD bounds in UTC. dateTo covers the whole named day.
func ParseFilter(dateFrom, dateTo string) (Filter, error) {
	var f Filter
	verr := domain.NewValidationError()

	if s := strings.TrimSpace(dateFrom); s != "" {
		t, err := time.ParseInLocation(DateLayout, s, time.UTC)
		if err != nil {
			verr.Add("date_from", "invalid date, use YYYY-MM-DD")
		} else {
			f.From = &t
		}
	}
	if s := strings.TrimSpace(dateTo); s != "" {
		t, err := time.ParseInLocation(DateLayout, s, time.UTC)
		if err != nil {
			verr.Add("date_to", "invalid date, use YYYY-MM-DD")
		} else {
			end := t.AddDate(0, 0, 1)
			f.To = &end
		}
	}

	if err := verr.Err(); err != nil {
		return Filter{}, err
	}
	return f, nil
}

// Match reports whether t falls inside the filter.
func (f Filter) Match(t time.Time) bool {
	if f.From != nil && t.Before(*f.From) {
		return false
	}
	if f.To != nil && !t.Before(*f.To) {
		return false
	}
	return true
}

// Page selects a window of the newest-first listing. Number starts at 1.
type Page struct {
	Number int
	Size   int
}

// NewPage clamps number to >= 1 and size to [1, MaxPerPage]. A zero size means the default.
func NewPage(number, size int) Page {
	if number < 1 {
		number = 1
	}
	switch {
	case size == 0:
		size = DefaultPerPage
	case size < 1:
		size = 1
	case size > MaxPerPage:
		size = MaxPerPage
	}
	return Page{Number: number, Size: size}
}

// ParsePage reads the page and per_page query values. Empty values take defaults;
// non-integers are validation errors; out-of-range integers are clamped.
func ParsePage(page, perPage string) (Page, error) {
	verr := domain.NewValidationError()
	number, size := 1, 0

	if s := strings.TrimSpace(page); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			verr.Add("page", "must be an integer")
		}
		number = n
	}
	if s := strings.TrimSpace(perPage); s != "" {
		n, err := strconv.Atoi(s)
		switch {
		case err != nil:
			verr.Add("per_page", "must be an integer")
		case n == 0:
			size = 1
		default:
			size = n
		}
	}

	if err := verr.Err(); err != nil {
		return Page{}, err
	}
	return NewPage(number, size), nil
}

// Offset is the number of rows skipped before this page.
func (p Page) Offset() int { return (p.Number - 1) * p.Size }

// TotalPages is ceil(total/size), or 1 when there is nothing to show.
func TotalPages(total, size int) int {
	if total <= 0 || size <= 0 {
		return 1
	}
	return (total + size - 1) / size
}
