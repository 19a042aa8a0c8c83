package domain

import "math"

const (
	// DefaultLimit is used when a list request does not specify a limit.
	DefaultLimit = 100
	// MaxLimit is the largest page a list request may ask for.
	MaxLimit = 1000
)

// All is a page covering every row. It is meant for internal reads and does
// not pass Validate.
var All = Page{Limit: math.MaxInt32}

// Page is an offset/limit window over a list result.
type Page struct {
	Skip  int `json:"skip"`
	Limit int `json:"limit"`
}

// DefaultPage returns the first page with the default limit.
func DefaultPage() Page {
	return Page{Skip: 0, Limit: DefaultLimit}
}

// Validate checks the page bounds.
func (p Page) Validate() error {
	if p.Skip < 0 {
		return Invalid("skip must be >= 0")
	}
	if p.Limit < 1 || p.Limit > MaxLimit {
		return Invalid("limit must be between 1 and %d", MaxLimit)
	}
	return nil
}

// Window applies the page to n items and returns the [start, end) indexes.
func (p Page) Window(n int) (start, end int) {
	start = min(p.Skip, n)
	end = min(start+p.Limit, n)
	return start, end
}
