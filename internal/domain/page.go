package domain

// MaxPageLimit and MaxPage bound the values NewPaginationParams accepts,
// which keeps Offset far from int overflow.
const (
	MaxPageLimit = 100
	MaxPage      = 1 << 20
)

// PaginationParams carries page/limit values from HTTP query parameters to
// whatever slices the result.
// Page is 1-indexed.
type PaginationParams struct {
	// Page is the current page number, starting at 1.
	Page int
	// Limit is the maximum number of items to return.
	Limit int
}

// NewPaginationParams builds a PaginationParams from optional HTTP query params.
// Nil or non-positive values fall back to page=1, limit=20; larger values
// are capped at MaxPage and MaxPageLimit.
func NewPaginationParams(page, limit *int) PaginationParams {
	p := PaginationParams{Page: 1, Limit: 20}
	if page != nil && *page >= 1 {
		p.Page = min(*page, MaxPage)
	}
	if limit != nil && *limit >= 1 {
		p.Limit = min(*limit, MaxPageLimit)
	}
	return p
}

// Offset returns the zero-based index of the page's first item.
func (p PaginationParams) Offset() int {
	return (p.Page - 1) * p.Limit
}
