package shared

import "math"

const (
	// DefaultPageSize applies when a caller does not ask for a limit.
	DefaultPageSize = 20
	// MaxPageSize caps the limit a caller may ask for.
	MaxPageSize = 100
	// MaxPage keeps page offsets within a 32-bit row count.
	MaxPage = math.MaxInt32 / MaxPageSize
)

// Pagination contains metadata for paginated listings.
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// NormalizePage clamps page and limit into their accepted ranges.
func NormalizePage(page, limit int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if page > MaxPage {
		page = MaxPage
	}
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	return page, limit
}

// NewPagination computes pagination metadata.
func NewPagination(page, limit, total int) Pagination {
	page, limit = NormalizePage(page, limit)
	if total < 0 {
		total = 0
	}
	totalPages := int(math.Ceil(float64(total) / float64(limit)))
	return Pagination{Page: page, Limit: limit, Total: total, TotalPages: totalPages}
}

// Offset returns the zero-based row offset of the page.
func (p Pagination) Offset() int {
	if p.Page <= 1 {
		return 0
	}
	return (p.Page - 1) * p.Limit
}

// HasNext reports whether another page follows.
func (p Pagination) HasNext() bool {
	return p.Page < p.TotalPages
}
