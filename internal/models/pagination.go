package models

// Pagination is the envelope returned alongside every offset-paged result set.
type Pagination struct {
	CurrentPage int  `json:"currentPage"`
	TotalPages  int  `json:"totalPages"`
	Total       int  `json:"total"`
	HasMore     bool `json:"hasMore"`
	Limit       int  `json:"limit"`
}

// NewPagination computes the envelope for a page of a result set of the given
// total size. TotalPages is ceil(total/limit); HasMore is whether pages remain
// after the current one.
func NewPagination(page, limit, total int) Pagination {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 1
	}
	totalPages := (total + limit - 1) / limit
	return Pagination{
		CurrentPage: page,
		TotalPages:  totalPages,
		Total:       total,
		HasMore:     page < totalPages,
		Limit:       limit,
	}
}
