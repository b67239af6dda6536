package domain

import "fmt"

// SortKey orders email listings.
type SortKey string

const (
	SortNewest SortKey = "newest"
	SortOldest SortKey = "oldest"
	SortCount  SortKey = "count"
)

func ParseSortKey(s string) (SortKey, error) {
	switch SortKey(s) {
	case "":
		return SortNewest, nil
	case SortNewest, SortOldest, SortCount:
		return SortKey(s), nil
	default:
		return "", fmt.Errorf("unknown sort %q", s)
	}
}

const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100
	// MaxPage keeps (Page-1)*Limit far from integer overflow.
	MaxPage = 1_000_000
)

// ListQuery filters and pages an email listing.
type ListQuery struct {
	Search   string
	Category *Category
	Sort     SortKey
	Page     int
	Limit    int
}

// Normalize fills defaults and clamps paging values.
func (q *ListQuery) Normalize() {
	if q.Sort == "" {
		q.Sort = SortNewest
	}
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Page > MaxPage {
		q.Page = MaxPage
	}
	if q.Limit < 1 {
		q.Limit = DefaultPageLimit
	}
	if q.Limit > MaxPageLimit {
		q.Limit = MaxPageLimit
	}
}

func (q *ListQuery) Offset() int {
	return (q.Page - 1) * q.Limit
}

// Pagination describes one page of a listing.
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// NewPagination computes total pages as ceil(total/limit), never less than 1.
func NewPagination(page, limit, total int) Pagination {
	totalPages := 1
	if limit > 0 && total > 0 {
		totalPages = (total + limit - 1) / limit
	}
	return Pagination{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: totalPages,
	}
}

// EmailPage is one page of emails.
type EmailPage struct {
	Emails     []*Email
	Pagination Pagination
}
