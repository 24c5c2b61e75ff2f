package render

import (
	"net/http"
	"strconv"
)

const maxPageSize = 100

// Pagination splits list views into pages. The page size comes from
// the page_size query parameter, capped at 100.
type Pagination struct {
	Page     int
	PageSize int
	Total    int
}

func NewPagination(req *http.Request, defaultSize, total int) Pagination {
	p := Pagination{Page: 1, PageSize: defaultSize, Total: total}
	if v, err := strconv.Atoi(req.URL.Query().Get("page")); err == nil && v > 0 {
		p.Page = v
	}
	if v, err := strconv.Atoi(req.URL.Query().Get("page_size")); err == nil && v > 0 {
		p.PageSize = v
	}
	if p.PageSize > maxPageSize {
		p.PageSize = maxPageSize
	}
	if p.PageSize < 1 {
		p.PageSize = 1
	}
	return p
}

func (p Pagination) Offset() int {
	return (p.Page - 1) * p.PageSize
}

func (p Pagination) Pages() int {
	if p.Total <= 0 {
		return 1
	}
	return (p.Total + p.PageSize - 1) / p.PageSize
}

func (p Pagination) HasPrev() bool { return p.Page > 1 }
func (p Pagination) HasNext() bool { return p.Page < p.Pages() }
func (p Pagination) Prev() int     { return p.Page - 1 }
func (p Pagination) Next() int     { return p.Page + 1 }
