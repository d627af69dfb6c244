package pagination

import (
	"math"
	"net/url"
	"strconv"
)

const (
	DefaultPageSize = 500
	MaxPageSize     = 500
	// MaxPage keeps Offset within int64 at MaxPageSize.
	MaxPage = math.MaxInt32
)

// Pagination is a 1-based page request.
type Pagination struct {
	Page     int `form:"page"`
	PageSize int `form:"display_size"`
}

// Normalize applies defaults to unset values.
func (p Pagination) Normalize() Pagination {
	if p.Page <= 0 {
		p.Page = 1
	}
	if p.PageSize <= 0 {
		p.PageSize = DefaultPageSize
	}
	return p
}

func (p Pagination) Offset() int {
	return (p.Page - 1) * p.PageSize
}

func (p Pagination) Limit() int {
	return p.PageSize
}

// LastPage returns the last 1-based page for total records, never below 1.
func (p Pagination) LastPage(total int64) int {
	if total <= 0 || p.PageSize <= 0 {
		return 1
	}
	pages := (total + int64(p.PageSize) - 1) / int64(p.PageSize)
	return int(pages)
}

type Link struct {
	Href string `json:"href"`
}

type Links struct {
	Self      *Link `json:"self"`
	FirstPage *Link `json:"first_page"`
	LastPage  *Link `json:"last_page"`
	PrevPage  *Link `json:"prev_page,omitempty"`
	NextPage  *Link `json:"next_page,omitempty"`
}

// BuildLinks renders navigation links from the filter query plus page params.
func BuildLinks(path string, filter url.Values, page Pagination, total int64) Links {
	page = page.Normalize()
	last := page.LastPage(total)

	link := func(n int) *Link {
		q := url.Values{}
		for k, vs := range filter {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		q.Set("page", strconv.Itoa(n))
		q.Set("display_size", strconv.Itoa(page.PageSize))
		return &Link{Href: path + "?" + q.Encode()}
	}

	links := Links{
		Self:      link(page.Page),
		FirstPage: link(1),
		LastPage:  link(last),
	}
	if page.Page > 1 {
		links.PrevPage = link(min(page.Page-1, last))
	}
	if page.Page < last {
		links.NextPage = link(page.Page + 1)
	}
	return links
}
