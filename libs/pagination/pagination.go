// Package pagination holds the page math shared by every list view.
package pagination

import (
	"errors"
	"net/url"
	"strconv"
	"strings"
)

// DefaultLimit is the number of rows on every list page.
const DefaultLimit = 10

// MaxPage bounds ?page= so the offset stays far from integer overflow.
const MaxPage = 1_000_000

type Request struct {
	Page  int
	Limit int
}

// Offset is (page-1)*limit, with the page clamped to [1, MaxPage].
func (r Request) Offset() int {
	if r.Limit <= 0 {
		return 0
	}
	page := min(max(r.Page, 1), MaxPage)
	return (page - 1) * r.Limit
}

// Page is the pagination block returned with list responses.
type Page struct {
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	Total      int  `json:"total"`
	TotalPages int  `json:"total_pages"`
	HasPrev    bool `json:"has_prev"`
	HasNext    bool `json:"has_next"`
}

// FromQuery reads ?page=. A missing, non-numeric or non-positive page is 1,
// and anything past MaxPage (including values that overflow int) is MaxPage.
func FromQuery(q url.Values) Request {
	raw := strings.TrimSpace(q.Get("page"))
	page, err := strconv.Atoi(raw)
	switch {
	case errors.Is(err, strconv.ErrRange) && !strings.HasPrefix(raw, "-"):
		page = MaxPage
	case err != nil || page < 1:
		page = 1
	case page > MaxPage:
		page = MaxPage
	}
	return Request{Page: page, Limit: DefaultLimit}
}

// TotalPages is ceil(count/limit), and 0 when there are no rows.
func TotalPages(count, limit int) int {
	if count <= 0 || limit <= 0 {
		return 0
	}
	return (count + limit - 1) / limit
}

func Build(r Request, total int) Page {
	pages := TotalPages(total, r.Limit)
	return Page{
		Page:       r.Page,
		Limit:      r.Limit,
		Total:      total,
		TotalPages: pages,
		HasPrev:    r.Page > 1,
		HasNext:    r.Page < pages,
	}
}
