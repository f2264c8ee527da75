package actum

import (
	"context"
	"fmt"
)

// Paginator is one page of results. The JSON field set is part of the
// engine's external contract and must not change.
type Paginator struct {
	Data        []*Entity `json:"data"`
	CurrentPage int       `json:"current_page"`
	PerPage     int       `json:"per_page"`
	Total       int64     `json:"total"`
	TotalPages  int       `json:"total_pages"`
	From        int       `json:"from"`
	To          int       `json:"to"`
	NextPageURL *string   `json:"next_page_url"`
	PrevPageURL *string   `json:"prev_page_url"`
}

// PageURL sets the base path used when building next/prev page links.
// Without it the links are bare query strings ("?page=2").
func (q *Query) PageURL(base string) *Query {
	q.pageURL = base
	return q
}

// Paginate executes the query for one page: a COUNT over the full
// predicate set, then the page rows with LIMIT/OFFSET. Page numbers
// start at 1.
func (q *Query) Paginate(ctx context.Context, perPage, page int) (*Paginator, error) {
	if q.err != nil {
		return nil, q.err
	}
	if perPage < 1 {
		perPage = 15
	}
	if page < 1 {
		page = 1
	}
	total, err := q.Count(ctx)
	if err != nil {
		return nil, err
	}
	q.sel.Limit(perPage).Offset((page - 1) * perPage)
	data, err := q.Get(ctx)
	if err != nil {
		return nil, err
	}
	totalPages := int((total + int64(perPage) - 1) / int64(perPage))
	p := &Paginator{
		Data:        data,
		CurrentPage: page,
		PerPage:     perPage,
		Total:       total,
		TotalPages:  totalPages,
	}
	if len(data) > 0 {
		p.From = (page-1)*perPage + 1
		p.To = p.From + len(data) - 1
	}
	if page < totalPages {
		u := q.pageLink(page + 1)
		p.NextPageURL = &u
	}
	if page > 1 {
		u := q.pageLink(page - 1)
		p.PrevPageURL = &u
	}
	return p, nil
}

func (q *Query) pageLink(page int) string {
	return fmt.Sprintf("%s?page=%d", q.pageURL, page)
}
