package service

import (
	"gorm.io/gorm"
)

const (
	defaultPageSize = 12
	maxPageSize     = 60
)

// Page is a 1-based page request.
type Page struct {
	Page  int
	Limit int
}

func (p Page) normalize() Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = defaultPageSize
	}
	if p.Limit > maxPageSize {
		p.Limit = maxPageSize
	}
	return p
}

func (p Page) offset() int { return (p.Page - 1) * p.Limit }

// PageResult is one page of T plus the totals a client needs to paginate.
type PageResult[T any] struct {
	Items      []T   `json:"items"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

func newPageResult[T any](items []T, p Page, total int64) PageResult[T] {
	pages := int((total + int64(p.Limit) - 1) / int64(p.Limit))
	return PageResult[T]{Items: items, Page: p.Page, Limit: p.Limit, Total: total, TotalPages: pages}
}

// findPage counts q, then loads the requested page ordered by order.
// q must carry a Model.
func findPage[T any](q *gorm.DB, p Page, order string, preloads ...string) (PageResult[T], error) {
	p = p.normalize()
	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return PageResult[T]{}, err
	}
	items := make([]T, 0, p.Limit)
	find := q.Session(&gorm.Session{}).Order(order).Offset(p.offset()).Limit(p.Limit)
	for _, rel := range preloads {
		find = find.Preload(rel)
	}
	if err := find.Find(&items).Error; err != nil {
		return PageResult[T]{}, err
	}
	return newPageResult(items, p, total), nil
}
