// Package query builds the read queries over posts. Each query carries the
// fixed predicates of its access scope from construction, followed by the
// optional filters the caller supplied. Every filter value is a bound
// parameter.
package query

import (
	"net/url"
	"strconv"
	"strings"

	"gorm.io/gorm"

	"quill/models"
)

const (
	PublicDefaultPageSize = 10
	PublicMaxPageSize     = 50
	AuthorDefaultPageSize = 20
	AuthorMaxPageSize     = 100

	// allFilter adds no predicate for status or visibility.
	allFilter = "all"
)

// Params are the optional filters of a listing request. Nil page fields
// take the scope's defaults.
type Params struct {
	Page     *int
	PageSize *int
	Tag      string
	Q        string

	// Status and Visibility only apply to the author scope. "all", empty
	// and unrecognised values add no predicate.
	Status     string
	Visibility string
}

type Pagination struct {
	Page int `json:"page"`
	Size int `json:"page_size"`
}

func (p Pagination) Offset() int { return (p.Page - 1) * p.Size }

// Paginate clamps page to at least 1 and size into [1, max].
func Paginate(page, size *int, defaultSize, maxSize int) Pagination {
	p := Pagination{Page: 1, Size: defaultSize}
	if page != nil && *page > 1 {
		p.Page = *page
	}
	if size != nil {
		p.Size = *size
	}
	if p.Size < 1 {
		p.Size = 1
	}
	if p.Size > maxSize {
		p.Size = maxSize
	}
	return p
}

type predicate struct {
	sql  string
	args []any
}

type Query struct {
	preds []predicate
	order string
	page  Pagination
}

// Public lists published, public posts newest first. Posts without
// published_at sort last on every engine.
func Public(p Params) *Query {
	q := &Query{
		order: "published_at DESC NULLS LAST",
		page:  Paginate(p.Page, p.PageSize, PublicDefaultPageSize, PublicMaxPageSize),
	}
	q.where("status = ? AND visibility = ?", models.StatusPublished, models.VisibilityPublic)
	q.filters(p)
	return q
}

// Author lists every post of authorID. Drafts sort by their last edit.
func Author(authorID string, p Params) *Query {
	q := &Query{
		order: "COALESCE(published_at, updated_at) DESC, updated_at DESC",
		page:  Paginate(p.Page, p.PageSize, AuthorDefaultPageSize, AuthorMaxPageSize),
	}
	q.where("author_id = ?", authorID)

	switch models.Status(p.Status) {
	case models.StatusDraft, models.StatusPublished:
		q.where("status = ?", p.Status)
	}
	switch models.Visibility(p.Visibility) {
	case models.VisibilityPublic, models.VisibilityPrivate:
		q.where("visibility = ?", p.Visibility)
	}

	q.filters(p)
	return q
}

func (q *Query) where(sql string, args ...any) {
	q.preds = append(q.preds, predicate{sql: sql, args: args})
}

func (q *Query) filters(p Params) {
	if p.Tag != "" {
		q.where("id IN (SELECT post_id FROM post_tags WHERE tag_id IN (SELECT id FROM tags WHERE slug = ? OR name = ?))", p.Tag, p.Tag)
	}
	if p.Q != "" {
		like := "%" + escapeLike(p.Q) + "%"
		q.where(`(title LIKE ? ESCAPE '\' OR body_html LIKE ? ESCAPE '\')`, like, like)
	}
}

func (q *Query) Pagination() Pagination { return q.page }

// Scope applies the predicates and ordering without pagination.
func (q *Query) Scope(db *gorm.DB) *gorm.DB {
	tx := db.Model(&models.Post{})
	for _, p := range q.preds {
		tx = tx.Where(p.sql, p.args...)
	}
	return tx.Order(q.order)
}

// Apply is Scope plus LIMIT/OFFSET of the clamped page.
func (q *Query) Apply(db *gorm.DB) *gorm.DB {
	return q.Scope(db).Limit(q.page.Size).Offset(q.page.Offset())
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// ParseParams reads page, page_size, tag, q, status and visibility from a
// request's query string. Page numbers that do not parse are treated as
// absent.
func ParseParams(v url.Values) Params {
	return Params{
		Page:       atoi(v.Get("page")),
		PageSize:   atoi(v.Get("page_size")),
		Tag:        v.Get("tag"),
		Q:          v.Get("q"),
		Status:     v.Get("status"),
		Visibility: v.Get("visibility"),
	}
}

func atoi(s string) *int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return nil
	}
	return &n
}
