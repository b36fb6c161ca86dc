// Package posts implements the post lifecycle: creation, owner-scoped
// mutation, publishing and the read paths that apply the access rules.
package posts

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"quill/access"
	"quill/apperr"
	"quill/content"
	"quill/models"
	"quill/query"
)

type Service struct {
	db  *gorm.DB
	now func() time.Time
}

type Option func(*Service)

// WithClock replaces time.Now for every timestamp the service writes.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(db *gorm.DB, opts ...Option) *Service {
	s := &Service{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Input is the editable part of a post. Nil optional fields keep their
// current value on update and take the defaults on create. Tags is a
// pointer to a slice so that an absent list and an empty list differ.
type Input struct {
	Title      string    `json:"title"`
	Slug       *string   `json:"slug"`
	Excerpt    *string   `json:"excerpt"`
	BodyMD     string    `json:"body_md"`
	Tags       *[]string `json:"tags"`
	Status     *string   `json:"status"`
	Visibility *string   `json:"visibility"`
}

type Summary struct {
	ID          string            `json:"id"`
	Slug        string            `json:"slug"`
	Title       string            `json:"title"`
	Excerpt     *string           `json:"excerpt"`
	PublishedAt *time.Time        `json:"published_at"`
	Status      models.Status     `json:"status,omitempty"`
	Visibility  models.Visibility `json:"visibility,omitempty"`
	UpdatedAt   *time.Time        `json:"updated_at,omitempty"`
}

type Page struct {
	Page     int       `json:"page"`
	PageSize int       `json:"page_size"`
	Items    []Summary `json:"items"`
}

// Detail is a single post with its tag names. BodyMD is only filled for
// the owner's editing view.
type Detail struct {
	ID          string            `json:"id"`
	Slug        string            `json:"slug"`
	Title       string            `json:"title"`
	Excerpt     *string           `json:"excerpt"`
	BodyMD      string            `json:"body_md,omitempty"`
	BodyHTML    string            `json:"body_html"`
	Status      models.Status     `json:"status"`
	Visibility  models.Visibility `json:"visibility"`
	AuthorID    string            `json:"author_id"`
	PublishedAt *time.Time        `json:"published_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
	Tags        []string          `json:"tags"`
}

type TagCount struct {
	ID    string `json:"id"`
	Slug  string `json:"slug"`
	Name  string `json:"name"`
	Count int64  `gorm:"column:post_count" json:"count"`
}

var (
	publicColumns = []string{"id", "slug", "title", "excerpt", "published_at"}
	authorColumns = []string{"id", "slug", "title", "excerpt", "published_at", "status", "visibility", "updated_at"}
)

func (s *Service) timestamp() time.Time {
	return s.now().UTC()
}

// fields are the validated, derived values of an Input.
type fields struct {
	title      string
	slug       string
	status     *models.Status
	visibility *models.Visibility
}

func validate(in Input) (fields, error) {
	var f fields

	f.title = strings.TrimSpace(in.Title)
	if f.title == "" {
		return f, apperr.BadRequestf("title is required")
	}
	if strings.TrimSpace(in.BodyMD) == "" {
		return f, apperr.BadRequestf("body_md is required")
	}

	source := f.title
	if in.Slug != nil && strings.TrimSpace(*in.Slug) != "" {
		source = *in.Slug
	}
	f.slug = content.Slugify(source)
	if f.slug == "" {
		return f, apperr.BadRequestf("slug must contain at least one letter or digit")
	}

	if in.Status != nil {
		status, err := content.ParseStatus(*in.Status)
		if err != nil {
			return f, err
		}
		f.status = &status
	}
	if in.Visibility != nil {
		visibility, err := content.ParseVisibility(*in.Visibility)
		if err != nil {
			return f, err
		}
		f.visibility = &visibility
	}
	return f, nil
}

// storeError maps storage failures onto error kinds. Errors that already
// carry a kind pass through.
func storeError(err error) error {
	var appErr *apperr.Error
	switch {
	case err == nil:
		return nil
	case errors.As(err, &appErr):
		return err
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return apperr.Wrap(apperr.Conflict, "slug already in use", err)
	default:
		return err
	}
}

// Create stores a new post owned by the caller. A post created as
// published gets its published_at at creation.
func (s *Service) Create(ctx context.Context, caller access.Caller, in Input) (*models.Post, error) {
	authorID, err := access.Author(caller)
	if err != nil {
		return nil, err
	}
	f, err := validate(in)
	if err != nil {
		return nil, err
	}

	now := s.timestamp()
	post := models.Post{
		ID:         uuid.NewString(),
		Slug:       f.slug,
		Title:      f.title,
		Excerpt:    in.Excerpt,
		BodyMD:     in.BodyMD,
		BodyHTML:   content.RenderMarkdown(in.BodyMD),
		Status:     models.StatusDraft,
		Visibility: models.VisibilityPublic,
		AuthorID:   authorID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if f.status != nil {
		post.Status = *f.status
	}
	if f.visibility != nil {
		post.Visibility = *f.visibility
	}
	if post.Status == models.StatusPublished {
		post.PublishedAt = &now
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&post).Error; err != nil {
			return err
		}
		return syncTags(tx, post.ID, in.Tags)
	})
	if err != nil {
		return nil, storeError(err)
	}
	return &post, nil
}

// Update rewrites the caller's post. Ownership is part of the UPDATE
// statement, so a missing post and someone else's post both come back as
// Forbidden. Asking for draft on a published post leaves it published.
func (s *Service) Update(ctx context.Context, caller access.Caller, id string, in Input) error {
	authorID, err := access.Author(caller)
	if err != nil {
		return err
	}
	f, err := validate(in)
	if err != nil {
		return err
	}

	now := s.timestamp()
	updates := map[string]any{
		"slug":       f.slug,
		"title":      f.title,
		"body_md":    in.BodyMD,
		"body_html":  content.RenderMarkdown(in.BodyMD),
		"updated_at": now,
	}
	if in.Excerpt != nil {
		updates["excerpt"] = *in.Excerpt
	}
	if f.visibility != nil {
		updates["visibility"] = *f.visibility
	}
	if f.status != nil {
		if *f.status == models.StatusPublished {
			updates["status"] = models.StatusPublished
			updates["published_at"] = gorm.Expr("COALESCE(published_at, ?)", now)
		} else {
			updates["status"] = gorm.Expr("CASE WHEN status = ? THEN status ELSE ? END", models.StatusPublished, models.StatusDraft)
		}
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Post{}).
			Where("id = ? AND author_id = ?", id, authorID).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.ErrForbidden
		}
		return syncTags(tx, id, in.Tags)
	})
	return storeError(err)
}

// Publish moves the caller's post to published. published_at is only set
// the first time; publishing again refreshes updated_at alone.
func (s *Service) Publish(ctx context.Context, caller access.Caller, id string) error {
	authorID, err := access.Author(caller)
	if err != nil {
		return err
	}

	now := s.timestamp()
	res := s.db.WithContext(ctx).Model(&models.Post{}).
		Where("id = ? AND author_id = ?", id, authorID).
		Updates(map[string]any{
			"status":       models.StatusPublished,
			"published_at": gorm.Expr("COALESCE(published_at, ?)", now),
			"updated_at":   now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.ErrForbidden
	}
	return nil
}

// Delete removes the caller's post together with its tag associations.
func (s *Service) Delete(ctx context.Context, caller access.Caller, id string) error {
	authorID, err := access.Author(caller)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND author_id = ?", id, authorID).Delete(&models.Post{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.ErrForbidden
		}
		return tx.Where("post_id = ?", id).Delete(&models.PostTag{}).Error
	})
}

// GetOwn returns the caller's post with its markdown source for editing.
func (s *Service) GetOwn(ctx context.Context, caller access.Caller, id string) (*Detail, error) {
	authorID, err := access.Author(caller)
	if err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)
	var post models.Post
	err = db.Where("id = ? AND author_id = ?", id, authorID).First(&post).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrForbidden
	}
	if err != nil {
		return nil, err
	}

	d, err := s.detail(db, &post)
	if err != nil {
		return nil, err
	}
	d.BodyMD = post.BodyMD
	return d, nil
}

// GetBySlug returns the rendered post when caller may read it. Posts the
// caller may not see are reported as NotFound.
func (s *Service) GetBySlug(ctx context.Context, caller access.Caller, slug string) (*Detail, error) {
	db := s.db.WithContext(ctx)

	var post models.Post
	err := db.Where("slug = ?", slug).First(&post).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := access.Read(caller, access.TargetOf(&post)); err != nil {
		return nil, err
	}
	return s.detail(db, &post)
}

func (s *Service) detail(db *gorm.DB, post *models.Post) (*Detail, error) {
	names, err := tagNames(db, post.ID)
	if err != nil {
		return nil, err
	}
	tags := names[post.ID]
	if tags == nil {
		tags = []string{}
	}

	return &Detail{
		ID:          post.ID,
		Slug:        post.Slug,
		Title:       post.Title,
		Excerpt:     post.Excerpt,
		BodyHTML:    post.BodyHTML,
		Status:      post.Status,
		Visibility:  post.Visibility,
		AuthorID:    post.AuthorID,
		PublishedAt: post.PublishedAt,
		UpdatedAt:   post.UpdatedAt,
		Tags:        tags,
	}, nil
}

// ListPublic pages through published, public posts.
func (s *Service) ListPublic(ctx context.Context, p query.Params) (*Page, error) {
	return s.list(ctx, query.Public(p), publicColumns)
}

// ListMine pages through every post of the caller.
func (s *Service) ListMine(ctx context.Context, caller access.Caller, p query.Params) (*Page, error) {
	authorID, err := access.Author(caller)
	if err != nil {
		return nil, err
	}
	return s.list(ctx, query.Author(authorID, p), authorColumns)
}

func (s *Service) list(ctx context.Context, q *query.Query, columns []string) (*Page, error) {
	items := []Summary{}
	if err := q.Apply(s.db.WithContext(ctx)).Select(columns).Find(&items).Error; err != nil {
		return nil, err
	}

	pg := q.Pagination()
	return &Page{Page: pg.Page, PageSize: pg.Size, Items: items}, nil
}

// ListTags returns every tag with the number of published, public posts
// carrying it, most used first.
func (s *Service) ListTags(ctx context.Context) ([]TagCount, error) {
	tags := []TagCount{}
	err := s.db.WithContext(ctx).Raw(`
		SELECT tags.id, tags.slug, tags.name, COUNT(posts.id) AS post_count
		  FROM tags
		  LEFT JOIN post_tags ON post_tags.tag_id = tags.id
		  LEFT JOIN posts ON posts.id = post_tags.post_id AND posts.status = ? AND posts.visibility = ?
		 GROUP BY tags.id, tags.slug, tags.name
		 ORDER BY post_count DESC, tags.slug`,
		models.StatusPublished, models.VisibilityPublic,
	).Scan(&tags).Error
	if err != nil {
		return nil, err
	}
	return tags, nil
}
