package models

import "time"

type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
)

type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

type User struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	Username     string    `gorm:"uniqueIndex;not null" json:"username"`
	PasswordHash string    `gorm:"not null" json:"-"`
	DisplayName  *string   `json:"display_name"`
	AvatarURL    *string   `json:"avatar_url"`
	Motto        *string   `json:"motto"`
	CreatedAt    time.Time `json:"created_at"`
}

type Post struct {
	ID          string     `gorm:"primaryKey;size:36" json:"id"`
	Slug        string     `gorm:"not null;uniqueIndex" json:"slug"`
	Title       string     `gorm:"not null" json:"title"`
	Excerpt     *string    `gorm:"type:text" json:"excerpt"`
	BodyMD      string     `gorm:"column:body_md;type:text;not null" json:"body_md"`
	BodyHTML    string     `gorm:"column:body_html;type:text;not null" json:"body_html"` // derived from BodyMD, never written directly
	Status      Status     `gorm:"not null;default:draft;index:idx_posts_status_visibility_pubat,priority:1" json:"status"`
	Visibility  Visibility `gorm:"not null;default:public;index:idx_posts_status_visibility_pubat,priority:2" json:"visibility"`
	AuthorID    string     `gorm:"not null;index;size:36" json:"author_id"`
	PublishedAt *time.Time `gorm:"index:idx_posts_status_visibility_pubat,priority:3" json:"published_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

type Tag struct {
	ID   string `gorm:"primaryKey;size:36" json:"id"`
	Slug string `gorm:"uniqueIndex;not null" json:"slug"`
	Name string `gorm:"not null" json:"name"`
}

// PostTag rows are unique per (post_id, tag_id) through the composite key.
type PostTag struct {
	PostID string `gorm:"primaryKey;size:36" json:"post_id"`
	TagID  string `gorm:"primaryKey;size:36;index" json:"tag_id"`
}
