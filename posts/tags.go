package posts

import (
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"quill/content"
	"quill/models"
)

// syncTags replaces the tag set of postID with names. A nil names leaves the
// associations untouched and an empty list clears them. It must run inside
// the transaction of the post mutation.
func syncTags(tx *gorm.DB, postID string, names *[]string) error {
	if names == nil {
		return nil
	}

	tagIDs := make([]string, 0, len(*names))
	seen := make(map[string]bool, len(*names))
	for _, name := range *names {
		name = strings.TrimSpace(name)
		slug := content.Slugify(name)
		if slug == "" || seen[slug] {
			continue
		}
		seen[slug] = true

		tag, err := findOrCreateTag(tx, slug, name)
		if err != nil {
			return err
		}
		tagIDs = append(tagIDs, tag.ID)
	}

	if err := tx.Where("post_id = ?", postID).Delete(&models.PostTag{}).Error; err != nil {
		return err
	}
	if len(tagIDs) == 0 {
		return nil
	}

	postTags := make([]models.PostTag, 0, len(tagIDs))
	for _, tagID := range tagIDs {
		postTags = append(postTags, models.PostTag{PostID: postID, TagID: tagID})
	}
	return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&postTags).Error
}

// findOrCreateTag returns the tag with slug, creating it with name when
// missing. Concurrent creators race on the unique slug; the loser's insert
// is dropped and both read back the winner's row.
func findOrCreateTag(tx *gorm.DB, slug, name string) (*models.Tag, error) {
	var tag models.Tag
	err := tx.Where("slug = ?", slug).First(&tag).Error
	if err == nil {
		return &tag, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	tag = models.Tag{ID: uuid.NewString(), Slug: slug, Name: name}
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "slug"}},
		DoNothing: true,
	}).Create(&tag).Error; err != nil {
		return nil, err
	}

	var stored models.Tag
	if err := tx.Where("slug = ?", slug).First(&stored).Error; err != nil {
		return nil, err
	}
	return &stored, nil
}

// tagNames returns the names of the tags attached to each of postIDs.
func tagNames(tx *gorm.DB, postIDs ...string) (map[string][]string, error) {
	names := make(map[string][]string, len(postIDs))
	if len(postIDs) == 0 {
		return names, nil
	}

	var rows []struct {
		PostID string
		Name   string
	}
	err := tx.Table("post_tags").
		Select("post_tags.post_id, tags.name").
		Joins("JOIN tags ON tags.id = post_tags.tag_id").
		Where("post_tags.post_id IN ?", postIDs).
		Order("tags.slug").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	for _, r := range rows {
		names[r.PostID] = append(names[r.PostID], r.Name)
	}
	return names, nil
}
