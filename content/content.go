// Package content holds the pure pieces of the content model: slug
// derivation, markdown rendering and the status/visibility enumerations.
package content

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	htmlrenderer "github.com/yuin/goldmark/renderer/html"

	"quill/apperr"
	"quill/models"
)

// markdown renderer configured with Goldmark and useful extensions
var md = goldmark.New(
	goldmark.WithExtensions(
		extension.GFM,     // tables, strikethrough, task lists, autolinks (GFM set)
		extension.Linkify, // linkify raw URLs
	),
	goldmark.WithRendererOptions(
		htmlrenderer.WithUnsafe(), // authors are trusted, raw HTML passes through
	),
)

// RenderMarkdown converts markdown source to HTML. Output is not sanitised.
func RenderMarkdown(source string) string {
	var buf bytes.Buffer
	if err := md.Convert([]byte(source), &buf); err != nil {
		return source
	}
	return buf.String()
}

// Slugify lowercases title, collapses every run of characters outside
// [a-z0-9] into a single hyphen and trims hyphens at both ends. The result
// may be empty and is not guaranteed unique.
func Slugify(title string) string {
	var b strings.Builder
	pendingHyphen := false
	for _, r := range strings.ToLower(title) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
			continue
		}
		pendingHyphen = true
	}
	return b.String()
}

// ParseStatus validates a caller-supplied status.
func ParseStatus(s string) (models.Status, error) {
	switch models.Status(s) {
	case models.StatusDraft, models.StatusPublished:
		return models.Status(s), nil
	}
	return "", apperr.BadRequestf("status must be draft or published")
}

// ParseVisibility validates a caller-supplied visibility.
func ParseVisibility(s string) (models.Visibility, error) {
	switch models.Visibility(s) {
	case models.VisibilityPublic, models.VisibilityPrivate:
		return models.Visibility(s), nil
	}
	return "", apperr.BadRequestf("visibility must be public or private")
}
