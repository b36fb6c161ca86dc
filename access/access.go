// Package access decides who may read or mutate a post. Every decision is a
// pure function of the caller and the post's (status, visibility, author).
package access

import (
	"quill/apperr"
	"quill/models"
)

// Caller is an optional identity: either anonymous or a verified user id.
type Caller struct {
	userID string
}

func Anonymous() Caller { return Caller{} }

func User(id string) Caller { return Caller{userID: id} }

// ID returns the caller's user id and whether the caller is authenticated.
func (c Caller) ID() (string, bool) {
	return c.userID, c.userID != ""
}

func (c Caller) Authenticated() bool { return c.userID != "" }

func (c Caller) owns(t Target) bool {
	return c.userID != "" && c.userID == t.AuthorID
}

type Target struct {
	Status     models.Status
	Visibility models.Visibility
	AuthorID   string
}

func TargetOf(p *models.Post) Target {
	return Target{Status: p.Status, Visibility: p.Visibility, AuthorID: p.AuthorID}
}

// CanRead applies the read table:
//
//	published + public          -> everyone
//	published + private         -> author only
//	draft (any visibility)      -> author only
//
// Any other state is readable by the author alone.
func CanRead(c Caller, t Target) bool {
	if t.Status == models.StatusPublished && t.Visibility == models.VisibilityPublic {
		return true
	}
	return c.owns(t)
}

func CanWrite(c Caller, t Target) bool {
	return c.owns(t)
}

// Read returns nil when the caller may read t. A denial is reported as
// NotFound so the post's existence is not revealed.
func Read(c Caller, t Target) error {
	if CanRead(c, t) {
		return nil
	}
	return apperr.ErrNotFound
}

// Write returns nil when the caller may mutate t: Unauthorized for
// anonymous callers, Forbidden for everyone but the author.
func Write(c Caller, t Target) error {
	if !c.Authenticated() {
		return apperr.ErrUnauthorized
	}
	if !CanWrite(c, t) {
		return apperr.ErrForbidden
	}
	return nil
}

// Author returns the user id a write runs as, or Unauthorized.
func Author(c Caller) (string, error) {
	id, ok := c.ID()
	if !ok {
		return "", apperr.ErrUnauthorized
	}
	return id, nil
}
