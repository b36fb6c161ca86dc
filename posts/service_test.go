package posts

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"quill/access"
	"quill/apperr"
	"quill/database/dbtest"
	"quill/models"
	"quill/query"
)

var (
	t0     = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	alice  = access.User("alice-id")
	bob    = access.User("bob-id")
	nobody = access.Anonymous()
)

type fixture struct {
	db  *gorm.DB
	svc *Service
	now time.Time
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db := dbtest.Open(t)
	dbtest.CreateUser(t, db, "alice-id", "alice")
	dbtest.CreateUser(t, db, "bob-id", "bob")

	f := &fixture{db: db, now: t0}
	f.svc = NewService(db, WithClock(func() time.Time { return f.now }))
	return f
}

func (f *fixture) advance(d time.Duration) { f.now = f.now.Add(d) }

func (f *fixture) load(t *testing.T, id string) models.Post {
	t.Helper()
	var post models.Post
	require.NoError(t, f.db.First(&post, "id = ?", id).Error)
	return post
}

func (f *fixture) create(t *testing.T, caller access.Caller, in Input) *models.Post {
	t.Helper()
	post, err := f.svc.Create(context.Background(), caller, in)
	require.NoError(t, err)
	return post
}

func str(s string) *string { return &s }

func tags(names ...string) *[]string { return &names }

func draft(title string) Input {
	return Input{Title: title, BodyMD: "Body of " + title}
}

func published(title string) Input {
	in := draft(title)
	in.Status = str("published")
	return in
}

func TestCreate_Defaults(t *testing.T) {
	f := setup(t)

	post := f.create(t, alice, Input{Title: "Hello, World!", BodyMD: "# Hi\n\nSome *text*"})

	stored := f.load(t, post.ID)
	assert.Equal(t, "hello-world", stored.Slug)
	assert.Equal(t, models.StatusDraft, stored.Status)
	assert.Equal(t, models.VisibilityPublic, stored.Visibility)
	assert.Equal(t, "alice-id", stored.AuthorID)
	assert.Nil(t, stored.PublishedAt)
	assert.Contains(t, stored.BodyHTML, "<h1>Hi</h1>")
	assert.Contains(t, stored.BodyHTML, "<em>text</em>")
}

func TestCreate_Published_SetsPublishedAt(t *testing.T) {
	f := setup(t)

	post := f.create(t, alice, published("Launch"))

	stored := f.load(t, post.ID)
	assert.Equal(t, models.StatusPublished, stored.Status)
	require.NotNil(t, stored.PublishedAt)
	assert.True(t, t0.Equal(*stored.PublishedAt))
}

func TestCreate_ExplicitSlugIsNormalised(t *testing.T) {
	f := setup(t)

	in := draft("Anything")
	in.Slug = str("My Custom Slug")
	post := f.create(t, alice, in)

	assert.Equal(t, "my-custom-slug", post.Slug)
}

func TestCreate_Rejects(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	tests := []struct {
		name string
		in   Input
	}{
		{"empty slug from title", Input{Title: "!!!", BodyMD: "body"}},
		{"empty slug supplied", Input{Title: "ok", Slug: str("???"), BodyMD: "body"}},
		{"blank title", Input{Title: "  ", BodyMD: "body"}},
		{"missing body", Input{Title: "title"}},
		{"unknown status", Input{Title: "title", BodyMD: "body", Status: str("archived")}},
		{"unknown visibility", Input{Title: "title", BodyMD: "body", Visibility: str("unlisted")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Create(ctx, alice, tt.in)
			assert.Equal(t, apperr.BadRequest, apperr.KindOf(err))
		})
	}

	var count int64
	f.db.Model(&models.Post{}).Count(&count)
	assert.Zero(t, count)
}

func TestCreate_Anonymous(t *testing.T) {
	f := setup(t)

	_, err := f.svc.Create(context.Background(), nobody, draft("Title"))
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestCreate_DuplicateSlugConflicts(t *testing.T) {
	f := setup(t)
	f.create(t, alice, draft("Same Title"))

	_, err := f.svc.Create(context.Background(), bob, draft("Same Title"))
	assert.Equal(t, apperr.Conflict, apperr.KindOf(err))
}

func TestCreate_ConflictRollsBackTags(t *testing.T) {
	f := setup(t)
	f.create(t, alice, draft("Same Title"))

	in := draft("Same Title")
	in.Tags = tags("Fresh")
	_, err := f.svc.Create(context.Background(), alice, in)
	require.Error(t, err)

	var count int64
	f.db.Model(&models.Tag{}).Where("slug = ?", "fresh").Count(&count)
	assert.Zero(t, count)
}

func TestPublish_SetsPublishedAtOnce(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	post := f.create(t, alice, draft("Post"))

	f.advance(time.Hour)
	require.NoError(t, f.svc.Publish(ctx, alice, post.ID))
	first := f.load(t, post.ID)
	require.NotNil(t, first.PublishedAt)
	assert.True(t, t0.Add(time.Hour).Equal(*first.PublishedAt))

	f.advance(time.Hour)
	require.NoError(t, f.svc.Publish(ctx, alice, post.ID))
	second := f.load(t, post.ID)
	assert.True(t, first.PublishedAt.Equal(*second.PublishedAt))
	assert.True(t, t0.Add(2*time.Hour).Equal(second.UpdatedAt))
}

func TestUpdate_KeepsPublishedAtAndStatus(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	post := f.create(t, alice, published("Post"))

	f.advance(time.Hour)
	in := draft("Post edited")
	in.Status = str("draft")
	require.NoError(t, f.svc.Update(ctx, alice, post.ID, in))

	stored := f.load(t, post.ID)
	assert.Equal(t, models.StatusPublished, stored.Status)
	require.NotNil(t, stored.PublishedAt)
	assert.True(t, t0.Equal(*stored.PublishedAt))
	assert.Equal(t, "post-edited", stored.Slug)
	assert.True(t, t0.Add(time.Hour).Equal(stored.UpdatedAt))
}

func TestUpdate_PublishesDraft(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	post := f.create(t, alice, draft("Post"))

	f.advance(time.Minute)
	in := draft("Post")
	in.Status = str("published")
	require.NoError(t, f.svc.Update(ctx, alice, post.ID, in))

	stored := f.load(t, post.ID)
	assert.Equal(t, models.StatusPublished, stored.Status)
	require.NotNil(t, stored.PublishedAt)
	assert.True(t, t0.Add(time.Minute).Equal(*stored.PublishedAt))
}

func TestUpdate_DraftStaysDraft(t *testing.T) {
	f := setup(t)
	post := f.create(t, alice, draft("Post"))

	in := draft("Post")
	in.Status = str("draft")
	require.NoError(t, f.svc.Update(context.Background(), alice, post.ID, in))

	stored := f.load(t, post.ID)
	assert.Equal(t, models.StatusDraft, stored.Status)
	assert.Nil(t, stored.PublishedAt)
}

func TestUpdate_OptionalFieldsUnchanged(t *testing.T) {
	f := setup(t)
	in := published("Post")
	in.Excerpt = str("short")
	in.Visibility = str("private")
	post := f.create(t, alice, in)

	require.NoError(t, f.svc.Update(context.Background(), alice, post.ID, Input{Title: "Post", BodyMD: "new body"}))

	stored := f.load(t, post.ID)
	require.NotNil(t, stored.Excerpt)
	assert.Equal(t, "short", *stored.Excerpt)
	assert.Equal(t, models.VisibilityPrivate, stored.Visibility)
	assert.Equal(t, models.StatusPublished, stored.Status)
	assert.Equal(t, "<p>new body</p>\n", stored.BodyHTML)
}

func TestUpdate_VisibilityToggle(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	post := f.create(t, alice, published("Post"))

	in := draft("Post")
	in.Visibility = str("private")
	require.NoError(t, f.svc.Update(ctx, alice, post.ID, in))
	assert.Equal(t, models.VisibilityPrivate, f.load(t, post.ID).Visibility)

	in.Visibility = str("public")
	require.NoError(t, f.svc.Update(ctx, alice, post.ID, in))
	assert.Equal(t, models.VisibilityPublic, f.load(t, post.ID).Visibility)
}

func TestWrites_NonOwnerAndMissingAreForbidden(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	post := f.create(t, alice, draft("Post"))

	for _, id := range []string{post.ID, "does-not-exist"} {
		assert.ErrorIs(t, f.svc.Update(ctx, bob, id, draft("Hijack")), apperr.ErrForbidden)
		assert.ErrorIs(t, f.svc.Publish(ctx, bob, id), apperr.ErrForbidden)
		assert.ErrorIs(t, f.svc.Delete(ctx, bob, id), apperr.ErrForbidden)
		_, err := f.svc.GetOwn(ctx, bob, id)
		assert.ErrorIs(t, err, apperr.ErrForbidden)
	}

	stored := f.load(t, post.ID)
	assert.Equal(t, "post", stored.Slug)
	assert.Equal(t, models.StatusDraft, stored.Status)
}

func TestWrites_AnonymousIsUnauthorized(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	post := f.create(t, alice, draft("Post"))

	assert.ErrorIs(t, f.svc.Update(ctx, nobody, post.ID, draft("x")), apperr.ErrUnauthorized)
	assert.ErrorIs(t, f.svc.Publish(ctx, nobody, post.ID), apperr.ErrUnauthorized)
	assert.ErrorIs(t, f.svc.Delete(ctx, nobody, post.ID), apperr.ErrUnauthorized)
}

func TestUpdate_SlugConflict(t *testing.T) {
	f := setup(t)
	f.create(t, alice, draft("First"))
	second := f.create(t, alice, draft("Second"))

	err := f.svc.Update(context.Background(), alice, second.ID, draft("First"))
	assert.Equal(t, apperr.Conflict, apperr.KindOf(err))
	assert.Equal(t, "second", f.load(t, second.ID).Slug)
}

func TestUpdate_ForbiddenLeavesTagsUntouched(t *testing.T) {
	f := setup(t)
	in := draft("Post")
	in.Tags = tags("go")
	post := f.create(t, alice, in)

	hijack := draft("Post")
	hijack.Tags = tags("spam")
	require.Error(t, f.svc.Update(context.Background(), bob, post.ID, hijack))

	assert.Equal(t, []string{"go"}, f.tagSlugs(t, post.ID))
}

func TestDelete_RemovesPostAndAssociations(t *testing.T) {
	f := setup(t)
	in := draft("Post")
	in.Tags = tags("go", "db")
	post := f.create(t, alice, in)

	require.NoError(t, f.svc.Delete(context.Background(), alice, post.ID))

	var count int64
	f.db.Model(&models.Post{}).Where("id = ?", post.ID).Count(&count)
	assert.Zero(t, count)
	f.db.Model(&models.PostTag{}).Where("post_id = ?", post.ID).Count(&count)
	assert.Zero(t, count)
	f.db.Model(&models.Tag{}).Count(&count)
	assert.Equal(t, int64(2), count)
}

func TestGetOwn_ReturnsSource(t *testing.T) {
	f := setup(t)
	in := draft("Post")
	in.Tags = tags("Go")
	post := f.create(t, alice, in)

	d, err := f.svc.GetOwn(context.Background(), alice, post.ID)
	require.NoError(t, err)
	assert.Equal(t, "Body of Post", d.BodyMD)
	assert.Equal(t, "<p>Body of Post</p>\n", d.BodyHTML)
	assert.Equal(t, []string{"Go"}, d.Tags)
}

func TestGetBySlug_ReadTable(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	pubPublic := f.create(t, alice, published("Pub Public"))
	in := published("Pub Private")
	in.Visibility = str("private")
	pubPrivate := f.create(t, alice, in)
	draftPost := f.create(t, alice, draft("Draft"))

	tests := []struct {
		slug   string
		caller access.Caller
		ok     bool
	}{
		{pubPublic.Slug, nobody, true},
		{pubPublic.Slug, bob, true},
		{pubPublic.Slug, alice, true},
		{pubPrivate.Slug, nobody, false},
		{pubPrivate.Slug, bob, false},
		{pubPrivate.Slug, alice, true},
		{draftPost.Slug, nobody, false},
		{draftPost.Slug, bob, false},
		{draftPost.Slug, alice, true},
		{"missing", alice, false},
	}

	for _, tt := range tests {
		d, err := f.svc.GetBySlug(ctx, tt.caller, tt.slug)
		if tt.ok {
			require.NoError(t, err, tt.slug)
			assert.Equal(t, tt.slug, d.Slug)
			assert.NotEmpty(t, d.BodyHTML)
			assert.Empty(t, d.BodyMD)
		} else {
			assert.ErrorIs(t, err, apperr.ErrNotFound, tt.slug)
		}
	}
}

func TestListPublic_OnlyPublishedPublic(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	f.create(t, alice, published("Old"))
	f.advance(time.Hour)
	f.create(t, alice, published("New"))
	f.create(t, alice, draft("Hidden Draft"))
	in := published("Hidden Private")
	in.Visibility = str("private")
	f.create(t, alice, in)

	page, err := f.svc.ListPublic(ctx, query.Params{})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 10, page.PageSize)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "new", page.Items[0].Slug)
	assert.Equal(t, "old", page.Items[1].Slug)
	assert.Empty(t, page.Items[0].Status)
}

func TestListPublic_Pagination(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	for _, title := range []string{"a", "b", "c"} {
		f.create(t, alice, published(title))
		f.advance(time.Minute)
	}

	size := 2
	page := 2
	got, err := f.svc.ListPublic(ctx, query.Params{Page: &page, PageSize: &size})
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "a", got.Items[0].Slug)

	page = 5
	got, err = f.svc.ListPublic(ctx, query.Params{Page: &page, PageSize: &size})
	require.NoError(t, err)
	assert.NotNil(t, got.Items)
	assert.Empty(t, got.Items)
}

func TestListPublic_TagAndSearch(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	in := published("Gorm tips")
	in.Tags = tags("Go")
	f.create(t, alice, in)
	in = published("Rust notes")
	in.Tags = tags("Rust")
	f.create(t, alice, in)
	f.create(t, alice, Input{Title: "Discount", BodyMD: "now 50% off", Status: str("published")})
	f.create(t, alice, Input{Title: "Ratio", BodyMD: "50 percent", Status: str("published")})

	got, err := f.svc.ListPublic(ctx, query.Params{Tag: "go"})
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "gorm-tips", got.Items[0].Slug)

	got, err = f.svc.ListPublic(ctx, query.Params{Tag: "Rust"})
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "rust-notes", got.Items[0].Slug)

	got, err = f.svc.ListPublic(ctx, query.Params{Q: "Gorm"})
	require.NoError(t, err)
	require.Len(t, got.Items, 1)

	got, err = f.svc.ListPublic(ctx, query.Params{Q: "gorm"})
	require.NoError(t, err)
	assert.Empty(t, got.Items)

	got, err = f.svc.ListPublic(ctx, query.Params{Q: "50%"})
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "discount", got.Items[0].Slug)
}

func TestListMine(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	f.create(t, alice, published("Published"))
	f.advance(time.Hour)
	f.create(t, alice, draft("Recent Draft"))
	f.create(t, bob, published("Bobs"))

	got, err := f.svc.ListMine(ctx, alice, query.Params{})
	require.NoError(t, err)
	assert.Equal(t, 20, got.PageSize)
	require.Len(t, got.Items, 2)
	assert.Equal(t, "recent-draft", got.Items[0].Slug)
	assert.Equal(t, models.StatusDraft, got.Items[0].Status)
	assert.NotNil(t, got.Items[0].UpdatedAt)
	assert.Equal(t, "published", got.Items[1].Slug)

	got, err = f.svc.ListMine(ctx, alice, query.Params{Status: "draft"})
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "recent-draft", got.Items[0].Slug)

	got, err = f.svc.ListMine(ctx, alice, query.Params{Status: "bogus", Visibility: "all"})
	require.NoError(t, err)
	assert.Len(t, got.Items, 2)

	_, err = f.svc.ListMine(ctx, nobody, query.Params{})
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestListTags_CountsPublishedPublicOnly(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	in := published("One")
	in.Tags = tags("Go", "DB")
	f.create(t, alice, in)
	in = published("Two")
	in.Tags = tags("go")
	f.create(t, alice, in)
	in = draft("Three")
	in.Tags = tags("go", "secret")
	f.create(t, alice, in)

	got, err := f.svc.ListTags(ctx)
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, "go", got[0].Slug)
	assert.Equal(t, "Go", got[0].Name)
	assert.Equal(t, int64(2), got[0].Count)
	assert.Equal(t, "db", got[1].Slug)
	assert.Equal(t, int64(1), got[1].Count)
	assert.Equal(t, "secret", got[2].Slug)
	assert.Equal(t, int64(0), got[2].Count)
}
