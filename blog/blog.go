package blog

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"quill/apperr"
	"quill/auth"
	"quill/posts"
	"quill/query"
)

// BlogModule serves the public read side: listings, post detail and tags.
type BlogModule struct {
	posts  *posts.Service
	tokens *auth.Tokens
}

func NewBlogModule(postService *posts.Service, tokens *auth.Tokens) *BlogModule {
	return &BlogModule{posts: postService, tokens: tokens}
}

func (b *BlogModule) RegisterRoutes(router *gin.Engine) {
	router.GET("/health", b.health)

	api := router.Group("/api")
	{
		api.GET("/posts", b.listPosts)
		api.GET("/posts/slug/:slug", b.tokens.OptionalUser, b.post)
		api.GET("/tags", b.listTags)
	}
}

func (b *BlogModule) health(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

func (b *BlogModule) listPosts(c *gin.Context) {
	page, err := b.posts.ListPublic(c.Request.Context(), query.ParseParams(c.Request.URL.Query()))
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// post answers NotFound for anything the caller may not read, so drafts and
// private posts look the same as missing ones.
func (b *BlogModule) post(c *gin.Context) {
	detail, err := b.posts.GetBySlug(c.Request.Context(), auth.CallerOf(c), c.Param("slug"))
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (b *BlogModule) listTags(c *gin.Context) {
	tags, err := b.posts.ListTags(c.Request.Context())
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, tags)
}
