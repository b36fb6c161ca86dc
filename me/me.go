package me

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"quill/accounts"
	"quill/apperr"
	"quill/auth"
	"quill/posts"
	"quill/query"
)

// MeModule serves the signed-in author's own profile and post list.
type MeModule struct {
	accounts *accounts.Service
	posts    *posts.Service
	tokens   *auth.Tokens
}

func NewMeModule(accountService *accounts.Service, postService *posts.Service, tokens *auth.Tokens) *MeModule {
	return &MeModule{accounts: accountService, posts: postService, tokens: tokens}
}

func (m *MeModule) RegisterRoutes(router *gin.Engine) {
	meGroup := router.Group("/api/me")
	meGroup.Use(m.tokens.RequireUser)
	{
		meGroup.GET("", m.profile)
		meGroup.PUT("", m.updateProfile)
		meGroup.GET("/posts", m.listPosts)
	}
}

func (m *MeModule) userID(c *gin.Context) string {
	id, _ := auth.CallerOf(c).ID()
	return id
}

func (m *MeModule) profile(c *gin.Context) {
	user, err := m.accounts.Get(c.Request.Context(), m.userID(c))
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (m *MeModule) updateProfile(c *gin.Context) {
	var patch accounts.Patch
	if err := c.ShouldBindJSON(&patch); err != nil {
		apperr.Respond(c, apperr.Wrap(apperr.BadRequest, "invalid JSON body", err))
		return
	}

	if err := m.accounts.Update(c.Request.Context(), m.userID(c), patch); err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (m *MeModule) listPosts(c *gin.Context) {
	page, err := m.posts.ListMine(c.Request.Context(), auth.CallerOf(c), query.ParseParams(c.Request.URL.Query()))
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}
