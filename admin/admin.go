package admin

import (
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"quill/accounts"
	"quill/apperr"
	"quill/auth"
	"quill/posts"
)

// AdminModule serves the author's write side: login, post management and
// media uploads.
type AdminModule struct {
	accounts  *accounts.Service
	posts     *posts.Service
	tokens    *auth.Tokens
	tokenTTL  time.Duration
	uploadDir string
}

func NewAdminModule(accountService *accounts.Service, postService *posts.Service, tokens *auth.Tokens, tokenTTL time.Duration, uploadDir string) *AdminModule {
	return &AdminModule{
		accounts:  accountService,
		posts:     postService,
		tokens:    tokens,
		tokenTTL:  tokenTTL,
		uploadDir: uploadDir,
	}
}

func (a *AdminModule) RegisterRoutes(router *gin.Engine) {
	router.POST("/api/auth/login", a.login)

	adminGroup := router.Group("/api")
	adminGroup.Use(a.tokens.RequireUser)
	{
		adminGroup.POST("/posts", a.createPost)
		adminGroup.GET("/posts/:id", a.editPost)
		adminGroup.PUT("/posts/:id", a.updatePost)
		adminGroup.DELETE("/posts/:id", a.deletePost)
		adminGroup.POST("/posts/:id/publish", a.publishPost)
		adminGroup.POST("/media", a.uploadMedia)
	}
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (a *AdminModule) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Respond(c, apperr.BadRequestf("username and password are required"))
		return
	}

	user, err := a.accounts.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	token, err := a.tokens.Issue(user.ID, a.tokenTTL)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": token})
}

func bindInput(c *gin.Context) (posts.Input, bool) {
	var in posts.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		apperr.Respond(c, apperr.Wrap(apperr.BadRequest, "invalid JSON body", err))
		return in, false
	}
	return in, true
}

func (a *AdminModule) createPost(c *gin.Context) {
	in, ok := bindInput(c)
	if !ok {
		return
	}

	post, err := a.posts.Create(c.Request.Context(), auth.CallerOf(c), in)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": post.ID, "slug": post.Slug})
}

func (a *AdminModule) editPost(c *gin.Context) {
	detail, err := a.posts.GetOwn(c.Request.Context(), auth.CallerOf(c), c.Param("id"))
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (a *AdminModule) updatePost(c *gin.Context) {
	in, ok := bindInput(c)
	if !ok {
		return
	}

	if err := a.posts.Update(c.Request.Context(), auth.CallerOf(c), c.Param("id"), in); err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (a *AdminModule) publishPost(c *gin.Context) {
	if err := a.posts.Publish(c.Request.Context(), auth.CallerOf(c), c.Param("id")); err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (a *AdminModule) deletePost(c *gin.Context) {
	if err := a.posts.Delete(c.Request.Context(), auth.CallerOf(c), c.Param("id")); err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// uploadMedia stores every file of a multipart form under the upload
// directory and returns their public URLs.
func (a *AdminModule) uploadMedia(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		apperr.Respond(c, apperr.Wrap(apperr.BadRequest, "malformed multipart body", err))
		return
	}

	if err := os.MkdirAll(a.uploadDir, 0755); err != nil {
		apperr.Respond(c, err)
		return
	}

	saved := []string{}
	for _, files := range form.File {
		for _, file := range files {
			name := uploadName(file.Filename)
			if err := c.SaveUploadedFile(file, filepath.Join(a.uploadDir, name)); err != nil {
				apperr.Respond(c, err)
				return
			}
			log.Printf("Saved upload %s (%d bytes)", name, file.Size)
			saved = append(saved, "/uploads/"+name)
		}
	}

	c.JSON(http.StatusOK, gin.H{"files": saved})
}

// uploadName keeps only the base name of a client-supplied file name.
// Names that are empty or hidden are replaced by a random one.
func uploadName(filename string) string {
	name := filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	if name == "." || name == "/" || name == "" || strings.HasPrefix(name, ".") {
		return "f-" + uuid.NewString()
	}
	return name
}
