package main

import (
	"log"

	"github.com/gin-gonic/gin"

	"quill/accounts"
	"quill/admin"
	"quill/auth"
	"quill/blog"
	"quill/common"
	"quill/database"
	"quill/me"
	"quill/posts"
	"quill/site"
)

func main() {
	cfg, err := common.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	db, err := common.ConnectDb(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	if err := database.RunMigrations(db); err != nil {
		log.Fatal("Failed to run migrations:", err)
	}

	tokens := auth.NewTokens(cfg.JWTSecret)
	accountService := accounts.NewService(db)
	postService := posts.NewService(db)

	router := gin.Default()

	router.Static("/uploads", cfg.UploadDir)

	adminModule := admin.NewAdminModule(accountService, postService, tokens, cfg.TokenTTL, cfg.UploadDir)
	adminModule.RegisterRoutes(router)

	blogModule := blog.NewBlogModule(postService, tokens)
	blogModule.RegisterRoutes(router)

	meModule := me.NewMeModule(accountService, postService, tokens)
	meModule.RegisterRoutes(router)

	siteModule := site.NewSiteModule(db, cfg.SiteBase)
	siteModule.RegisterRoutes(router)

	log.Printf("Starting server on %s...", cfg.Bind)
	if err := router.Run(cfg.Bind); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
