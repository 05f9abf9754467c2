package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/bioweaver/internal/middleware"
)

type RouterDeps struct {
	Users           *UserHandler
	Chapters        *ChapterHandler
	Books           *BookHandler
	Admin           *AdminHandler
	Files           *FileHandler
	AdminToken      string
	UploadRateLimit time.Duration
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	api.GET("/health", Ping)

	api.POST("/upload_audio", middleware.RateLimit(deps.UploadRateLimit), deps.Chapters.Upload)
	api.GET("/chapters", deps.Chapters.List)
	api.GET("/get_chapters", deps.Chapters.List)
	api.GET("/chapters/:id", deps.Chapters.Get)
	api.PATCH("/chapters/:id", deps.Chapters.Update)
	api.DELETE("/chapters/:id", deps.Chapters.Delete)
	api.POST("/chapters/:id/transcribe", deps.Chapters.Transcribe)
	api.POST("/chapters/:id/polish", deps.Chapters.Polish)

	api.POST("/generate_book", deps.Books.Generate)
	api.GET("/books", deps.Books.List)
	api.GET("/books/:id", deps.Books.Get)
	api.PATCH("/books/:id", deps.Books.Update)
	api.DELETE("/books/:id", deps.Books.Delete)

	api.GET("/users", deps.Users.List)
	api.POST("/users", deps.Users.Create)
	api.GET("/users/:id", deps.Users.Get)
	api.PATCH("/users/:id", deps.Users.Update)
	api.DELETE("/users/:id", deps.Users.Delete)

	api.GET("/static/audio/:key", deps.Files.Audio)
	api.GET("/static/books/:key", deps.Files.Book)

	admin := api.Group("/admin")
	admin.Use(middleware.AdminToken(deps.AdminToken))
	admin.GET("/stats", deps.Admin.Stats)
	admin.POST("/seed_demo", deps.Admin.SeedDemo)
	admin.POST("/clear_demo", deps.Admin.ClearDemo)
	admin.GET("/health", deps.Admin.Health)
}
