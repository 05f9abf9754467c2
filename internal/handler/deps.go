package handler

import (
	"context"

	"github.com/xxxsen/bioweaver/internal/model"
	"github.com/xxxsen/bioweaver/internal/service"
)

type UserService interface {
	Create(ctx context.Context, name, email string) (*model.User, error)
	Get(ctx context.Context, userID int64) (*model.User, error)
	List(ctx context.Context) ([]model.User, error)
	Update(ctx context.Context, userID int64, patch service.UserPatch) (*model.User, error)
	Delete(ctx context.Context, userID int64) error
}

type ChapterService interface {
	Upload(ctx context.Context, in service.UploadInput) (*model.Chapter, error)
	Polish(ctx context.Context, chapterID int64, modelName string) (*model.Chapter, error)
	SubmitTranscript(ctx context.Context, chapterID int64, text string, anchor string, modelName string) (*model.Chapter, error)
	Get(ctx context.Context, chapterID int64) (*model.Chapter, error)
	List(ctx context.Context, userID int64) ([]model.Chapter, error)
	Update(ctx context.Context, chapterID int64, patch service.ChapterPatch) (*model.Chapter, error)
	Delete(ctx context.Context, chapterID int64) error
}

type BookService interface {
	Generate(ctx context.Context, in service.GenerateBookInput) (*service.GeneratedBook, error)
	Get(ctx context.Context, bookID int64) (*model.Book, error)
	List(ctx context.Context, userID int64) ([]model.Book, error)
	Update(ctx context.Context, bookID int64, patch service.BookPatch) (*model.Book, error)
	Delete(ctx context.Context, bookID int64) error
}

type StatsService interface {
	Stats(ctx context.Context) (*service.Stats, error)
}

type SeedService interface {
	SeedDemo(ctx context.Context) (*service.SeedResult, error)
	ClearDemo(ctx context.Context) (*service.ClearResult, error)
}

type HealthService interface {
	Collect(ctx context.Context, deep bool) *service.HealthReport
}
