package service

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/google/uuid"
	"github.com/xxxsen/common/logutil"
	"github.com/yuin/goldmark"
	"go.uber.org/zap"

	"github.com/xxxsen/bioweaver/internal/config"
	"github.com/xxxsen/bioweaver/internal/filestore"
	"github.com/xxxsen/bioweaver/internal/model"
	"github.com/xxxsen/bioweaver/internal/notify"
	appErr "github.com/xxxsen/bioweaver/internal/pkg/errors"
	"github.com/xxxsen/bioweaver/internal/pkg/timeutil"
)

type BookService struct {
	chapters ChapterStore
	books    BookStore
	store    filestore.Store
	notifier Notifier
	format   string
	markdown goldmark.Markdown
}

func NewBookService(chapters ChapterStore, books BookStore, store filestore.Store, notifier Notifier, format string) *BookService {
	if format == "" {
		format = config.BookFormatText
	}
	return &BookService{
		chapters: chapters,
		books:    books,
		store:    store,
		notifier: orNop(notifier),
		format:   format,
		markdown: goldmark.New(),
	}
}

type GenerateBookInput struct {
	UserID     int64   `json:"user_id"`
	Title      string  `json:"title"`
	ChapterIDs []int64 `json:"chapter_ids"`
}

type GeneratedBook struct {
	Message   string  `json:"message"`
	BookID    int64   `json:"book_id"`
	BookTitle string  `json:"book_title"`
	Chapters  []int64 `json:"chapters"`
	BookURL   string  `json:"book_url"`
}

type BookPatch struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	PDFURL      *string `json:"pdf_url"`
}

// Generate assembles the user's chapters among in.ChapterIDs into one artifact.
// Ids owned by someone else are dropped; nothing left means not found.
func (s *BookService) Generate(ctx context.Context, in GenerateBookInput) (*GeneratedBook, error) {
	title := strings.TrimSpace(in.Title)
	if in.UserID <= 0 || title == "" {
		return nil, appErr.ErrInvalid
	}
	chapters, err := s.chapters.ListByIDs(ctx, in.UserID, in.ChapterIDs)
	if err != nil {
		return nil, err
	}
	if len(chapters) == 0 {
		return nil, fmt.Errorf("%w: no chapters found for user", appErr.ErrNotFound)
	}
	body := AssembleBook(chapters)
	content, ext, err := s.render(title, body)
	if err != nil {
		return nil, internalErr("render book", err)
	}
	key := uuid.NewString() + ext
	if err := s.store.Save(ctx, key, bytes.NewReader(content), int64(len(content))); err != nil {
		return nil, internalErr("save book", err)
	}
	url := s.store.URL(key)
	book := &model.Book{
		UserID:    in.UserID,
		Title:     title,
		PDFURL:    &url,
		CreatedAt: timeutil.NowUnix(),
	}
	if err := s.books.Create(ctx, book); err != nil {
		if delErr := s.store.Delete(ctx, key); delErr != nil {
			logutil.GetLogger(ctx).Warn("remove orphan book failed", zap.String("key", key), zap.Error(delErr))
		}
		return nil, err
	}
	included := make([]int64, 0, len(chapters))
	for _, ch := range chapters {
		included = append(included, ch.ID)
	}
	logutil.GetLogger(ctx).Info("book generated",
		zap.Int64("book_id", book.ID), zap.Int64("user_id", in.UserID), zap.Int("chapters", len(included)))
	s.notifier.Notify(ctx, notify.Message{
		Subject:  "BioWeaver book generated: " + title,
		Text:     fmt.Sprintf("Book generated: user %d, title '%s', url %s", in.UserID, title, url),
		MailBody: fmt.Sprintf("User %d generated book with chapters %v\nURL: %s", in.UserID, included, url),
	})
	return &GeneratedBook{
		Message:   "book generated",
		BookID:    book.ID,
		BookTitle: title,
		Chapters:  included,
		BookURL:   url,
	}, nil
}

// AssembleBook renders chapters, already in book order, as markdown sections.
func AssembleBook(chapters []model.Chapter) string {
	parts := make([]string, 0, len(chapters))
	for i := range chapters {
		parts = append(parts, fmt.Sprintf("# %s\n\n%s\n", chapters[i].Title, chapters[i].BookText()))
	}
	return strings.Join(parts, "\n\n")
}

func (s *BookService) render(title string, body string) ([]byte, string, error) {
	if s.format != config.BookFormatHTML {
		return []byte(body), ".txt", nil
	}
	var buf bytes.Buffer
	buf.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n<title>")
	buf.WriteString(html.EscapeString(title))
	buf.WriteString("</title>\n</head>\n<body>\n")
	if err := s.markdown.Convert([]byte(body), &buf); err != nil {
		return nil, "", err
	}
	buf.WriteString("</body>\n</html>\n")
	return buf.Bytes(), ".html", nil
}

func (s *BookService) Get(ctx context.Context, bookID int64) (*model.Book, error) {
	return s.books.GetByID(ctx, bookID)
}

func (s *BookService) List(ctx context.Context, userID int64) ([]model.Book, error) {
	return s.books.List(ctx, userID)
}

func (s *BookService) Update(ctx context.Context, bookID int64, patch BookPatch) (*model.Book, error) {
	book, err := s.books.GetByID(ctx, bookID)
	if err != nil {
		return nil, err
	}
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return nil, appErr.ErrInvalid
		}
		book.Title = title
	}
	if patch.Description != nil {
		book.Description = patch.Description
	}
	if patch.PDFURL != nil {
		book.PDFURL = patch.PDFURL
	}
	if err := s.books.Update(ctx, book); err != nil {
		return nil, err
	}
	return book, nil
}

func (s *BookService) Delete(ctx context.Context, bookID int64) error {
	book, err := s.books.GetByID(ctx, bookID)
	if err != nil {
		return err
	}
	if err := s.books.Delete(ctx, bookID); err != nil {
		return err
	}
	removeArtifact(ctx, s.store, book.PDFURL)
	return nil
}
