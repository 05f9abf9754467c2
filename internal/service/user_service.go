package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/bioweaver/internal/filestore"
	"github.com/xxxsen/bioweaver/internal/model"
	"github.com/xxxsen/bioweaver/internal/notify"
	appErr "github.com/xxxsen/bioweaver/internal/pkg/errors"
	"github.com/xxxsen/bioweaver/internal/pkg/timeutil"
)

type UserService struct {
	users    UserStore
	chapters ChapterStore
	books    BookStore
	audio    filestore.Store
	bookFile filestore.Store
	notifier Notifier
}

func NewUserService(users UserStore, chapters ChapterStore, books BookStore, audio filestore.Store, bookFile filestore.Store, notifier Notifier) *UserService {
	return &UserService{
		users:    users,
		chapters: chapters,
		books:    books,
		audio:    audio,
		bookFile: bookFile,
		notifier: orNop(notifier),
	}
}

type UserPatch struct {
	Name  *string `json:"name"`
	Email *string `json:"email"`
}

func (s *UserService) Create(ctx context.Context, name, email string) (*model.User, error) {
	name = strings.TrimSpace(name)
	email = normalizeEmail(email)
	if name == "" || !validEmail(email) {
		return nil, appErr.ErrInvalid
	}
	if err := s.ensureEmailFree(ctx, email, 0); err != nil {
		return nil, err
	}
	user := &model.User{Name: name, Email: email, CreatedAt: timeutil.NowUnix()}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	s.notifier.Notify(ctx, notify.Message{Text: "New user created: " + user.Email})
	return user, nil
}

func (s *UserService) Get(ctx context.Context, userID int64) (*model.User, error) {
	return s.users.GetByID(ctx, userID)
}

func (s *UserService) List(ctx context.Context) ([]model.User, error) {
	return s.users.List(ctx)
}

func (s *UserService) Update(ctx context.Context, userID int64, patch UserPatch) (*model.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, appErr.ErrInvalid
		}
		user.Name = name
	}
	if patch.Email != nil {
		email := normalizeEmail(*patch.Email)
		if !validEmail(email) {
			return nil, appErr.ErrInvalid
		}
		if email != user.Email {
			if err := s.ensureEmailFree(ctx, email, user.ID); err != nil {
				return nil, err
			}
		}
		user.Email = email
	}
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Delete removes the user; chapters and books go with it through the foreign
// keys, their files are removed afterwards on a best effort basis.
func (s *UserService) Delete(ctx context.Context, userID int64) error {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return err
	}
	chapters, err := s.chapters.List(ctx, userID)
	if err != nil {
		return err
	}
	books, err := s.books.List(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.users.Delete(ctx, userID); err != nil {
		return err
	}
	for i := range chapters {
		removeArtifact(ctx, s.audio, chapters[i].AudioURL)
	}
	for i := range books {
		removeArtifact(ctx, s.bookFile, books[i].PDFURL)
	}
	logutil.GetLogger(ctx).Info("user deleted", zap.Int64("user_id", userID),
		zap.Int("chapters", len(chapters)), zap.Int("books", len(books)))
	return nil
}

func (s *UserService) ensureEmailFree(ctx context.Context, email string, selfID int64) error {
	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, appErr.ErrNotFound) {
			return nil
		}
		return err
	}
	if existing.ID == selfID {
		return nil
	}
	return fmt.Errorf("%w: email already exists", appErr.ErrConflict)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validEmail(email string) bool {
	at := strings.Index(email, "@")
	return at > 0 && at < len(email)-1 && !strings.ContainsAny(email, " \t\r\n")
}
