package service

import (
	"context"
	"fmt"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/bioweaver/internal/ai"
	"github.com/xxxsen/bioweaver/internal/filestore"
	"github.com/xxxsen/bioweaver/internal/model"
	"github.com/xxxsen/bioweaver/internal/notify"
	appErr "github.com/xxxsen/bioweaver/internal/pkg/errors"
)

type UserStore interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, userID int64) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	List(ctx context.Context) ([]model.User, error)
	Update(ctx context.Context, user *model.User) error
	Delete(ctx context.Context, userID int64) error
	Count(ctx context.Context) (int64, error)
}

type ChapterStore interface {
	Create(ctx context.Context, ch *model.Chapter) error
	GetByID(ctx context.Context, chapterID int64) (*model.Chapter, error)
	List(ctx context.Context, userID int64) ([]model.Chapter, error)
	ListByIDs(ctx context.Context, userID int64, ids []int64) ([]model.Chapter, error)
	ListPending(ctx context.Context, limit uint) ([]model.Chapter, error)
	Update(ctx context.Context, ch *model.Chapter) error
	Delete(ctx context.Context, chapterID int64) error
	Count(ctx context.Context) (int64, error)
}

type BookStore interface {
	Create(ctx context.Context, book *model.Book) error
	GetByID(ctx context.Context, bookID int64) (*model.Book, error)
	List(ctx context.Context, userID int64) ([]model.Book, error)
	Update(ctx context.Context, book *model.Book) error
	Delete(ctx context.Context, bookID int64) error
	Count(ctx context.Context) (int64, error)
}

type Transcriber interface {
	Transcribe(ctx context.Context, name string, open ai.AudioOpener) string
}

type Rewriter interface {
	Rewrite(ctx context.Context, anchor string, transcript string, model string) ai.Rewrite
}

type Notifier interface {
	Notify(ctx context.Context, msg notify.Message)
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, notify.Message) {}

func orNop(n Notifier) Notifier {
	if n == nil {
		return nopNotifier{}
	}
	return n
}

// removeArtifact deletes the blob behind url and only logs failures.
func removeArtifact(ctx context.Context, store filestore.Store, url *string) {
	key := filestore.KeyFromURL(model.Deref(url))
	if key == "" || store == nil {
		return
	}
	if err := store.Delete(ctx, key); err != nil {
		logutil.GetLogger(ctx).Warn("delete artifact failed",
			zap.String("kind", store.Kind()), zap.String("key", key), zap.Error(err))
	}
}

func internalErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", appErr.ErrInternal, op, err)
}
