package service

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/bioweaver/internal/model"
	appErr "github.com/xxxsen/bioweaver/internal/pkg/errors"
)

func TestUserCreateAndDuplicateEmail(t *testing.T) {
	db := newMemDB()
	audio, _ := newLocalStore(t, "audio")
	books, _ := newLocalStore(t, "books")
	notes := &recNotifier{}
	svc := NewUserService(memUsers{db}, memChapters{db}, memBooks{db}, audio, books, notes)

	u, err := svc.Create(context.Background(), "Ann", " Ann@Example.com ")
	require.NoError(t, err)
	require.Equal(t, "ann@example.com", u.Email)
	require.Equal(t, []string{"New user created: ann@example.com"}, notes.texts())

	_, err = svc.Create(context.Background(), "Other", "ann@example.com")
	require.ErrorIs(t, err, appErr.ErrConflict)

	_, err = svc.Create(context.Background(), "", "x@example.com")
	require.ErrorIs(t, err, appErr.ErrInvalid)
	_, err = svc.Create(context.Background(), "x", "not-an-email")
	require.ErrorIs(t, err, appErr.ErrInvalid)
}

func TestUserUpdateEmailConflict(t *testing.T) {
	db := newMemDB()
	svc := NewUserService(memUsers{db}, memChapters{db}, memBooks{db}, nil, nil, nil)
	a, err := svc.Create(context.Background(), "A", "a@example.com")
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), "B", "b@example.com")
	require.NoError(t, err)

	taken := "b@example.com"
	_, err = svc.Update(context.Background(), a.ID, UserPatch{Email: &taken})
	require.ErrorIs(t, err, appErr.ErrConflict)

	same := "a@example.com"
	name := "Alice"
	got, err := svc.Update(context.Background(), a.ID, UserPatch{Email: &same, Name: &name})
	require.NoError(t, err)
	require.Equal(t, "Alice", got.Name)

	_, err = svc.Update(context.Background(), 999, UserPatch{Name: &name})
	require.ErrorIs(t, err, appErr.ErrNotFound)
}

func TestUserDeleteCascadesAndRemovesFiles(t *testing.T) {
	db := newMemDB()
	audio, audioDir := newLocalStore(t, "audio")
	books, _ := newLocalStore(t, "books")
	svc := NewUserService(memUsers{db}, memChapters{db}, memBooks{db}, audio, books, nil)
	userID := db.addUser(t, "u", "u@example.com")

	require.NoError(t, audio.Save(context.Background(), "clip.wav", strings.NewReader("x"), 1))
	url := audio.URL("clip.wav")
	db.addChapter(t, model.Chapter{UserID: userID, Title: "t", AudioURL: &url})
	missing := "/static/books/none.txt"
	require.NoError(t, memBooks{db}.Create(context.Background(), &model.Book{UserID: userID, Title: "b", PDFURL: &missing}))

	require.NoError(t, svc.Delete(context.Background(), userID))
	count, _ := memChapters{db}.Count(context.Background())
	require.Zero(t, count)
	count, _ = memBooks{db}.Count(context.Background())
	require.Zero(t, count)
	_, err := os.Stat(filepath.Join(audioDir, "clip.wav"))
	require.True(t, os.IsNotExist(err))

	require.ErrorIs(t, svc.Delete(context.Background(), userID), appErr.ErrNotFound)
}

func TestStats(t *testing.T) {
	db := newMemDB()
	user := db.addUser(t, "u", "u@example.com")
	db.addChapter(t, model.Chapter{UserID: user, Title: "t"})
	stats, err := NewStatsService(memUsers{db}, memChapters{db}, memBooks{db}).Stats(context.Background())
	require.NoError(t, err)
	require.Equal(t, &Stats{Users: 1, Chapters: 1, Books: 0}, stats)
}
