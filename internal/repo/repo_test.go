package repo

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/bioweaver/internal/model"
	appErr "github.com/xxxsen/bioweaver/internal/pkg/errors"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
		_ = conn.Close()
	})
	return conn, mock
}

func chapterRow() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "user_id", "title", "anchor_prompt", "segment_index", "audio_url",
		"transcript_text", "polished_text", "polished_by_model", "status", "created_at",
	})
}

func TestUserRepoCreateReturnsID(t *testing.T) {
	conn, mock := newMock(t)
	mock.ExpectQuery(`INSERT INTO .*users.* RETURNING id`).
		WithArgs(int64(100), "a@b.c", "Ann").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))

	user := &model.User{Name: "Ann", Email: "a@b.c", CreatedAt: 100}
	require.NoError(t, NewUserRepo(conn).Create(context.Background(), user))
	require.Equal(t, int64(7), user.ID)
}

func TestUserRepoCreateDuplicateEmail(t *testing.T) {
	conn, mock := newMock(t)
	mock.ExpectQuery(`INSERT INTO .*users`).WillReturnError(&pq.Error{Code: "23505"})

	err := NewUserRepo(conn).Create(context.Background(), &model.User{Name: "Ann", Email: "a@b.c"})
	require.ErrorIs(t, err, appErr.ErrConflict)
}

func TestUserRepoGetByIDNotFound(t *testing.T) {
	conn, mock := newMock(t)
	mock.ExpectQuery(`SELECT .* FROM .*users.* WHERE`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "created_at"}))

	_, err := NewUserRepo(conn).GetByID(context.Background(), 3)
	require.ErrorIs(t, err, appErr.ErrNotFound)
}

func TestUserRepoUpdateMissingRow(t *testing.T) {
	conn, mock := newMock(t)
	mock.ExpectExec(`UPDATE .*users.* SET`).WillReturnResult(sqlmock.NewResult(0, 0))

	err := NewUserRepo(conn).Update(context.Background(), &model.User{ID: 9, Name: "x", Email: "x@y.z"})
	require.ErrorIs(t, err, appErr.ErrNotFound)
}

func TestChapterRepoCreateUnknownUser(t *testing.T) {
	conn, mock := newMock(t)
	mock.ExpectQuery(`INSERT INTO .*chapters.* RETURNING id`).WillReturnError(&pq.Error{Code: "23503"})

	ch := &model.Chapter{UserID: 42, Title: "t", Status: model.ChapterStatusPending}
	err := NewChapterRepo(conn).Create(context.Background(), ch)
	require.ErrorIs(t, err, appErr.ErrNotFound)
}

func TestChapterRepoRejectsUnknownStatusOnWrite(t *testing.T) {
	conn, _ := newMock(t)
	err := NewChapterRepo(conn).Update(context.Background(), &model.Chapter{ID: 1, Status: "failed"})
	require.ErrorIs(t, err, appErr.ErrInvalid)
}

func TestChapterRepoGetByID(t *testing.T) {
	conn, mock := newMock(t)
	mock.ExpectQuery(`SELECT .* FROM .*chapters.* WHERE`).
		WillReturnRows(chapterRow().AddRow(1, 2, "Chapter 1", "The Stethoscope", 0, "/static/audio/a.wav",
			"I remember", nil, nil, "pending", 100))

	ch, err := NewChapterRepo(conn).GetByID(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, model.ChapterStatusPending, ch.Status)
	require.Equal(t, "The Stethoscope", ch.Anchor())
	require.Equal(t, "I remember", ch.Transcript())
	require.Nil(t, ch.PolishedText)
}

func TestChapterRepoRejectsUnknownStatusOnRead(t *testing.T) {
	conn, mock := newMock(t)
	mock.ExpectQuery(`SELECT .* FROM .*chapters`).
		WillReturnRows(chapterRow().AddRow(1, 2, "t", nil, 0, nil, nil, nil, nil, "archived", 100))

	_, err := NewChapterRepo(conn).GetByID(context.Background(), 1)
	require.Error(t, err)
}

func TestChapterRepoListByIDsEmptySkipsQuery(t *testing.T) {
	conn, _ := newMock(t)
	items, err := NewChapterRepo(conn).ListByIDs(context.Background(), 1, nil)
	require.NoError(t, err)
	require.Empty(t, items)
}

func TestChapterRepoListByIDsFiltersOwner(t *testing.T) {
	conn, mock := newMock(t)
	mock.ExpectQuery(`SELECT .* FROM .*chapters.* WHERE .*user_id.*ORDER BY segment_index asc, id asc`).
		WillReturnRows(chapterRow().
			AddRow(1, 1, "One", nil, 0, nil, "Text B", nil, nil, "pending", 100).
			AddRow(2, 1, "Two", nil, 1, nil, nil, "Text A", "m", "polished", 100))

	items, err := NewChapterRepo(conn).ListByIDs(context.Background(), 1, []int64{1, 2, 3})
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, model.ChapterStatusPolished, items[1].Status)
}

func TestBookRepoDelete(t *testing.T) {
	conn, mock := newMock(t)
	mock.ExpectExec(`DELETE FROM .*books`).WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, NewBookRepo(conn).Delete(context.Background(), 5))
}

func TestBookRepoCountAndList(t *testing.T) {
	conn, mock := newMock(t)
	mock.ExpectQuery(`SELECT count\(\*\) FROM .*books`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery(`SELECT .* FROM .*books.*ORDER BY created_at desc`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "title", "description", "pdf_url", "created_at"}).
			AddRow(4, 1, "Book", nil, "/static/books/x.txt", 100))

	repo := NewBookRepo(conn)
	n, err := repo.Count(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(3), n)

	books, err := repo.List(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, books, 1)
	require.Equal(t, "/static/books/x.txt", *books[0].PDFURL)
	require.Nil(t, books[0].Description)
}
