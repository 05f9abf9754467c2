package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/xxxsen/bioweaver/internal/model"
	"github.com/xxxsen/bioweaver/internal/pkg/dbutil"
	appErr "github.com/xxxsen/bioweaver/internal/pkg/errors"
)

var bookColumns = []string{"id", "user_id", "title", "description", "pdf_url", "created_at"}

type BookRepo struct {
	db *sql.DB
}

func NewBookRepo(db *sql.DB) *BookRepo {
	return &BookRepo{db: db}
}

func (r *BookRepo) Create(ctx context.Context, book *model.Book) error {
	data := map[string]interface{}{
		"user_id":     book.UserID,
		"title":       book.Title,
		"description": book.Description,
		"pdf_url":     book.PDFURL,
		"created_at":  book.CreatedAt,
	}
	id, err := insertReturningID(ctx, r.db, "books", data)
	if err != nil {
		return err
	}
	book.ID = id
	return nil
}

func (r *BookRepo) GetByID(ctx context.Context, bookID int64) (*model.Book, error) {
	items, err := r.query(ctx, map[string]interface{}{"id": bookID, "_limit": []uint{0, 1}})
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, appErr.ErrNotFound
	}
	return &items[0], nil
}

// List returns newest books first, userID 0 lists every user.
func (r *BookRepo) List(ctx context.Context, userID int64) ([]model.Book, error) {
	where := map[string]interface{}{"_orderby": "created_at desc, id desc"}
	if userID > 0 {
		where["user_id"] = userID
	}
	return r.query(ctx, where)
}

func (r *BookRepo) Update(ctx context.Context, book *model.Book) error {
	where := map[string]interface{}{"id": book.ID}
	update := map[string]interface{}{
		"title":       book.Title,
		"description": book.Description,
		"pdf_url":     book.PDFURL,
	}
	sqlStr, args, err := builder.BuildUpdate("books", where, update)
	if err != nil {
		return err
	}
	return execAffected(ctx, r.db, sqlStr, args)
}

func (r *BookRepo) Delete(ctx context.Context, bookID int64) error {
	sqlStr, args, err := builder.BuildDelete("books", map[string]interface{}{"id": bookID})
	if err != nil {
		return err
	}
	return execAffected(ctx, r.db, sqlStr, args)
}

func (r *BookRepo) Count(ctx context.Context) (int64, error) {
	return countRows(ctx, r.db, "books")
}

func (r *BookRepo) query(ctx context.Context, where map[string]interface{}) ([]model.Book, error) {
	sqlStr, args, err := builder.BuildSelect("books", where, bookColumns)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	items := make([]model.Book, 0)
	for rows.Next() {
		var book model.Book
		if err := rows.Scan(&book.ID, &book.UserID, &book.Title, &book.Description, &book.PDFURL, &book.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, book)
	}
	return items, rows.Err()
}
