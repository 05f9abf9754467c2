package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/xxxsen/bioweaver/internal/model"
	"github.com/xxxsen/bioweaver/internal/pkg/dbutil"
	appErr "github.com/xxxsen/bioweaver/internal/pkg/errors"
)

var chapterColumns = []string{
	"id", "user_id", "title", "anchor_prompt", "segment_index", "audio_url",
	"transcript_text", "polished_text", "polished_by_model", "status", "created_at",
}

const chapterOrder = "segment_index asc, id asc"

type ChapterRepo struct {
	db *sql.DB
}

func NewChapterRepo(db *sql.DB) *ChapterRepo {
	return &ChapterRepo{db: db}
}

func (r *ChapterRepo) Create(ctx context.Context, ch *model.Chapter) error {
	if !ch.Status.Valid() {
		return appErr.ErrInvalid
	}
	data := map[string]interface{}{
		"user_id":           ch.UserID,
		"title":             ch.Title,
		"anchor_prompt":     ch.AnchorPrompt,
		"segment_index":     ch.SegmentIndex,
		"audio_url":         ch.AudioURL,
		"transcript_text":   ch.TranscriptText,
		"polished_text":     ch.PolishedText,
		"polished_by_model": ch.PolishedByModel,
		"status":            string(ch.Status),
		"created_at":        ch.CreatedAt,
	}
	id, err := insertReturningID(ctx, r.db, "chapters", data)
	if err != nil {
		return err
	}
	ch.ID = id
	return nil
}

func (r *ChapterRepo) GetByID(ctx context.Context, chapterID int64) (*model.Chapter, error) {
	items, err := r.query(ctx, map[string]interface{}{"id": chapterID, "_limit": []uint{0, 1}})
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, appErr.ErrNotFound
	}
	return &items[0], nil
}

// List returns chapters in book order, userID 0 lists every user.
func (r *ChapterRepo) List(ctx context.Context, userID int64) ([]model.Chapter, error) {
	where := map[string]interface{}{"_orderby": chapterOrder}
	if userID > 0 {
		where["user_id"] = userID
	}
	return r.query(ctx, where)
}

// ListByIDs keeps only the ids owned by userID.
func (r *ChapterRepo) ListByIDs(ctx context.Context, userID int64, ids []int64) ([]model.Chapter, error) {
	if len(ids) == 0 {
		return []model.Chapter{}, nil
	}
	where := map[string]interface{}{
		"user_id":  userID,
		"id in":    toInterfaces(ids),
		"_orderby": chapterOrder,
	}
	return r.query(ctx, where)
}

// ListPending returns the oldest pending chapters that already carry a transcript.
func (r *ChapterRepo) ListPending(ctx context.Context, limit uint) ([]model.Chapter, error) {
	where := map[string]interface{}{
		"status":             string(model.ChapterStatusPending),
		"transcript_text !=": "",
		"_orderby":           "id asc",
		"_limit":             []uint{0, limit},
	}
	return r.query(ctx, where)
}

func (r *ChapterRepo) Update(ctx context.Context, ch *model.Chapter) error {
	if !ch.Status.Valid() {
		return appErr.ErrInvalid
	}
	where := map[string]interface{}{"id": ch.ID}
	update := map[string]interface{}{
		"title":             ch.Title,
		"anchor_prompt":     ch.AnchorPrompt,
		"segment_index":     ch.SegmentIndex,
		"audio_url":         ch.AudioURL,
		"transcript_text":   ch.TranscriptText,
		"polished_text":     ch.PolishedText,
		"polished_by_model": ch.PolishedByModel,
		"status":            string(ch.Status),
	}
	sqlStr, args, err := builder.BuildUpdate("chapters", where, update)
	if err != nil {
		return err
	}
	return execAffected(ctx, r.db, sqlStr, args)
}

func (r *ChapterRepo) Delete(ctx context.Context, chapterID int64) error {
	sqlStr, args, err := builder.BuildDelete("chapters", map[string]interface{}{"id": chapterID})
	if err != nil {
		return err
	}
	return execAffected(ctx, r.db, sqlStr, args)
}

func (r *ChapterRepo) Count(ctx context.Context) (int64, error) {
	return countRows(ctx, r.db, "chapters")
}

func (r *ChapterRepo) query(ctx context.Context, where map[string]interface{}) ([]model.Chapter, error) {
	sqlStr, args, err := builder.BuildSelect("chapters", where, chapterColumns)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	items := make([]model.Chapter, 0)
	for rows.Next() {
		var ch model.Chapter
		if err := rows.Scan(&ch.ID, &ch.UserID, &ch.Title, &ch.AnchorPrompt, &ch.SegmentIndex, &ch.AudioURL,
			&ch.TranscriptText, &ch.PolishedText, &ch.PolishedByModel, &ch.Status, &ch.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, ch)
	}
	return items, rows.Err()
}
