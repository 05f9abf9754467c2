package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/xxxsen/bioweaver/internal/pkg/dbutil"
	appErr "github.com/xxxsen/bioweaver/internal/pkg/errors"
)

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// insertReturningID runs a gendry insert and reads back the generated id.
func insertReturningID(ctx context.Context, db *sql.DB, table string, data map[string]interface{}) (int64, error) {
	sqlStr, args, err := builder.BuildInsert(table, []map[string]interface{}{data})
	if err != nil {
		return 0, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr+" RETURNING id", args)
	var id int64
	if err := db.QueryRowContext(ctx, sqlStr, args...).Scan(&id); err != nil {
		return 0, mapWriteErr(err)
	}
	return id, nil
}

func countRows(ctx context.Context, db *sql.DB, table string) (int64, error) {
	sqlStr, args, err := builder.BuildSelect(table, nil, []string{"count(*)"})
	if err != nil {
		return 0, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	var n int64
	if err := db.QueryRowContext(ctx, sqlStr, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func execAffected(ctx context.Context, db *sql.DB, sqlStr string, args []interface{}) error {
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	result, err := db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return mapWriteErr(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}

func mapWriteErr(err error) error {
	switch {
	case dbutil.IsConflict(err):
		return appErr.ErrConflict
	case dbutil.IsForeignKeyViolation(err):
		return appErr.ErrNotFound
	}
	return err
}

func toInterfaces(ids []int64) []interface{} {
	out := make([]interface{}, 0, len(ids))
	for _, id := range ids {
		out = append(out, id)
	}
	return out
}
