package dbutil

import (
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/require"
)

func TestFinalizeRebindsPlaceholders(t *testing.T) {
	query, args := Finalize("SELECT id FROM chapters WHERE user_id = ? AND status = ?", []interface{}{int64(1), "pending"})
	require.Equal(t, "SELECT id FROM chapters WHERE user_id = $1 AND status = $2", query)
	require.Equal(t, []interface{}{int64(1), "pending"}, args)
}

func TestFinalizeRewritesMysqlLimit(t *testing.T) {
	query, args := Finalize("SELECT id FROM chapters WHERE user_id = ? LIMIT ?,?", []interface{}{int64(1), uint(20), uint(10)})
	require.Equal(t, "SELECT id FROM chapters WHERE user_id = $1 LIMIT $2 OFFSET $3", query)
	require.Equal(t, []interface{}{int64(1), uint(10), uint(20)}, args)
}

func TestPostgresErrorCodes(t *testing.T) {
	require.True(t, IsConflict(&pq.Error{Code: "23505"}))
	require.True(t, IsConflict(fmt.Errorf("insert user: %w", &pq.Error{Code: "23505"})))
	require.False(t, IsConflict(&pq.Error{Code: "23503"}))
	require.True(t, IsForeignKeyViolation(&pq.Error{Code: "23503"}))
	require.False(t, IsForeignKeyViolation(fmt.Errorf("plain")))
}
