package dbutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFinalize_RewritesLimitAndPlaceholders(t *testing.T) {
	query, args := Finalize("SELECT member FROM kv_sorted_sets WHERE key=? ORDER BY score, member LIMIT ?,?", []interface{}{"NotesQueue", 0, 75})
	require.Equal(t, "SELECT member FROM kv_sorted_sets WHERE key=$1 ORDER BY score, member LIMIT $2 OFFSET $3", query)
	require.Equal(t, []interface{}{"NotesQueue", 75, 0}, args)
}

func TestFinalize_LeavesPlainStatements(t *testing.T) {
	query, args := Finalize("DELETE FROM kv_entries WHERE key=?", []interface{}{"a"})
	require.Equal(t, "DELETE FROM kv_entries WHERE key=$1", query)
	require.Equal(t, []interface{}{"a"}, args)
}

func TestFinalize_QuotesIdentifiersForPostgres(t *testing.T) {
	query, _ := Finalize("SELECT `value` FROM `kv_entries` WHERE (`key`=?)", []interface{}{"k"})
	require.Equal(t, `SELECT "value" FROM "kv_entries" WHERE ("key"=$1)`, query)
}
