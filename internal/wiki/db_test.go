package wiki

import (
	"testing"

	"github.com/xxxsen/notesync/internal/testutil"
)

func TestDBStore(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()
	exerciseStore(t, NewDB(db))
}
