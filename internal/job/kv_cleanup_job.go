package job

import (
	"context"
	"database/sql"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/notesync/internal/kvstore"
)

const JobKVCleanup = "kv_cleanup"

// KVCleanupJob drops expired dedup claims from the postgres kv table.
type KVCleanupJob struct {
	db  *sql.DB
	now func() time.Time
}

func NewKVCleanupJob(db *sql.DB) *KVCleanupJob {
	return &KVCleanupJob{db: db, now: time.Now}
}

func (j *KVCleanupJob) Name() string {
	return JobKVCleanup
}

func (j *KVCleanupJob) Run(ctx context.Context) error {
	if j.db == nil {
		return nil
	}
	removed, err := kvstore.PurgeExpired(ctx, j.db, j.now())
	if err != nil {
		return err
	}
	if removed > 0 {
		logutil.GetLogger(ctx).Info("expired kv entries purged", zap.Int64("count", removed))
	}
	return nil
}
