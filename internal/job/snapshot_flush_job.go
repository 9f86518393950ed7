package job

import (
	"context"

	"github.com/DekelUsach/Proyecto-final-de-seminario/internal/vectorstore"
)

// SnapshotFlushJob periodically rewrites the mirror snapshot so an unclean
// shutdown loses at most one interval of indexing.
type SnapshotFlushJob struct {
	store *vectorstore.RetrievalStore
}

func NewSnapshotFlushJob(store *vectorstore.RetrievalStore) *SnapshotFlushJob {
	return &SnapshotFlushJob{store: store}
}

func (j *SnapshotFlushJob) Name() string {
	return "snapshot_flush"
}

func (j *SnapshotFlushJob) Run(ctx context.Context) error {
	if j.store == nil {
		return nil
	}
	return j.store.Flush(ctx)
}
