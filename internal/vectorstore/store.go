// Package vectorstore owns the in-memory story mirror and its durable copy.
// The mirror is the authoritative read path: a write is visible to queries as
// soon as Put returns, even if the durable table is unavailable. The durable
// chunk table is an advisory, eventually-consistent copy rebuilt wholesale on
// structural changes.
package vectorstore

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/DekelUsach/Proyecto-final-de-seminario/internal/model"
	appErr "github.com/DekelUsach/Proyecto-final-de-seminario/internal/pkg/errors"
	"github.com/DekelUsach/Proyecto-final-de-seminario/internal/tablestore"
)

const (
	chunkTableName   = "story_chunks"
	snapshotFileName = "memory-cache.json"
)

type snapshotMeta struct {
	LastAssignedStoryID int64 `json:"last_assigned_story_id"`
}

type snapshotFile struct {
	Stories map[string]*model.StoryEntry `json:"stories"`
	Meta    snapshotMeta                 `json:"meta"`
}

// RetrievalStore is the process-scoped home of all mutable retrieval state:
// the mirror, the story-id counter and the durable table handles. All
// mutation goes through its methods.
type RetrievalStore struct {
	mu           sync.RWMutex
	stories      map[string]*model.StoryEntry
	lastID       int64
	idReady      bool
	snapshotPath string

	// rewriteMu serializes destructive drop+recreate paths on the durable
	// table; they are not safe to interleave with each other.
	rewriteMu sync.Mutex
	tables    *tablestore.Store
}

// Open restores the snapshot best-effort: an unreadable or malformed file
// leaves the mirror empty and the counter uninitialized instead of failing.
func Open(dataDir string, tables *tablestore.Store) (*RetrievalStore, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, err
	}
	s := &RetrievalStore{
		stories:      make(map[string]*model.StoryEntry),
		lastID:       -1,
		snapshotPath: filepath.Join(dataDir, snapshotFileName),
		tables:       tables,
	}
	s.restore()
	return s, nil
}

// Close flushes the mirror to the snapshot file.
func (s *RetrievalStore) Close(ctx context.Context) error {
	return s.Flush(ctx)
}

// Flush persists the snapshot. It takes the write lock: every snapshot write
// shares the same temp file, so two writers must never interleave.
func (s *RetrievalStore) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveSnapshotLocked(ctx)
}

func (s *RetrievalStore) restore() {
	data, err := os.ReadFile(s.snapshotPath)
	if err != nil {
		return
	}
	var snap snapshotFile
	if err := json.Unmarshal(data, &snap); err != nil {
		logutil.GetLogger(context.Background()).Warn("snapshot unreadable, starting empty", zap.Error(err))
		return
	}
	for sid, entry := range snap.Stories {
		if entry == nil || len(entry.Rows) == 0 {
			continue
		}
		switch entry.EmbedKind {
		case "":
			entry.EmbedKind = model.EmbedKindLocal
		case "gemini": // legacy snapshot tag
			entry.EmbedKind = model.EmbedKindRemote
		}
		entry.StoryID = sid
		s.stories[sid] = entry
	}
	if snap.Meta.LastAssignedStoryID >= 0 {
		s.lastID = snap.Meta.LastAssignedStoryID
		s.idReady = true
	}
}

// saveSnapshotLocked writes the snapshot atomically; callers hold s.mu.
// Snapshot failures are logged, never propagated: losing the snapshot only
// costs mirror warm-up after a restart.
func (s *RetrievalStore) saveSnapshotLocked(ctx context.Context) error {
	snap := snapshotFile{
		Stories: s.stories,
		Meta:    snapshotMeta{LastAssignedStoryID: s.lastID},
	}
	data, err := json.Marshal(&snap)
	if err != nil {
		logutil.GetLogger(ctx).Warn("marshal snapshot failed", zap.Error(err))
		return nil
	}
	tmp := s.snapshotPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		logutil.GetLogger(ctx).Warn("write snapshot failed", zap.Error(err))
		return nil
	}
	if err := os.Rename(tmp, s.snapshotPath); err != nil {
		logutil.GetLogger(ctx).Warn("rename snapshot failed", zap.Error(err))
	}
	return nil
}

// Get returns the mirror entry for a story. Entries are immutable once
// published; callers must not modify the returned rows.
func (s *RetrievalStore) Get(storyID string) (*model.StoryEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.stories[storyID]
	return entry, ok
}

// Put atomically replaces the mirror entry for the story, persists the
// snapshot, then best-effort upserts the durable table. Durable rows of an
// earlier version of the story are replaced, not kept alongside; a vector
// dimension conflict on the durable side triggers RebuildTable.
func (s *RetrievalStore) Put(ctx context.Context, storyID string, rows []model.ChunkRow, kind model.EmbedKind, dim int) error {
	if len(rows) == 0 || dim <= 0 {
		return appErr.ErrInvalid
	}
	entry := &model.StoryEntry{
		StoryID:   storyID,
		EmbedKind: kind,
		Dim:       dim,
		Rows:      rows,
	}
	s.mu.Lock()
	s.stories[storyID] = entry
	s.saveSnapshotLocked(ctx)
	s.mu.Unlock()

	if err := s.durableUpsert(ctx, storyID, rows); err != nil {
		logutil.GetLogger(ctx).Warn("durable upsert failed, mirror remains authoritative",
			zap.String("story_id", storyID), zap.Error(err))
	}
	return nil
}

func (s *RetrievalStore) durableUpsert(ctx context.Context, storyID string, rows []model.ChunkRow) error {
	s.rewriteMu.Lock()
	defer s.rewriteMu.Unlock()
	ok, err := s.tables.HasTable(ctx, chunkTableName)
	if err != nil {
		return err
	}
	if !ok {
		return s.tables.CreateTable(ctx, chunkTableName, rows)
	}
	table, err := s.tables.OpenTable(ctx, chunkTableName)
	if err != nil {
		return err
	}
	all, err := table.ToArray(ctx)
	if err != nil {
		return err
	}
	kept := make([]model.ChunkRow, 0, len(all))
	for _, r := range all {
		if r.StoryID != storyID {
			kept = append(kept, r)
		}
	}
	if len(kept) < len(all) {
		// a re-indexed story reuses its chunk ids, and a shorter version
		// must not leave stale trailing chunks; rewrite instead of inserting
		if err := s.rebuildTableLocked(ctx, append(kept, rows...)); err != nil {
			if appErr.IsDimensionMismatch(err) {
				logutil.GetLogger(ctx).Warn("vector dimension changed, rebuilding chunk table")
				return s.rebuildTableLocked(ctx, rows)
			}
			return err
		}
		return nil
	}
	if err := table.Add(ctx, rows); err != nil {
		if appErr.IsDimensionMismatch(err) {
			logutil.GetLogger(ctx).Warn("vector dimension changed, rebuilding chunk table")
			return s.rebuildTableLocked(ctx, rows)
		}
		return err
	}
	return nil
}

// RebuildTable is the named destructive repair path: the durable table is
// dropped and recreated from the given rows only. Consistent, never silently
// corrupt; rows of other stories are re-added as their mirrors flush.
func (s *RetrievalStore) RebuildTable(ctx context.Context, rows []model.ChunkRow) error {
	s.rewriteMu.Lock()
	defer s.rewriteMu.Unlock()
	return s.rebuildTableLocked(ctx, rows)
}

func (s *RetrievalStore) rebuildTableLocked(ctx context.Context, rows []model.ChunkRow) error {
	if err := s.tables.DropTable(ctx, chunkTableName); err != nil {
		return err
	}
	if len(rows) == 0 {
		// empty table cannot be created without a schema row; the next
		// indexing call recreates it
		return nil
	}
	return s.tables.CreateTable(ctx, chunkTableName, rows)
}

// Delete removes the story from the mirror and rewrites the durable table
// without its rows. Deleting an unknown story succeeds.
func (s *RetrievalStore) Delete(ctx context.Context, storyID string) error {
	s.mu.Lock()
	delete(s.stories, storyID)
	s.saveSnapshotLocked(ctx)
	s.mu.Unlock()

	if err := s.durableDelete(ctx, storyID); err != nil {
		logutil.GetLogger(ctx).Warn("durable delete failed", zap.String("story_id", storyID), zap.Error(err))
	}
	return nil
}

func (s *RetrievalStore) durableDelete(ctx context.Context, storyID string) error {
	s.rewriteMu.Lock()
	defer s.rewriteMu.Unlock()
	ok, err := s.tables.HasTable(ctx, chunkTableName)
	if err != nil || !ok {
		return err
	}
	table, err := s.tables.OpenTable(ctx, chunkTableName)
	if err != nil {
		return err
	}
	all, err := table.ToArray(ctx)
	if err != nil {
		return err
	}
	kept := all[:0]
	for _, r := range all {
		if r.StoryID != storyID {
			kept = append(kept, r)
		}
	}
	if len(kept) == len(all) {
		return nil
	}
	return s.rebuildTableLocked(ctx, kept)
}

// Exists prefers the mirror and falls back to scanning the durable table.
func (s *RetrievalStore) Exists(ctx context.Context, storyID string) bool {
	s.mu.RLock()
	entry, ok := s.stories[storyID]
	s.mu.RUnlock()
	if ok && len(entry.Rows) > 0 {
		return true
	}
	rows, err := s.DurableRows(ctx)
	if err != nil {
		return false
	}
	for _, r := range rows {
		if r.StoryID == storyID {
			return true
		}
	}
	return false
}

// List prefers the mirror; with a cold mirror it aggregates durable rows.
func (s *RetrievalStore) List(ctx context.Context) []model.StoryInfo {
	s.mu.RLock()
	infos := make([]model.StoryInfo, 0, len(s.stories))
	for sid, entry := range s.stories {
		title := ""
		if len(entry.Rows) > 0 {
			title = entry.Rows[0].Title
		}
		infos = append(infos, model.StoryInfo{StoryID: sid, Title: title, Chunks: len(entry.Rows)})
	}
	s.mu.RUnlock()
	if len(infos) == 0 {
		infos = s.listFromDurable(ctx)
	}
	sort.SliceStable(infos, func(i, j int) bool {
		return storyIDNum(infos[i].StoryID) < storyIDNum(infos[j].StoryID)
	})
	return infos
}

func (s *RetrievalStore) listFromDurable(ctx context.Context) []model.StoryInfo {
	rows, err := s.DurableRows(ctx)
	if err != nil {
		return nil
	}
	byStory := make(map[string]*model.StoryInfo)
	var order []string
	for _, r := range rows {
		info, ok := byStory[r.StoryID]
		if !ok {
			info = &model.StoryInfo{StoryID: r.StoryID}
			byStory[r.StoryID] = info
			order = append(order, r.StoryID)
		}
		info.Chunks++
		if info.Title == "" && r.Title != "" {
			info.Title = r.Title
		}
	}
	infos := make([]model.StoryInfo, 0, len(order))
	for _, sid := range order {
		infos = append(infos, *byStory[sid])
	}
	return infos
}

// AllocateStoryID hands out strictly increasing ids. The counter initializes
// lazily from the maximum of mirror keys and durable rows, never decreases,
// and is persisted with the snapshot.
func (s *RetrievalStore) AllocateStoryID(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.idReady {
		maxID := int64(-1)
		for sid := range s.stories {
			if n := storyIDNum(sid); n > maxID {
				maxID = n
			}
		}
		if rows, err := s.DurableRows(ctx); err == nil {
			for _, r := range rows {
				if n := storyIDNum(r.StoryID); n > maxID {
					maxID = n
				}
			}
		}
		s.lastID = maxID
		s.idReady = true
	}
	s.lastID++
	s.saveSnapshotLocked(ctx)
	return s.lastID, nil
}

// DurableRows reads the full durable chunk table; an absent table yields an
// empty result.
func (s *RetrievalStore) DurableRows(ctx context.Context) ([]model.ChunkRow, error) {
	ok, err := s.tables.HasTable(ctx, chunkTableName)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	table, err := s.tables.OpenTable(ctx, chunkTableName)
	if err != nil {
		return nil, err
	}
	return table.ToArray(ctx)
}

// DurableSearch runs a broad similarity query against the durable table for
// the cold-mirror fallback path.
func (s *RetrievalStore) DurableSearch(ctx context.Context, vector []float32, limit int) ([]model.ChunkRow, error) {
	table, err := s.tables.OpenTable(ctx, chunkTableName)
	if err != nil {
		return nil, err
	}
	return table.Search(ctx, vector, limit)
}

func storyIDNum(storyID string) int64 {
	n, err := strconv.ParseInt(storyID, 10, 64)
	if err != nil || n < 0 {
		return -1
	}
	return n
}
