package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/deusflow/newsdigest/internal/news"
)

type repeatCounter struct {
	Count    int       `json:"count"`
	LastSeen time.Time `json:"last_seen"`
}

type cachedAssessment struct {
	Assessment news.Assessment `json:"assessment"`
	CreatedAt  time.Time       `json:"created_at"`
}

type fileState struct {
	SourceQuality  map[string]news.SourceQuality `json:"source_quality"`
	RepeatCounters map[string]repeatCounter      `json:"repeat_counters"`
	Assessments    map[string]cachedAssessment   `json:"assessments"`
}

// FileStore keeps the whole history in one JSON file.
type FileStore struct {
	filePath string
	window   time.Duration
	now      func() time.Time

	mu    sync.RWMutex
	state fileState
}

func NewFileStore(filePath string, window time.Duration) *FileStore {
	return &FileStore{
		filePath: filePath,
		window:   window,
		now:      time.Now,
		state: fileState{
			SourceQuality:  map[string]news.SourceQuality{},
			RepeatCounters: map[string]repeatCounter{},
			Assessments:    map[string]cachedAssessment{},
		},
	}
}

// Load reads the file if it exists. A missing or empty file is an empty history.
func (fs *FileStore) Load() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	data, err := os.ReadFile(fs.filePath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read history file: %w", err)
	}
	if len(data) == 0 {
		return nil
	}

	var st fileState
	if err := json.Unmarshal(data, &st); err != nil {
		return fmt.Errorf("unmarshal history file: %w", err)
	}
	if st.SourceQuality != nil {
		fs.state.SourceQuality = st.SourceQuality
	}
	if st.RepeatCounters != nil {
		fs.state.RepeatCounters = st.RepeatCounters
	}
	if st.Assessments != nil {
		fs.state.Assessments = st.Assessments
	}
	return nil
}

func (fs *FileStore) LoadSnapshot(_ context.Context) (Snapshot, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	snap := emptySnapshot()
	for id, q := range fs.state.SourceQuality {
		snap.SourceQuality[id] = q
	}
	now := fs.now()
	for key, c := range fs.state.RepeatCounters {
		if !stale(c.LastSeen, now, fs.window) {
			snap.RepeatCounts[key] = c.Count
		}
	}
	return snap, nil
}

func (fs *FileStore) SaveWriteBack(_ context.Context, wb WriteBack) error {
	fs.mu.Lock()
	at := wb.At
	if at.IsZero() {
		at = fs.now()
	}
	for _, q := range wb.SourceQuality {
		if q.UpdatedAt.IsZero() {
			q.UpdatedAt = at
		}
		fs.state.SourceQuality[q.SourceID] = q
	}
	for key, c := range fs.state.RepeatCounters {
		if stale(c.LastSeen, at, fs.window) {
			delete(fs.state.RepeatCounters, key)
		}
	}
	for key, n := range wb.Reservations {
		if n <= 0 {
			continue
		}
		c := fs.state.RepeatCounters[key]
		c.Count += n
		c.LastSeen = at
		fs.state.RepeatCounters[key] = c
	}
	fs.mu.Unlock()

	return fs.Save()
}

func (fs *FileStore) GetAssessment(_ context.Context, cacheKey string) (news.Assessment, bool, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	c, ok := fs.state.Assessments[cacheKey]
	return c.Assessment, ok, nil
}

// PutAssessment updates memory only; PruneAssessments or SaveWriteBack flushes to disk.
func (fs *FileStore) PutAssessment(_ context.Context, a news.Assessment) error {
	if a.CacheKey == "" {
		return fmt.Errorf("assessment for %s has no cache key", a.ArticleID)
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.state.Assessments[a.CacheKey] = cachedAssessment{Assessment: a, CreatedAt: fs.now()}
	return nil
}

func (fs *FileStore) PruneAssessments(_ context.Context, keep int) (int, error) {
	fs.mu.Lock()
	removed := 0
	if keep >= 0 && len(fs.state.Assessments) > keep {
		keys := make([]string, 0, len(fs.state.Assessments))
		for k := range fs.state.Assessments {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool {
			ti, tj := fs.state.Assessments[keys[i]].CreatedAt, fs.state.Assessments[keys[j]].CreatedAt
			if !ti.Equal(tj) {
				return ti.After(tj)
			}
			return keys[i] < keys[j]
		})
		for _, k := range keys[keep:] {
			delete(fs.state.Assessments, k)
			removed++
		}
	}
	fs.mu.Unlock()

	return removed, fs.Save()
}

// Save writes the current state through a temp file and rename.
func (fs *FileStore) Save() error {
	fs.mu.RLock()
	data, err := json.MarshalIndent(fs.state, "", "  ")
	fs.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}

	if dir := filepath.Dir(fs.filePath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create history dir: %w", err)
		}
	}
	tmp := fs.filePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write history file: %w", err)
	}
	if err := os.Rename(tmp, fs.filePath); err != nil {
		return fmt.Errorf("replace history file: %w", err)
	}
	return nil
}

func (fs *FileStore) Close() error { return nil }
