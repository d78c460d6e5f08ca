package memory

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// LocalStore implements Store with file persistence: a JSON index for entry
// metadata and a binary file for the vectors themselves.
type LocalStore struct {
	mu       sync.RWMutex
	entries  map[string]Entry
	dir      string
	metaFile string
	vecFile  string
}

// NewLocalStore opens (or creates) a file-backed store under dir.
func NewLocalStore(dir string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create memory dir: %w", err)
	}

	s := &LocalStore{
		entries:  make(map[string]Entry),
		dir:      dir,
		metaFile: filepath.Join(dir, "index.json"),
		vecFile:  filepath.Join(dir, "vectors.bin"),
	}

	// A missing or unreadable index means a fresh store.
	_ = s.load()
	return s, nil
}

// Add stores an entry and persists the store.
func (s *LocalStore) Add(ctx context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = generateID(entry.Text)
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	s.entries[entry.ID] = entry
	return s.persist()
}

// Search finds entries similar to vector, honoring the query filters.
func (s *LocalStore) Search(ctx context.Context, vector []float32, q SearchQuery) ([]SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []SearchResult
	for _, entry := range s.entries {
		if !q.admit(entry) || len(entry.Vector) == 0 {
			continue
		}
		results = append(results, SearchResult{
			Entry: entry,
			Score: cosineSimilarity(vector, entry.Vector),
		})
	}

	sortByScore(results)
	if q.TopK > 0 && len(results) > q.TopK {
		results = results[:q.TopK]
	}
	return results, nil
}

// Delete removes an entry by ID.
func (s *LocalStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[id]; !ok {
		return nil
	}
	delete(s.entries, id)
	return s.persist()
}

// Count returns total entries.
func (s *LocalStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries), nil
}

// Close persists any pending state.
func (s *LocalStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persist()
}

// persist writes the metadata index and the vector file. Callers hold the
// write lock.
func (s *LocalStore) persist() error {
	metas := make([]Entry, 0, len(s.entries))
	offsets := make(map[string][2]int64, len(s.entries)) // id -> offset, dim

	vf, err := os.Create(s.vecFile)
	if err != nil {
		return fmt.Errorf("create vector file: %w", err)
	}
	defer vf.Close()

	var offset int64
	for _, e := range s.entries {
		if len(e.Vector) > 0 {
			if err := binary.Write(vf, binary.LittleEndian, e.Vector); err != nil {
				return fmt.Errorf("write vectors: %w", err)
			}
			offsets[e.ID] = [2]int64{offset, int64(len(e.Vector))}
			offset += int64(len(e.Vector)) * 4
		}
		meta := e
		meta.Vector = nil
		metas = append(metas, meta)
	}

	index := struct {
		Entries []Entry             `json:"entries"`
		Offsets map[string][2]int64 `json:"offsets"`
	}{metas, offsets}

	data, err := json.Marshal(index)
	if err != nil {
		return fmt.Errorf("marshal index: %w", err)
	}
	if err := os.WriteFile(s.metaFile, data, 0644); err != nil {
		return fmt.Errorf("write index: %w", err)
	}
	return nil
}

func (s *LocalStore) load() error {
	data, err := os.ReadFile(s.metaFile)
	if err != nil {
		return err
	}

	var index struct {
		Entries []Entry             `json:"entries"`
		Offsets map[string][2]int64 `json:"offsets"`
	}
	if err := json.Unmarshal(data, &index); err != nil {
		return err
	}

	vf, err := os.Open(s.vecFile)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	if vf != nil {
		defer vf.Close()
	}

	for _, e := range index.Entries {
		if vf != nil {
			if od, ok := index.Offsets[e.ID]; ok {
				vec := make([]float32, od[1])
				if _, err := vf.Seek(od[0], io.SeekStart); err == nil {
					if err := binary.Read(vf, binary.LittleEndian, vec); err == nil {
						e.Vector = vec
					}
				}
			}
		}
		s.entries[e.ID] = e
	}
	return nil
}

var _ Store = (*LocalStore)(nil)
