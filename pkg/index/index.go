// Package index remembers which calendar event each task was published
// to, so republishing patches the event instead of searching for it.
package index

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

const indexFile = "events.json"

type EventIndex struct {
	Mappings map[string]string `json:"mappings"`
	Path     string            `json:"-"`
	mu       sync.RWMutex
	dirty    bool
}

// DefaultPath is events.json next to the data file.
func DefaultPath(dataFile string) string {
	return filepath.Join(filepath.Dir(dataFile), indexFile)
}

// NewEventIndex opens the index at path, loading it if it exists.
func NewEventIndex(path string) (*EventIndex, error) {
	idx := &EventIndex{
		Mappings: make(map[string]string),
		Path:     path,
	}

	if _, err := os.Stat(path); err == nil {
		if err := idx.Load(); err != nil {
			return nil, err
		}
	}
	return idx, nil
}

func (idx *EventIndex) Load() error {
	f, err := os.Open(idx.Path)
	if err != nil {
		return err
	}
	defer f.Close()

	idx.mu.Lock()
	defer idx.mu.Unlock()
	mappings := make(map[string]string)
	if err := json.NewDecoder(f).Decode(&mappings); err != nil {
		return err
	}
	idx.Mappings = mappings
	idx.dirty = false
	return nil
}

// Save writes the index if it changed since the last load or save.
func (idx *EventIndex) Save() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if !idx.dirty {
		return nil
	}

	dir := filepath.Dir(idx.Path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	f, err := os.Create(idx.Path)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(idx.Mappings); err != nil {
		return err
	}
	idx.dirty = false
	return nil
}

// Key is the mapping key for a task published on day ("2006-01-02").
func Key(taskID int, day string) string {
	return strconv.Itoa(taskID) + "@" + day
}

func taskOf(key string) string {
	id, _, _ := strings.Cut(key, "@")
	return id
}

// Get returns the event a task was published to on day, or "".
func (idx *EventIndex) Get(taskID int, day string) string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.Mappings[Key(taskID, day)]
}

func (idx *EventIndex) Set(taskID int, day string, eventID string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	key := Key(taskID, day)
	if idx.Mappings[key] != eventID {
		idx.Mappings[key] = eventID
		idx.dirty = true
	}
}

// Remove forgets every day a task was published on.
func (idx *EventIndex) Remove(taskID int) {
	idx.Prune(nil, taskID)
}

// Orphans returns the events of every task not in keep, by task id.
func (idx *EventIndex) Orphans(keep []int) map[int][]string {
	live := make(map[int]bool, len(keep))
	for _, id := range keep {
		live[id] = true
	}
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	out := make(map[int][]string)
	for key, eventID := range idx.Mappings {
		id, err := strconv.Atoi(taskOf(key))
		if err != nil || live[id] {
			continue
		}
		out[id] = append(out[id], eventID)
	}
	return out
}

// Prune forgets every task not in keep, and every task in drop, and
// reports how many mappings were deleted. A nil keep keeps everything
// not dropped.
func (idx *EventIndex) Prune(keep []int, drop ...int) int {
	var live map[string]bool
	if keep != nil {
		live = make(map[string]bool, len(keep))
		for _, id := range keep {
			live[strconv.Itoa(id)] = true
		}
	}
	dead := make(map[string]bool, len(drop))
	for _, id := range drop {
		dead[strconv.Itoa(id)] = true
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	dropped := 0
	for key := range idx.Mappings {
		id := taskOf(key)
		if dead[id] || (live != nil && !live[id]) {
			delete(idx.Mappings, key)
			dropped++
		}
	}
	if dropped > 0 {
		idx.dirty = true
	}
	return dropped
}
