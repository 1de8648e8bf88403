// Package colors gives every published task a stable calendar event
// color. The calendar offers eleven event colors; once all are taken the
// least recently used one is recycled.
package colors

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/harrisonrobin/lwtt/pkg/clock"
)

const (
	cacheFile   = "colors.json"
	paletteSize = 11
)

type TaskColor struct {
	ColorID  string    `json:"color_id"`
	LastUsed time.Time `json:"last_used"`
}

type ColorCache struct {
	Path  string
	Tasks map[string]*TaskColor
	clock clock.Clock
	dirty bool
}

// DefaultPath is colors.json next to the data file.
func DefaultPath(dataFile string) string {
	return filepath.Join(filepath.Dir(dataFile), cacheFile)
}

func NewColorCache(path string, clk clock.Clock) (*ColorCache, error) {
	if clk == nil {
		clk = clock.Real()
	}
	cache := &ColorCache{
		Path:  path,
		Tasks: make(map[string]*TaskColor),
		clock: clk,
	}

	if _, err := os.Stat(path); err == nil {
		if err := cache.Load(); err != nil {
			return nil, err
		}
	}
	return cache, nil
}

func (c *ColorCache) Load() error {
	f, err := os.Open(c.Path)
	if err != nil {
		return err
	}
	defer f.Close()
	tasks := make(map[string]*TaskColor)
	if err := json.NewDecoder(f).Decode(&tasks); err != nil {
		return err
	}
	c.Tasks = tasks
	c.dirty = false
	return nil
}

func (c *ColorCache) Save() error {
	if !c.dirty {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(c.Path), 0700); err != nil {
		return err
	}

	f, err := os.Create(c.Path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := json.NewEncoder(f).Encode(c.Tasks); err != nil {
		return err
	}
	c.dirty = false
	return nil
}

// ColorID returns the event color of a task, assigning one on first use.
func (c *ColorCache) ColorID(taskID int) string {
	key := strconv.Itoa(taskID)
	if state, ok := c.Tasks[key]; ok {
		state.LastUsed = c.now()
		c.dirty = true
		return state.ColorID
	}
	return c.assignColor(key)
}

// Forget drops every task not in keep and reports how many were dropped,
// freeing their colors.
func (c *ColorCache) Forget(keep []int) int {
	live := make(map[string]bool, len(keep))
	for _, id := range keep {
		live[strconv.Itoa(id)] = true
	}
	dropped := 0
	for key := range c.Tasks {
		if !live[key] {
			delete(c.Tasks, key)
			dropped++
		}
	}
	if dropped > 0 {
		c.dirty = true
	}
	return dropped
}

func (c *ColorCache) assignColor(key string) string {
	now := c.now()
	used := make(map[string]bool)
	for _, s := range c.Tasks {
		used[s.ColorID] = true
	}

	for i := 1; i <= paletteSize; i++ {
		id := strconv.Itoa(i)
		if !used[id] {
			c.Tasks[key] = &TaskColor{ColorID: id, LastUsed: now}
			c.dirty = true
			return id
		}
	}

	// Palette full: recycle the least recently used color. Ties go to
	// the smaller task id so the choice does not depend on map order.
	var oldest string
	for k, s := range c.Tasks {
		if oldest == "" || s.LastUsed.Before(c.Tasks[oldest].LastUsed) ||
			(s.LastUsed.Equal(c.Tasks[oldest].LastUsed) && lessID(k, oldest)) {
			oldest = k
		}
	}
	recycled := c.Tasks[oldest].ColorID
	delete(c.Tasks, oldest)
	c.Tasks[key] = &TaskColor{ColorID: recycled, LastUsed: now}
	c.dirty = true
	return recycled
}

func (c *ColorCache) now() time.Time {
	if c.clock == nil {
		return time.Now()
	}
	return c.clock.Now()
}

func lessID(a, b string) bool {
	x, _ := strconv.Atoi(a)
	y, _ := strconv.Atoi(b)
	return x < y
}
