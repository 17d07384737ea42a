package similarity

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

const (
	patternCacheFile  = "pattern_embeddings.json"
	solutionCacheFile = "solution_embeddings.json"
)

// cacheEntry is the on-disk form of one indexed item:
// id → {embedding, text, contexts}.
type cacheEntry struct {
	Embedding []float32 `json:"embedding"`
	Text      string    `json:"text"`
	Contexts  []string  `json:"contexts"`
}

// index holds the three parallel in-memory maps for one item kind.
type index struct {
	embeddings map[string][]float32
	texts      map[string]string
	contexts   map[string]map[string]struct{}
}

func newIndex() *index {
	return &index{
		embeddings: make(map[string][]float32),
		texts:      make(map[string]string),
		contexts:   make(map[string]map[string]struct{}),
	}
}

func (ix *index) put(id, text string, embedding []float32, contexts []string) {
	ix.embeddings[id] = embedding
	ix.texts[id] = text
	if existing, ok := ix.contexts[id]; ok && len(contexts) > 0 {
		// Repeated adds union their context tags.
		for _, t := range contexts {
			existing[t] = struct{}{}
		}
	} else {
		ix.contexts[id] = tagSet(contexts)
	}
}

func (ix *index) remove(id string) bool {
	if _, ok := ix.embeddings[id]; !ok {
		return false
	}
	delete(ix.embeddings, id)
	delete(ix.texts, id)
	delete(ix.contexts, id)
	return true
}

// loadCache reads one cache file into a fresh index. A missing file is an
// empty index; any present file must parse, since silently ignoring a
// corrupt cache would strand every previously stored vector.
func loadCache(path string) (*index, error) {
	ix := newIndex()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ix, nil
		}
		return nil, fmt.Errorf("reading cache %s: %w", path, err)
	}
	if len(data) == 0 {
		return ix, nil
	}

	var entries map[string]cacheEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parsing cache %s: %w", path, err)
	}

	for id, e := range entries {
		ix.embeddings[id] = e.Embedding
		ix.texts[id] = e.Text
		ix.contexts[id] = tagSet(e.Contexts)
	}
	return ix, nil
}

// saveCache rewrites one cache file in full from the index.
func saveCache(path string, ix *index) error {
	entries := make(map[string]cacheEntry, len(ix.embeddings))
	for id, embedding := range ix.embeddings {
		entries[id] = cacheEntry{
			Embedding: embedding,
			Text:      ix.texts[id],
			Contexts:  sortedTags(ix.contexts[id]),
		}
	}

	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encoding cache %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing cache %s: %w", path, err)
	}
	return nil
}

func sortedTags(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	tags := make([]string, 0, len(set))
	for t := range set {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return tags
}

// probeWritable verifies the cache directory accepts writes. Failing here
// aborts startup: every subsequent flush would silently fail otherwise.
func probeWritable(dir string) error {
	f, err := os.CreateTemp(dir, ".probe-*")
	if err != nil {
		return fmt.Errorf("cache directory %s is not writable: %w", dir, err)
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}

func cachePath(dir, file string) string {
	return filepath.Join(dir, file)
}
