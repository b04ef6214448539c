package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"siteimage/internal/repository"
)

// FileName is the tag index document kept at the storage root.
const FileName = "tags.json"

// TagRepository keeps the tag index as one JSON document: {"<tag>": ["<public_id>", ...]}.
//
// Every mutation reads the whole document, changes it in memory and writes it back through
// a temp file and rename. The mutex serializes writers within this process only; two
// processes sharing a storage root can still lose updates, so run a single writer per root
// or use the postgres index.
type TagRepository struct {
	path string
	mu   sync.Mutex
}

var _ repository.TagRepository = (*TagRepository)(nil)

// NewTagRepository returns an index stored at {root}/tags.json. The file is created on
// the first write.
func NewTagRepository(root string) *TagRepository {
	return &TagRepository{path: filepath.Join(root, FileName)}
}

// Path returns the location of the index document.
func (r *TagRepository) Path() string { return r.path }

func (r *TagRepository) Add(ctx context.Context, publicID string, tags []string) error {
	if len(tags) == 0 {
		return nil
	}
	return r.update(func(index map[string][]string) {
		for _, tag := range tags {
			tag = strings.TrimSpace(tag)
			if tag == "" {
				continue
			}
			index[tag] = append(index[tag], publicID)
		}
	})
}

func (r *TagRepository) Tagged(ctx context.Context, tag string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	index, err := r.load()
	if err != nil {
		return nil, err
	}
	return normalize(index[tag]), nil
}

func (r *TagRepository) TagsFor(ctx context.Context, publicID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	index, err := r.load()
	if err != nil {
		return nil, err
	}
	tags := make([]string, 0)
	for tag, ids := range index {
		if slices.Contains(ids, publicID) {
			tags = append(tags, tag)
		}
	}
	slices.Sort(tags)
	return tags, nil
}

func (r *TagRepository) Remove(ctx context.Context, publicID string) error {
	return r.update(func(index map[string][]string) {
		for tag, ids := range index {
			index[tag] = slices.DeleteFunc(ids, func(id string) bool { return id == publicID })
		}
	})
}

func (r *TagRepository) Rename(ctx context.Context, from, to string) error {
	return r.update(func(index map[string][]string) {
		for tag, ids := range index {
			for i, id := range ids {
				if id == from {
					ids[i] = to
				}
			}
			index[tag] = ids
		}
	})
}

func (r *TagRepository) Clear(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.Remove(r.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove tag index: %w", err)
	}
	return nil
}

func (r *TagRepository) update(mutate func(map[string][]string)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	index, err := r.load()
	if err != nil {
		return err
	}
	mutate(index)
	for tag, ids := range index {
		ids = normalize(ids)
		if len(ids) == 0 {
			delete(index, tag)
			continue
		}
		index[tag] = ids
	}
	return r.flush(index)
}

// load reads the document; a missing file is an empty index.
func (r *TagRepository) load() (map[string][]string, error) {
	index := make(map[string][]string)
	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return index, nil
		}
		return nil, fmt.Errorf("read tag index: %w", err)
	}
	if len(data) == 0 {
		return index, nil
	}
	if err := json.Unmarshal(data, &index); err != nil {
		return nil, fmt.Errorf("decode tag index: %w", err)
	}
	return index, nil
}

func (r *TagRepository) flush(index map[string][]string) error {
	data, err := json.MarshalIndent(index, "", "  ")
	if err != nil {
		return fmt.Errorf("encode tag index: %w", err)
	}

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create index directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".tags-*.json")
	if err != nil {
		return fmt.Errorf("create temp index: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp index: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp index: %w", err)
	}
	if err := os.Rename(tmpName, r.path); err != nil {
		return fmt.Errorf("replace tag index: %w", err)
	}
	return nil
}

func normalize(ids []string) []string {
	out := slices.Clone(ids)
	slices.Sort(out)
	out = slices.Compact(out)
	if out == nil {
		return []string{}
	}
	return out
}
