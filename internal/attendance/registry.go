package attendance

import (
	"context"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"rfidattend/internal/errclass"
)

// TagStore is the persistence contract of the tag registry.
type TagStore interface {
	LoadRegistry(ctx context.Context) (map[string]string, error)
	SaveRegistry(ctx context.Context, tags map[string]string) error
}

// Tag is one registry entry.
type Tag struct {
	TagID string `json:"rfid"`
	Name  string `json:"name"`
}

// Registry maps RFID tags to display names. Entries are never overwritten or removed.
type Registry struct {
	store TagStore
	mu    sync.RWMutex
	tags  map[string]string
}

// OpenRegistry loads the registry, falling back to an empty one when the store cannot be read.
func OpenRegistry(ctx context.Context, store TagStore, logger *zap.Logger) *Registry {
	tags, err := store.LoadRegistry(ctx)
	if err != nil {
		logger.Warn("tag registry unreadable, starting empty", zap.Error(err))
		tags = nil
	}
	r := &Registry{store: store, tags: make(map[string]string, len(tags))}
	for k, v := range tags {
		r.tags[NormalizeTag(k)] = v
	}
	return r
}

// NormalizeTag canonicalizes a tag identifier as read from a scanner.
func NormalizeTag(tagID string) string {
	return strings.TrimSpace(tagID)
}

func normalizeName(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}

// Lookup resolves a tag to its display name.
func (r *Registry) Lookup(tagID string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.tags[NormalizeTag(tagID)]
	if !ok {
		return "", errclass.ErrNotFound.WithMessagef("tag %q is not registered", tagID)
	}
	return name, nil
}

// Register adds a new tag. An existing tag is never overwritten. The entry is
// kept in memory even if persisting it fails; the persistence error is returned.
func (r *Registry) Register(ctx context.Context, tagID, name string) error {
	tagID, name = NormalizeTag(tagID), normalizeName(name)
	if tagID == "" || name == "" {
		return errclass.ErrInvalidInput.WithMessage("tag and name are required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tags[tagID]; exists {
		return errclass.ErrAlreadyExists.WithMessagef("tag %q is already registered", tagID)
	}
	r.tags[tagID] = name

	snapshot := make(map[string]string, len(r.tags))
	for k, v := range r.tags {
		snapshot[k] = v
	}
	if err := r.store.SaveRegistry(ctx, snapshot); err != nil {
		return errclass.Persistence("save registry", err)
	}
	return nil
}

// Tags lists all entries sorted by tag id.
func (r *Registry) Tags() []Tag {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tag, 0, len(r.tags))
	for id, name := range r.tags {
		out = append(out, Tag{TagID: id, Name: name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TagID < out[j].TagID })
	return out
}
