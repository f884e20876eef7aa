package store

import (
	"context"
	"fmt"
	"maps"
	"strings"
	"sync"
	"time"

	"github.com/SierraSoftworks/connor"
	"github.com/google/btree"
)

// MemStore is an in-memory Store for embedding and tests. A batch executes
// under a single lock, so every operation in it observes the effects of the
// operations before it and nothing else mutates the store mid-batch.
type MemStore struct {
	mu    sync.RWMutex
	items map[string]*Item
	index *btree.BTreeG[string] // item paths in ascending order
}

var _ Store = (*MemStore)(nil)

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		items: make(map[string]*Item),
		index: btree.NewG(32, func(a, b string) bool { return a < b }),
	}
}

// itemPath joins a namespace and key into the index ordering key. Separator
// characters inside segments are escaped so distinct (namespace, key) pairs
// never encode to the same path: ("a","b")/"c" and ("a")/"b/c" must stay
// distinct records.
func itemPath(namespace []string, key string) string {
	var path strings.Builder
	for _, segment := range namespace {
		path.WriteString(escapeSegment(segment))
		path.WriteByte('/')
	}
	path.WriteString(escapeSegment(key))
	return path.String()
}

func escapeSegment(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, "/", `\/`)
}

// Get retrieves a single item. A missing key yields (nil, nil).
func (s *MemStore) Get(_ context.Context, namespace []string, key string) (*Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getLocked(namespace, key), nil
}

// Put creates or overwrites an item. A nil value deletes the key.
func (s *MemStore) Put(_ context.Context, namespace []string, key string, value map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putLocked(namespace, key, value)
	return nil
}

// Delete removes an item. Missing keys are ignored.
func (s *MemStore) Delete(ctx context.Context, namespace []string, key string) error {
	return s.Put(ctx, namespace, key, nil)
}

// Search returns items whose namespace starts with namespacePrefix, in
// ascending namespace/key order, filtered then paginated.
func (s *MemStore) Search(_ context.Context, namespacePrefix []string, opts SearchOptions) ([]*Item, error) {
	opts = opts.normalize()

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.searchLocked(SearchOp{
		NamespacePrefix: namespacePrefix,
		Filter:          opts.Filter,
		Limit:           opts.Limit,
		Offset:          opts.Offset,
	})
}

// Batch executes ops in order and returns one positional result per op.
func (s *MemStore) Batch(_ context.Context, ops []Op) ([]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	results := make([]any, len(ops))
	for i, op := range ops {
		switch op := op.(type) {
		case GetOp:
			if item := s.getLocked(op.Namespace, op.Key); item != nil {
				results[i] = item
			}
		case PutOp:
			s.putLocked(op.Namespace, op.Key, op.Value)
		case SearchOp:
			items, err := s.searchLocked(op)
			if err != nil {
				return nil, err
			}
			results[i] = items
		default:
			return nil, fmt.Errorf("%w: %T", ErrUnknownOp, op)
		}
	}
	return results, nil
}

// Len returns the number of stored items.
func (s *MemStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

func (s *MemStore) getLocked(namespace []string, key string) *Item {
	item, ok := s.items[itemPath(namespace, key)]
	if !ok {
		return nil
	}
	return cloneItem(item)
}

func (s *MemStore) putLocked(namespace []string, key string, value map[string]any) {
	path := itemPath(namespace, key)

	if value == nil {
		delete(s.items, path)
		s.index.Delete(path)
		return
	}

	now := time.Now()
	if existing, ok := s.items[path]; ok {
		existing.Value = maps.Clone(value)
		existing.UpdatedAt = now
		return
	}

	s.items[path] = &Item{
		Namespace: append([]string{}, namespace...),
		Key:       key,
		Value:     maps.Clone(value),
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.index.ReplaceOrInsert(path)
}

func (s *MemStore) searchLocked(op SearchOp) ([]*Item, error) {
	limit := op.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	offset := op.Offset

	var matched []*Item
	var matchErr error

	s.index.Ascend(func(path string) bool {
		item := s.items[path]
		if !namespaceHasPrefix(item.Namespace, op.NamespacePrefix) {
			return true
		}

		if len(op.Filter) > 0 {
			match, err := connor.Match(op.Filter, item.Value)
			if err != nil {
				matchErr = fmt.Errorf("match filter: %w", err)
				return false
			}
			if !match {
				return true
			}
		}

		if offset > 0 {
			offset--
			return true
		}

		matched = append(matched, cloneItem(item))
		return len(matched) < limit
	})

	if matchErr != nil {
		return nil, matchErr
	}
	return matched, nil
}

// namespaceHasPrefix reports whether ns begins with the given path elements.
// Comparison is element-wise, so ["docs"] does not match ["docs-archive"].
func namespaceHasPrefix(ns, prefix []string) bool {
	if len(prefix) > len(ns) {
		return false
	}
	for i := range prefix {
		if ns[i] != prefix[i] {
			return false
		}
	}
	return true
}

// cloneItem copies an item so readers cannot mutate stored state. Value is a
// shallow clone.
func cloneItem(item *Item) *Item {
	copied := *item
	copied.Namespace = append([]string{}, item.Namespace...)
	copied.Value = maps.Clone(item.Value)
	return &copied
}
