package cache

import (
	"context"
)

// Kind parameterizes fan-out invalidation by entity type, so projects
// and tasks share one policy instead of each reimplementing the
// owner/member-union expansion.
type Kind struct {
	// Entity is the namespace of the entity's own key ("project:<id>").
	Entity string
	// List is the namespace of derived listing keys ("projects:<uid>",
	// "projects:owned:<uid>", "tasks:project:<pid>").
	List string
}

var (
	KindProject = Kind{Entity: NamespaceProject, List: NamespaceProjects}
	KindTask    = Kind{Entity: NamespaceTask, List: NamespaceTasks}
)

// Fanout expands a single entity mutation into the full set of derived
// cache keys that must be evicted. Callers supply userIDs as the union
// of owner and member ids as they existed both before and after the
// write; a user removed from membership must still have their cached
// listing invalidated, so the post-mutation set alone is never enough.
type Fanout struct {
	cache *Cache
}

// NewFanout creates a Fanout over the given cache.
func NewFanout(c *Cache) *Fanout {
	return &Fanout{cache: c}
}

// OnCreate invalidates the creator's listing keys and, for child
// entities, the parent's child-listing key. A freshly created entity has
// no stale entity key of its own.
func (f *Fanout) OnCreate(ctx context.Context, kind Kind, creatorID, parentKey string) error {
	keys := userListKeys(kind, []string{creatorID})
	if parentKey != "" {
		keys = append(keys, Key{Namespace: kind.List, Key: parentKey})
	}
	return f.cache.InvalidateKeys(ctx, keys...)
}

// OnUpdate invalidates the entity's own key, the parent listing key, and
// both listing-key variants for every affected user. The caller writes
// the refreshed entity back at its own key afterwards.
func (f *Fanout) OnUpdate(ctx context.Context, kind Kind, entityID, parentKey string, userIDs []string) error {
	return f.cache.InvalidateKeys(ctx, f.mutationKeys(kind, entityID, parentKey, userIDs)...)
}

// OnDelete is OnUpdate computed from the pre-delete owner/member sets,
// the only ones still available. No write-back follows.
func (f *Fanout) OnDelete(ctx context.Context, kind Kind, entityID, parentKey string, userIDs []string) error {
	return f.cache.InvalidateKeys(ctx, f.mutationKeys(kind, entityID, parentKey, userIDs)...)
}

func (f *Fanout) mutationKeys(kind Kind, entityID, parentKey string, userIDs []string) []Key {
	keys := []Key{{Namespace: kind.Entity, Key: entityID}}
	if parentKey != "" {
		keys = append(keys, Key{Namespace: kind.List, Key: parentKey})
	}
	return append(keys, userListKeys(kind, userIDs)...)
}

func userListKeys(kind Kind, userIDs []string) []Key {
	keys := make([]Key, 0, 2*len(userIDs))
	seen := make(map[string]struct{}, len(userIDs))
	for _, uid := range userIDs {
		if uid == "" {
			continue
		}
		if _, dup := seen[uid]; dup {
			continue
		}
		seen[uid] = struct{}{}
		keys = append(keys,
			Key{Namespace: kind.List, Key: uid},
			Key{Namespace: kind.List, Key: "owned:" + uid},
		)
	}
	return keys
}
