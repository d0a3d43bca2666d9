package service

import (
	"context"
	"fmt"

	"cart-service/internal/entity"
)

// ModelLookup fetches an external entity by its identifier.
type ModelLookup func(ctx context.Context, id string) (any, error)

// ModelRegistry maps model type tags to lookup capabilities. The cart only
// records the tag on an item; resolving it to a live entity goes through a
// registered lookup.
type ModelRegistry struct {
	lookups map[string]ModelLookup
}

func NewModelRegistry() *ModelRegistry {
	return &ModelRegistry{lookups: make(map[string]ModelLookup)}
}

// Register binds a lookup to a type tag, replacing any previous binding.
func (r *ModelRegistry) Register(tag string, lookup ModelLookup) {
	r.lookups[tag] = lookup
}

// Known reports whether the tag can be resolved.
func (r *ModelRegistry) Known(tag string) bool {
	_, ok := r.lookups[tag]
	return ok
}

// Resolve fetches the entity behind (tag, id).
func (r *ModelRegistry) Resolve(ctx context.Context, tag, id string) (any, error) {
	lookup, ok := r.lookups[tag]
	if !ok {
		return nil, fmt.Errorf("%w: %s", entity.ErrUnknownModel, tag)
	}
	return lookup(ctx, id)
}
