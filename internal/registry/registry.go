// Package registry holds the typed, append-only collections populated by
// discovery passes.
package registry

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/btree"

	"github.com/yairfalse/warden/pkg/resource"
)

var (
	// ErrDuplicateARN is returned when a resource with the same ARN exists.
	ErrDuplicateARN = errors.New("duplicate arn")
	// ErrUnknownRegion is returned for resources outside the audited regions.
	ErrUnknownRegion = errors.New("region not audited")
	// ErrSealed is returned when appending to a sealed registry.
	ErrSealed = errors.New("registry sealed")
)

// Collection is the kind-agnostic view of a Registry.
type Collection interface {
	Kind() resource.Kind
	Len() int
	Resources() []resource.Resource
	Seal()
	Sealed() bool
}

type entry[T resource.Resource] struct {
	arn  string
	item T
}

// Registry stores resources of one kind. Iteration follows the audited
// region order, then append order within a region. Appends are safe for
// concurrent use; items are pointers and are enriched in place.
type Registry[T resource.Resource] struct {
	kind    resource.Kind
	regions []string

	mu      sync.RWMutex
	buckets map[string][]T
	index   *btree.BTreeG[entry[T]]
	sealed  bool
}

// New creates a registry for kind covering regions.
func New[T resource.Resource](kind resource.Kind, regions []string) *Registry[T] {
	buckets := make(map[string][]T, len(regions))
	for _, r := range regions {
		buckets[r] = nil
	}
	return &Registry[T]{
		kind:    kind,
		regions: append([]string(nil), regions...),
		buckets: buckets,
		index: btree.NewG(32, func(a, b entry[T]) bool {
			return a.arn < b.arn
		}),
	}
}

// Kind returns the resource kind held.
func (r *Registry[T]) Kind() resource.Kind { return r.kind }

// Append adds item to its region bucket.
func (r *Registry[T]) Append(item T) error {
	id := item.Identity()

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return fmt.Errorf("append %s: %w", id.ARN, ErrSealed)
	}
	if _, ok := r.buckets[id.Region]; !ok {
		return fmt.Errorf("append %s (%s): %w", id.ARN, id.Region, ErrUnknownRegion)
	}
	if _, exists := r.index.Get(entry[T]{arn: id.ARN}); exists {
		return fmt.Errorf("append %s: %w", id.ARN, ErrDuplicateARN)
	}

	r.buckets[id.Region] = append(r.buckets[id.Region], item)
	r.index.ReplaceOrInsert(entry[T]{arn: id.ARN, item: item})
	return nil
}

// Get looks a resource up by ARN.
func (r *Registry[T]) Get(arn string) (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.index.Get(entry[T]{arn: arn})
	return e.item, ok
}

// ByRegion returns the resources of one region in append order.
func (r *Registry[T]) ByRegion(region string) []T {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]T(nil), r.buckets[region]...)
}

// PopulatedRegions returns the regions holding at least one resource.
func (r *Registry[T]) PopulatedRegions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []string
	for _, region := range r.regions {
		if len(r.buckets[region]) > 0 {
			out = append(out, region)
		}
	}
	return out
}

// All returns every resource in deterministic order.
func (r *Registry[T]) All() []T {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]T, 0, r.index.Len())
	for _, region := range r.regions {
		out = append(out, r.buckets[region]...)
	}
	return out
}

// Resources returns All as the Resource interface.
func (r *Registry[T]) Resources() []resource.Resource {
	items := r.All()
	out := make([]resource.Resource, len(items))
	for i, it := range items {
		out[i] = it
	}
	return out
}

// Len returns the number of resources.
func (r *Registry[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.index.Len()
}

// Seal marks population complete. Later appends fail.
func (r *Registry[T]) Seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}

// Sealed reports whether Seal was called.
func (r *Registry[T]) Sealed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sealed
}
