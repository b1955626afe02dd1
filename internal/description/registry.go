package description

import (
	"errors"
	"fmt"
	"image"
	"sort"
	"sync"

	"github.com/ironsheep/feature-bench/internal/features"
)

// ErrUnknownKind is returned by New for a descriptor name nothing
// registered.
var ErrUnknownKind = errors.New("unknown descriptor kind")

// Extractor computes one descriptor per keypoint.
type Extractor interface {
	Name() string

	// Type reports whether the extractor produces binary or float
	// descriptors.
	Type() features.DescriptorType

	// Describe returns descriptors index-aligned with kps.
	Describe(img *image.Gray, kps []features.Keypoint) (features.Descriptors, error)
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]func() Extractor)
)

// Register makes an extractor available under kind. It panics if kind is
// already registered.
func Register(kind string, factory func() Extractor) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[kind]; dup {
		panic("description: Register called twice for " + kind)
	}
	registry[kind] = factory
}

// New builds the extractor registered under kind.
func New(kind string) (Extractor, error) {
	registryMu.RLock()
	factory, ok := registry[kind]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %v)", ErrUnknownKind, kind, Kinds())
	}
	return factory(), nil
}

// Kinds returns the registered descriptor names in sorted order.
func Kinds() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	kinds := make([]string, 0, len(registry))
	for k := range registry {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}
