package detection

import (
	"errors"
	"fmt"
	"image"
	"sort"
	"sync"

	"github.com/ironsheep/feature-bench/internal/features"
)

// ErrUnknownKind is returned by New for a detector name nothing registered.
var ErrUnknownKind = errors.New("unknown detector kind")

// Backend is implemented by every detector. A concrete backend also
// implements exactly one of Detector or ResponseMapper.
type Backend interface {
	Name() string
}

// Detector produces discrete keypoints directly.
type Detector interface {
	Backend

	// Detect returns the keypoints found in img. The result must be
	// deterministic for a fixed image and configuration.
	Detect(img *image.Gray) ([]features.Keypoint, error)

	// PopulatesResponse reports whether Keypoint.Response carries a score.
	// Callers that rank keypoints by response fall back to detection order
	// when it does not.
	PopulatesResponse() bool
}

// ResponseMapper produces a dense per-pixel response map that must be
// reduced to keypoints with a Suppressor.
type ResponseMapper interface {
	Backend

	Respond(img *image.Gray) (*features.ResponseMap, error)

	// Threshold is the minimum response a cell must exceed to become a
	// keypoint candidate.
	Threshold() float64

	// Aperture is the support diameter given to each candidate.
	Aperture() float64
}

// Params carries the pipeline settings a detector may depend on.
type Params struct {
	// MaxOverlap is the permissible overlap between two keypoints, used by
	// detectors that derive a minimum keypoint spacing from it.
	MaxOverlap float64
}

// Factory builds a configured backend.
type Factory func(Params) (Backend, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register makes a detector available under kind. It panics if kind is
// already registered or factory is nil.
func Register(kind string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if factory == nil {
		panic("detection: Register factory is nil")
	}
	if _, dup := registry[kind]; dup {
		panic("detection: Register called twice for " + kind)
	}
	registry[kind] = factory
}

// New builds the detector registered under kind.
func New(kind string, p Params) (Backend, error) {
	registryMu.RLock()
	factory, ok := registry[kind]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %v)", ErrUnknownKind, kind, Kinds())
	}

	b, err := factory(p)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s detector: %w", kind, err)
	}
	switch b.(type) {
	case Detector, ResponseMapper:
		return b, nil
	default:
		return nil, fmt.Errorf("detector %s implements neither Detector nor ResponseMapper", kind)
	}
}

// Kinds returns the registered detector names in sorted order.
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
