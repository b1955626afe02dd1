// Package framebuf holds the sliding window of recently processed frames.
//
// Buffer is a fixed-capacity FIFO. Insertion order is temporal order: the
// most recently pushed frame is Current and the one pushed immediately
// before it is Previous. Once the buffer is full every Push evicts exactly
// the oldest frame, regardless of whether anything consumed it.
//
// A Buffer has a single writer and is not safe for concurrent use.
package framebuf

import (
	"errors"
	"fmt"

	"github.com/ironsheep/feature-bench/internal/features"
)

var (
	// ErrEmptyBuffer is returned when no frame has been pushed.
	ErrEmptyBuffer = errors.New("frame buffer is empty")

	// ErrInsufficientHistory is returned by Previous while only one frame is
	// held. It is the expected state while the first frame is processed.
	ErrInsufficientHistory = errors.New("frame buffer holds no previous frame")
)

// Buffer is a ring of at most Cap frames.
type Buffer struct {
	frames []*features.Frame
	head   int // slot of the oldest frame
	size   int
}

// New creates an empty buffer holding at most capacity frames.
func New(capacity int) (*Buffer, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("invalid buffer capacity %d: must be at least 1", capacity)
	}
	return &Buffer{frames: make([]*features.Frame, capacity)}, nil
}

// Push appends f as the newest frame. When the buffer is already full the
// oldest frame is evicted first and returned; otherwise evicted is nil.
func (b *Buffer) Push(f *features.Frame) (evicted *features.Frame) {
	capacity := len(b.frames)
	if b.size == capacity {
		evicted = b.frames[b.head]
		b.frames[b.head] = nil
		b.head = (b.head + 1) % capacity
		b.size--
	}
	b.frames[(b.head+b.size)%capacity] = f
	b.size++
	return evicted
}

// Current returns the most recently pushed frame.
func (b *Buffer) Current() (*features.Frame, error) {
	if b.size == 0 {
		return nil, ErrEmptyBuffer
	}
	return b.at(b.size - 1), nil
}

// Previous returns the frame pushed immediately before Current.
func (b *Buffer) Previous() (*features.Frame, error) {
	switch b.size {
	case 0:
		return nil, ErrEmptyBuffer
	case 1:
		return nil, ErrInsufficientHistory
	}
	return b.at(b.size - 2), nil
}

// Len returns the number of frames currently held.
func (b *Buffer) Len() int { return b.size }

// Cap returns the maximum number of frames the buffer holds.
func (b *Buffer) Cap() int { return len(b.frames) }

// Frames returns the held frames from oldest to newest. The returned slice
// is a copy; the frames themselves are shared.
func (b *Buffer) Frames() []*features.Frame {
	out := make([]*features.Frame, b.size)
	for i := range out {
		out[i] = b.at(i)
	}
	return out
}

// at returns the i-th held frame counting from the oldest.
func (b *Buffer) at(i int) *features.Frame {
	return b.frames[(b.head+i)%len(b.frames)]
}
