// Package window provides the keyed bounded history buffers backing the
// anomaly detectors and the drift scorer. All state is owned by a single
// monitoring session and is never shared across sessions.
package window

// Store holds per-key rolling windows of scalar observations. Windows are
// created lazily on first observation and evict strictly FIFO once the
// configured capacity is reached.
type Store struct {
	capacity int
	windows  map[string][]float64
}

// DefaultCapacity bounds windows when no explicit size is configured.
const DefaultCapacity = 100

// NewStore creates a store whose windows hold at most capacity values.
func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{
		capacity: capacity,
		windows:  make(map[string][]float64),
	}
}

// Observe appends value to the window for key and returns the window
// contents, oldest first, including the new value. The returned slice is the
// store's backing slice and must not be retained across observations.
func (s *Store) Observe(key string, value float64) []float64 {
	w := append(s.windows[key], value)
	if len(w) > s.capacity {
		w = w[len(w)-s.capacity:]
	}
	s.windows[key] = w
	return w
}

// Len reports the current length of the window for key.
func (s *Store) Len(key string) int {
	return len(s.windows[key])
}

// Capacity returns the configured per-key capacity.
func (s *Store) Capacity() int {
	return s.capacity
}

// EmbeddingWindow is a bounded FIFO sequence of embedding vectors used for
// drift trending against recent samples.
type EmbeddingWindow struct {
	capacity int
	vectors  [][]float64
}

// NewEmbeddingWindow creates an embedding window of the given capacity.
func NewEmbeddingWindow(capacity int) *EmbeddingWindow {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &EmbeddingWindow{capacity: capacity}
}

// Append adds a vector, evicting the oldest entries beyond capacity.
func (w *EmbeddingWindow) Append(vec []float64) {
	w.vectors = append(w.vectors, vec)
	if len(w.vectors) > w.capacity {
		w.vectors = w.vectors[len(w.vectors)-w.capacity:]
	}
}

// Last returns up to n of the most recent vectors, oldest first.
func (w *EmbeddingWindow) Last(n int) [][]float64 {
	if n <= 0 || len(w.vectors) == 0 {
		return nil
	}
	if n > len(w.vectors) {
		n = len(w.vectors)
	}
	return w.vectors[len(w.vectors)-n:]
}

// Len reports the number of stored vectors.
func (w *EmbeddingWindow) Len() int {
	return len(w.vectors)
}
