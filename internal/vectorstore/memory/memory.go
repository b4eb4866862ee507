package memory

import (
	"context"
	"sync"
)

// Point is one stored vector with its payload.
type Point struct {
	Vector  []float32
	Payload map[string]any
}

// Storage is an in-memory vector store for tests and local development.
// It satisfies the same Upsert contract as the Qdrant client.
type Storage struct {
	mu     sync.RWMutex
	points map[string]Point
}

func NewStorage() *Storage {
	return &Storage{points: make(map[string]Point)}
}

func (s *Storage) Upsert(_ context.Context, id string, vector []float32, payload map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.points[id] = Point{Vector: vector, Payload: payload}
	return nil
}

// Get returns the stored point and whether it exists.
func (s *Storage) Get(id string) (Point, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.points[id]
	return p, ok
}

// Len reports how many points are stored.
func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.points)
}
