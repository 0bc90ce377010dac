package inventory

import (
	"context"
	"maps"
	"sort"
	"sync"

	"github.com/melih/lighthouse-dockerhost/internal/core/domain"
	"github.com/melih/lighthouse-dockerhost/internal/core/ports"
)

// Message is one line of reservation output.
type Message struct {
	ReservationID string
	Text          string
}

// Memory is an in-process inventory. Sessions opened from it share its data.
type Memory struct {
	mu        sync.Mutex
	resources map[string]domain.Resource
	messages  []Message
	open      int
}

var _ ports.SessionProvider = (*Memory)(nil)

func NewMemory(resources ...domain.Resource) *Memory {
	m := &Memory{resources: make(map[string]domain.Resource)}
	for _, r := range resources {
		m.resources[r.Name] = cloneResource(r)
	}
	return m
}

func (m *Memory) Open(ctx context.Context) (ports.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.open++
	m.mu.Unlock()
	return &memorySession{store: m}, nil
}

// OpenSessions reports sessions not yet closed.
func (m *Memory) OpenSessions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.open
}

func (m *Memory) Messages() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.messages...)
}

// Resource returns a copy of the named resource.
func (m *Memory) Resource(name string) (domain.Resource, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.resources[name]
	return cloneResource(r), ok
}

func (m *Memory) Put(r domain.Resource) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resources[r.Name] = cloneResource(r)
}

func cloneResource(r domain.Resource) domain.Resource {
	r.Attributes = maps.Clone(r.Attributes)
	return r
}

type memorySession struct {
	store  *Memory
	closed bool
}

func (s *memorySession) WriteMessage(_ context.Context, reservationID, message string) error {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	s.store.messages = append(s.store.messages, Message{ReservationID: reservationID, Text: message})
	return nil
}

func (s *memorySession) FindResources(_ context.Context, attribute, value string) ([]domain.Resource, error) {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	var out []domain.Resource
	for _, r := range s.store.resources {
		if r.Attributes[attribute] == value {
			out = append(out, cloneResource(r))
		}
	}
	// map order is random; keep the first match stable
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *memorySession) GetResource(_ context.Context, name string) (domain.Resource, error) {
	r, ok := s.store.Resource(name)
	if !ok {
		return domain.Resource{}, &domain.NotFoundError{ID: name}
	}
	return r, nil
}

func (s *memorySession) update(name string, fn func(*domain.Resource)) error {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	r, ok := s.store.resources[name]
	if !ok {
		return &domain.NotFoundError{ID: name}
	}
	fn(&r)
	s.store.resources[name] = r
	return nil
}

func (s *memorySession) SetAttributes(_ context.Context, name string, updates []domain.AttributeUpdate) error {
	return s.update(name, func(r *domain.Resource) {
		if r.Attributes == nil {
			r.Attributes = make(map[string]string, len(updates))
		}
		for _, u := range updates {
			r.Attributes[u.Name] = u.Value
		}
	})
}

func (s *memorySession) UpdateAddress(_ context.Context, name, address string) error {
	return s.update(name, func(r *domain.Resource) { r.Address = address })
}

func (s *memorySession) SetLiveStatus(_ context.Context, name, status string) error {
	return s.update(name, func(r *domain.Resource) { r.LiveStatus = status })
}

func (s *memorySession) DeleteResource(_ context.Context, name string) error {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	if _, ok := s.store.resources[name]; !ok {
		return &domain.NotFoundError{ID: name}
	}
	delete(s.store.resources, name)
	return nil
}

func (s *memorySession) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.store.mu.Lock()
	s.store.open--
	s.store.mu.Unlock()
	return nil
}
