package memory

import (
	"context"
	"sync"

	"daycounter/internal/model"
)

// Store keeps events in insertion order in process memory.
type Store struct {
	mu       sync.Mutex
	events   []model.Event
	settings map[string]string
}

func New() *Store {
	return &Store{
		events:   make([]model.Event, 0, 16),
		settings: make(map[string]string),
	}
}

func (s *Store) Save(_ context.Context, ev model.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev = ev.Clone()
	for i := range s.events {
		if s.events[i].ID == ev.ID {
			s.events[i] = ev
			return nil
		}
	}
	s.events = append(s.events, ev)
	return nil
}

func (s *Store) Fetch(_ context.Context) ([]model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Event, len(s.events))
	for i, ev := range s.events {
		out[i] = ev.Clone()
	}
	return out, nil
}

func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.events[:0]
	for _, ev := range s.events {
		if ev.ID != id {
			kept = append(kept, ev)
		}
	}
	s.events = kept
	return nil
}

func (s *Store) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = make([]model.Event, 0, 16)
	return nil
}

func (s *Store) GetSetting(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.settings[key]
	return v, ok, nil
}

func (s *Store) SetSetting(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[key] = value
	return nil
}

func (s *Store) Close() error { return nil }
