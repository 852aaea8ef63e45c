package store

import (
	"sort"
	"sync"
	"time"

	"github.com/grovetools/gitbutler/errors"
	"github.com/grovetools/gitbutler/pkg/models"
)

// DefaultRecent is how many closed sessions are kept per project.
const DefaultRecent = 50

// Store is the in-memory state store for the daemon.
// It is thread-safe and supports pub/sub for real-time updates.
type Store struct {
	mu          sync.RWMutex
	state       *State
	recent      int
	now         func() time.Time
	subscribers map[chan Update]struct{}
}

// New creates a new Store keeping up to recent closed sessions per project.
func New(recent int) *Store {
	if recent <= 0 {
		recent = DefaultRecent
	}
	return &Store{
		state: &State{
			Projects: make(map[string]models.Project),
			Sessions: make(map[string][]*models.Session),
			Failures: make(map[string]*Failure),
		},
		recent:      recent,
		now:         time.Now,
		subscribers: make(map[chan Update]struct{}),
	}
}

// Get returns a copy of the current state.
func (s *Store) Get() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := State{
		Projects: make(map[string]models.Project, len(s.state.Projects)),
		Sessions: make(map[string][]*models.Session, len(s.state.Sessions)),
		Failures: make(map[string]*Failure, len(s.state.Failures)),
	}
	for k, v := range s.state.Projects {
		out.Projects[k] = v
	}
	for k, v := range s.state.Sessions {
		out.Sessions[k] = append([]*models.Session(nil), v...)
	}
	for k, v := range s.state.Failures {
		f := *v
		out.Failures[k] = &f
	}
	return out
}

// GetProjects returns all projects ordered by name.
func (s *Store) GetProjects() []models.Project {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]models.Project, 0, len(s.state.Projects))
	for _, p := range s.state.Projects {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Name != result[j].Name {
			return result[i].Name < result[j].Name
		}
		return result[i].ID < result[j].ID
	})
	return result
}

// GetSessions returns the recently closed sessions of a project, newest
// first. An empty projectID returns those of every project.
func (s *Store) GetSessions(projectID string) []*models.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if projectID != "" {
		return append([]*models.Session{}, s.state.Sessions[projectID]...)
	}
	result := []*models.Session{}
	for _, sessions := range s.state.Sessions {
		result = append(result, sessions...)
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Meta.LastTS > result[j].Meta.LastTS
	})
	return result
}

// GetFailure returns the last failed check of a project, or nil when its
// last check succeeded.
func (s *Store) GetFailure(projectID string) *Failure {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if f, ok := s.state.Failures[projectID]; ok {
		c := *f
		return &c
	}
	return nil
}

// Notify records a closed session published on a project's sessions
// channel and broadcasts it.
func (s *Store) Notify(channel string, payload interface{}) error {
	projectID, ok := models.ProjectFromChannel(channel)
	if !ok {
		return errors.New(errors.ErrCodeInvalidInput, "unknown channel").WithDetail("channel", channel)
	}
	session, ok := payload.(*models.Session)
	if !ok || session == nil {
		return errors.New(errors.ErrCodeInvalidInput, "payload is not a session").WithDetail("channel", channel)
	}

	s.ApplyUpdate(Update{
		Type:      UpdateSessionClosed,
		ProjectID: projectID,
		Channel:   channel,
		Payload:   session,
	})
	return nil
}

// ApplyUpdate modifies the state and notifies subscribers.
func (s *Store) ApplyUpdate(u Update) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u.At.IsZero() {
		u.At = s.now()
	}

	switch u.Type {
	case UpdateProjects:
		if projects, ok := u.Payload.([]models.Project); ok {
			newMap := make(map[string]models.Project, len(projects))
			for _, p := range projects {
				newMap[p.ID] = p
			}
			s.state.Projects = newMap
			// Forget state of removed projects
			for id := range s.state.Sessions {
				if _, ok := newMap[id]; !ok {
					delete(s.state.Sessions, id)
				}
			}
			for id := range s.state.Failures {
				if _, ok := newMap[id]; !ok {
					delete(s.state.Failures, id)
				}
			}
		}
	case UpdateSessionClosed:
		if session, ok := u.Payload.(*models.Session); ok {
			list := append([]*models.Session{session}, s.state.Sessions[u.ProjectID]...)
			if len(list) > s.recent {
				list = list[:s.recent]
			}
			s.state.Sessions[u.ProjectID] = list
			delete(s.state.Failures, u.ProjectID)
		}
	case UpdateTickFailed:
		f := &Failure{At: u.At}
		if err, ok := u.Payload.(error); ok {
			f.Code = string(errors.GetCode(err))
			f.Message = err.Error()
			// Errors do not survive JSON encoding
			u.Payload = f
		}
		s.state.Failures[u.ProjectID] = f
	}

	// Broadcast to subscribers
	for ch := range s.subscribers {
		select {
		case ch <- u:
		default:
			// Non-blocking send to prevent slow clients from stalling the daemon
		}
	}
}

// Subscribe creates a new subscription channel for state updates.
func (s *Store) Subscribe() chan Update {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan Update, 100) // Buffered
	s.subscribers[ch] = struct{}{}
	return ch
}

// Unsubscribe removes a subscription and closes its channel.
func (s *Store) Unsubscribe(ch chan Update) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subscribers[ch]; !ok {
		return
	}
	delete(s.subscribers, ch)
	close(ch)
}
