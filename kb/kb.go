package kb

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/signalsfoundry/rfcascade/model"
)

var (
	// ErrChainExists is returned when creating a chain whose name is taken.
	ErrChainExists = errors.New("chain already exists")
	// ErrChainNotFound is returned for lookups of unknown chains.
	ErrChainNotFound = errors.New("chain not found")
	// ErrInvalidChain is returned for chains that can't be stored.
	ErrInvalidChain = errors.New("invalid chain")
)

// EventType indicates what kind of change happened in the store.
type EventType int

const (
	EventChainCreated EventType = iota
	EventChainUpdated
	EventChainDeleted
)

func (t EventType) String() string {
	switch t {
	case EventChainCreated:
		return "created"
	case EventChainUpdated:
		return "updated"
	case EventChainDeleted:
		return "deleted"
	}
	return fmt.Sprintf("event(%d)", int(t))
}

// Event is emitted to subscribers when a chain changes.
type Event struct {
	Type     EventType
	Name     string
	Revision uint64
	// Chain is a copy of the stored chain; zero for deletions.
	Chain model.ChainSpec
}

type entry struct {
	spec     model.ChainSpec
	revision uint64
}

// ChainStore is an in-memory, thread-safe store of named chains.
type ChainStore struct {
	mu sync.RWMutex

	chains map[string]*entry
	subs   map[int]func(Event)
	nextID int
}

// NewChainStore constructs an empty store.
func NewChainStore() *ChainStore {
	return &ChainStore{
		chains: make(map[string]*entry),
		subs:   make(map[int]func(Event)),
	}
}

// Create stores a new chain. It returns ErrChainExists if the name is taken.
func (s *ChainStore) Create(spec model.ChainSpec) (uint64, error) {
	name, err := chainName(spec)
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	if _, exists := s.chains[name]; exists {
		s.mu.Unlock()
		return 0, fmt.Errorf("%w: %q", ErrChainExists, name)
	}
	e := &entry{spec: spec.Clone(), revision: 1}
	s.chains[name] = e
	ev := Event{Type: EventChainCreated, Name: name, Revision: e.revision, Chain: e.spec.Clone()}
	subs := s.subscribers()
	s.mu.Unlock()

	notify(subs, ev)
	return ev.Revision, nil
}

// Put creates or replaces a chain and returns its new revision.
func (s *ChainStore) Put(spec model.ChainSpec) (uint64, error) {
	name, err := chainName(spec)
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	typ := EventChainUpdated
	e, ok := s.chains[name]
	if !ok {
		typ = EventChainCreated
		e = &entry{}
		s.chains[name] = e
	}
	e.spec = spec.Clone()
	e.revision++
	ev := Event{Type: typ, Name: name, Revision: e.revision, Chain: e.spec.Clone()}
	subs := s.subscribers()
	s.mu.Unlock()

	notify(subs, ev)
	return ev.Revision, nil
}

// Update applies fn to a copy of the named chain and stores the result. The
// chain can't be renamed through Update.
func (s *ChainStore) Update(name string, fn func(*model.ChainSpec) error) (uint64, error) {
	s.mu.Lock()
	e, ok := s.chains[name]
	if !ok {
		s.mu.Unlock()
		return 0, fmt.Errorf("%w: %q", ErrChainNotFound, name)
	}
	next := e.spec.Clone()
	if err := fn(&next); err != nil {
		s.mu.Unlock()
		return 0, err
	}
	if next.Name != name {
		s.mu.Unlock()
		return 0, fmt.Errorf("%w: can't rename %q to %q", ErrInvalidChain, name, next.Name)
	}
	e.spec = next
	e.revision++
	ev := Event{Type: EventChainUpdated, Name: name, Revision: e.revision, Chain: e.spec.Clone()}
	subs := s.subscribers()
	s.mu.Unlock()

	notify(subs, ev)
	return ev.Revision, nil
}

// Get returns a copy of the named chain and its revision.
func (s *ChainStore) Get(name string) (model.ChainSpec, uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.chains[name]
	if !ok {
		return model.ChainSpec{}, 0, fmt.Errorf("%w: %q", ErrChainNotFound, name)
	}
	return e.spec.Clone(), e.revision, nil
}

// List returns the stored chain names in lexical order.
func (s *ChainStore) List() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res := make([]string, 0, len(s.chains))
	for name := range s.chains {
		res = append(res, name)
	}
	sort.Strings(res)
	return res
}

// Delete removes the named chain.
func (s *ChainStore) Delete(name string) error {
	s.mu.Lock()
	e, ok := s.chains[name]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrChainNotFound, name)
	}
	delete(s.chains, name)
	ev := Event{Type: EventChainDeleted, Name: name, Revision: e.revision}
	subs := s.subscribers()
	s.mu.Unlock()

	notify(subs, ev)
	return nil
}

// Subscribe registers a callback for store events. It returns an
// unsubscribe function. Callbacks run synchronously on the writer's
// goroutine, outside the store lock.
func (s *ChainStore) Subscribe(fn func(Event)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

// subscribers snapshots the callbacks; callers must hold the lock.
func (s *ChainStore) subscribers() []func(Event) {
	ids := make([]int, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]func(Event), len(ids))
	for i, id := range ids {
		out[i] = s.subs[id]
	}
	return out
}

func notify(subs []func(Event), ev Event) {
	for _, sub := range subs {
		sub(ev)
	}
}

func chainName(spec model.ChainSpec) (string, error) {
	name := strings.TrimSpace(spec.Name)
	if name == "" {
		return "", fmt.Errorf("%w: name is required", ErrInvalidChain)
	}
	if name != spec.Name {
		return "", fmt.Errorf("%w: name %q has surrounding whitespace", ErrInvalidChain, spec.Name)
	}
	return name, nil
}
