package settings

import (
	"fmt"
	"sync"

	"upscale-viewer/internal/logging"
)

// Observer is notified after settings change. SettingsChanged is called
// synchronously from Update, in subscription order.
type Observer interface {
	SettingsChanged(old, current Settings)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(old, current Settings)

func (f ObserverFunc) SettingsChanged(old, current Settings) { f(old, current) }

// Store holds the current settings, persists updates and notifies
// subscribers. It is safe for concurrent use.
type Store struct {
	path string

	mu        sync.RWMutex
	current   Settings
	observers map[int]Observer
	nextID    int
}

// Open loads the settings at path into a new Store. A load failure is
// logged and the store starts from the defaults.
func Open(path string) *Store {
	s, err := Load(path)
	if err != nil {
		logging.Warn("Starting with default settings: %v", err)
	}
	return NewStore(path, s)
}

// NewStore returns a store holding s. Updates are saved to path; an empty
// path keeps them in memory only.
func NewStore(path string, s Settings) *Store {
	return &Store{path: path, current: s, observers: make(map[int]Observer)}
}

// Path returns the backing file, or "" for an in-memory store.
func (st *Store) Path() string { return st.path }

// Get returns a copy of the current settings.
func (st *Store) Get() Settings {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.current
}

// Update applies fn to a copy of the current settings, validates and saves
// the result, then notifies observers. Nothing changes if fn or the save
// fails.
func (st *Store) Update(fn func(*Settings) error) (Settings, error) {
	st.mu.Lock()
	old := st.current
	next := old
	if err := fn(&next); err != nil {
		st.mu.Unlock()
		return old, err
	}
	if err := next.Validate(); err != nil {
		st.mu.Unlock()
		return old, fmt.Errorf("invalid settings: %w", err)
	}
	if st.path != "" {
		if err := Save(st.path, next); err != nil {
			st.mu.Unlock()
			return old, err
		}
	}
	st.current = next
	observers := make([]Observer, 0, len(st.observers))
	for id := 0; id < st.nextID; id++ {
		if o, ok := st.observers[id]; ok {
			observers = append(observers, o)
		}
	}
	st.mu.Unlock()

	if old != next {
		for _, o := range observers {
			o.SettingsChanged(old, next)
		}
	}
	return next, nil
}

// Subscribe registers o and returns a function that removes it.
func (st *Store) Subscribe(o Observer) (unsubscribe func()) {
	st.mu.Lock()
	id := st.nextID
	st.nextID++
	st.observers[id] = o
	st.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			st.mu.Lock()
			delete(st.observers, id)
			st.mu.Unlock()
		})
	}
}

// Watch returns a channel that receives the settings after every change.
// Only the latest value is kept if the reader falls behind.
func (st *Store) Watch() (<-chan Settings, func()) {
	ch := make(chan Settings, 1)
	unsubscribe := st.Subscribe(ObserverFunc(func(_, current Settings) {
		for {
			select {
			case ch <- current:
				return
			default:
			}
			select {
			case <-ch:
			default:
			}
		}
	}))
	return ch, unsubscribe
}
