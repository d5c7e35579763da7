package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"stagehand/internal/storage"
)

// StoreModule is the module key task lists are stored under, in both the
// settings store and character data records.
const StoreModule = "tasks"

var ErrNotFound = errors.New("task not found")

const defaultFlushDebounce = time.Second

// Repository holds the two task scopes: the global list (settings store)
// and the active character's list (character data record). Writes are
// debounced per scope and best-effort; a miss is recovered on replay
// because triggering is idempotent.
type Repository struct {
	log   *slog.Logger
	store storage.Store

	mu     sync.Mutex
	global []Task
	charID string
	char   []Task

	debounce    time.Duration
	globalTimer *time.Timer
	charTimer   *time.Timer
}

func NewRepository(store storage.Store, debounce time.Duration, log *slog.Logger) *Repository {
	if debounce <= 0 {
		debounce = defaultFlushDebounce
	}
	return &Repository{log: log, store: store, debounce: debounce}
}

// Load reads the global task list from the settings store.
func (r *Repository) Load(ctx context.Context) error {
	b, ok, err := r.store.GetModule(ctx, StoreModule)
	if err != nil {
		return err
	}
	list := []Task{}
	if ok {
		if err := json.Unmarshal(b, &list); err != nil {
			return err
		}
	}
	for i := range list {
		list[i].Normalize()
	}
	r.mu.Lock()
	r.global = list
	r.mu.Unlock()
	return nil
}

// SetCharacter switches the character scope, loading that character's task
// list. An empty charID just clears the scope.
func (r *Repository) SetCharacter(ctx context.Context, charID string) error {
	var list []Task
	if charID != "" {
		b, ok, err := r.store.GetCharacter(ctx, charID, StoreModule)
		if err != nil {
			return err
		}
		if ok {
			if err := json.Unmarshal(b, &list); err != nil {
				return err
			}
		}
		for i := range list {
			list[i].Normalize()
		}
	}
	r.mu.Lock()
	r.charID = charID
	r.char = list
	r.mu.Unlock()
	return nil
}

// CharacterID returns the active character scope id ("" when none).
func (r *Repository) CharacterID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.charID
}

// Add appends a task to the given scope.
func (r *Repository) Add(scope Scope, t Task) {
	t.Normalize()
	r.mu.Lock()
	if scope == ScopeCharacter {
		r.char = append(r.char, t)
	} else {
		r.global = append(r.global, t)
	}
	r.mu.Unlock()
	r.scheduleFlush(scope)
}

// Update replaces the task with the same ID in the given scope.
func (r *Repository) Update(scope Scope, t Task) error {
	t.Normalize()
	r.mu.Lock()
	list := r.listLocked(scope)
	found := false
	for i := range list {
		if list[i].ID == t.ID {
			list[i] = t
			found = true
			break
		}
	}
	r.mu.Unlock()
	if !found {
		return ErrNotFound
	}
	r.scheduleFlush(scope)
	return nil
}

// Remove deletes a task by ID from the given scope.
func (r *Repository) Remove(scope Scope, id string) error {
	r.mu.Lock()
	list := r.listLocked(scope)
	idx := -1
	for i := range list {
		if list[i].ID == id {
			idx = i
			break
		}
	}
	if idx >= 0 {
		next := append(list[:idx], list[idx+1:]...)
		if scope == ScopeCharacter {
			r.char = next
		} else {
			r.global = next
		}
	}
	r.mu.Unlock()
	if idx < 0 {
		return ErrNotFound
	}
	r.scheduleFlush(scope)
	return nil
}

// FindByName returns a copy of the first task matching name, searching the
// global scope before the character scope.
func (r *Repository) FindByName(name string) (Task, Scope, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.global {
		if r.global[i].NameMatches(name) {
			return r.global[i], ScopeGlobal, true
		}
	}
	for i := range r.char {
		if r.char[i].NameMatches(name) {
			return r.char[i], ScopeCharacter, true
		}
	}
	return Task{}, "", false
}

// Merged returns copies of all tasks in evaluation order: global list
// first, then the character list.
func (r *Repository) Merged() []Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Task, 0, len(r.global)+len(r.char))
	out = append(out, r.global...)
	out = append(out, r.char...)
	return out
}

// DropCharacter discards a character's task scope and deletes its stored
// record. Used when the host reports the character as deleted.
func (r *Repository) DropCharacter(ctx context.Context, charID string) error {
	r.mu.Lock()
	if r.charID == charID {
		r.charID = ""
		r.char = nil
	}
	r.mu.Unlock()
	return r.store.DeleteCharacter(ctx, charID)
}

// Flush writes both scopes immediately, cancelling pending debounce timers.
// Called on shutdown.
func (r *Repository) Flush(ctx context.Context) {
	r.mu.Lock()
	if r.globalTimer != nil {
		r.globalTimer.Stop()
		r.globalTimer = nil
	}
	if r.charTimer != nil {
		r.charTimer.Stop()
		r.charTimer = nil
	}
	r.mu.Unlock()
	r.flush(ctx, ScopeGlobal)
	r.flush(ctx, ScopeCharacter)
}

func (r *Repository) listLocked(scope Scope) []Task {
	if scope == ScopeCharacter {
		return r.char
	}
	return r.global
}

func (r *Repository) scheduleFlush(scope Scope) {
	r.mu.Lock()
	defer r.mu.Unlock()
	timer := &r.globalTimer
	if scope == ScopeCharacter {
		timer = &r.charTimer
	}
	if *timer != nil {
		(*timer).Stop()
	}
	*timer = time.AfterFunc(r.debounce, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		r.flush(ctx, scope)
	})
}

func (r *Repository) flush(ctx context.Context, scope Scope) {
	r.mu.Lock()
	list := append([]Task(nil), r.listLocked(scope)...)
	charID := r.charID
	r.mu.Unlock()

	b, err := json.Marshal(list)
	if err != nil {
		r.log.Warn("task list marshal failed", slog.String("scope", string(scope)), slog.String("err", err.Error()))
		return
	}

	if scope == ScopeCharacter {
		if charID == "" {
			return
		}
		err = r.store.PutCharacter(ctx, charID, StoreModule, b)
	} else {
		err = r.store.PutModule(ctx, StoreModule, b)
	}
	if err != nil {
		// Best-effort: persistence failures are logged, never surfaced.
		r.log.Warn("task list flush failed", slog.String("scope", string(scope)), slog.String("err", err.Error()))
	}
}
