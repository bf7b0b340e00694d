package flow

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/lucasiscovici/mcp-proxy-studio/pkg/logging"
)

// externalWriteGrace bounds how soon after the store's own write() a
// Write event on the store file is still attributed to that write
// rather than to an external edit.
const externalWriteGrace = 250 * time.Millisecond

// NotFoundError reports a flow ID or route with no matching record.
type NotFoundError struct {
	ID    string
	Route string
}

func (e *NotFoundError) Error() string {
	if e.Route != "" {
		return fmt.Sprintf("flow: no flow with route %q", e.Route)
	}
	return fmt.Sprintf("flow: no flow with id %q", e.ID)
}

// Store persists flows as a single JSON array file, matching the
// original FlowStore's on-disk shape. All access is serialized under a
// single mutex; there is no per-flow locking because the file itself is
// the unit of durability.
type Store struct {
	mu          sync.Mutex
	path        string
	lastWriteAt time.Time
}

// NewStore opens (creating if absent) the flow store backed by path.
func NewStore(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("flow: store path must not be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("flow: create store directory: %w", err)
	}

	s := &Store{path: path}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := s.writeAll(nil); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, fmt.Errorf("flow: stat store file: %w", err)
	}
	return s, nil
}

func (s *Store) readAll() ([]Flow, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("flow: read store file: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	var flows []Flow
	if err := json.Unmarshal(data, &flows); err != nil {
		return nil, fmt.Errorf("flow: parse store file: %w", err)
	}
	return flows, nil
}

// writeAll persists the full flow list, writing to a temp file first so a
// crash mid-write never leaves a truncated store behind.
func (s *Store) writeAll(flows []Flow) error {
	if flows == nil {
		flows = []Flow{}
	}
	data, err := json.MarshalIndent(flows, "", "  ")
	if err != nil {
		return fmt.Errorf("flow: encode store file: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("flow: write temp store file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("flow: replace store file: %w", err)
	}
	s.lastWriteAt = time.Now()
	return nil
}

// Watch observes the store's file for edits made by anything other
// than this Store (an operator hand-editing flows.json, or another
// process sharing the same data dir) and invokes onExternalChange for
// each one. It blocks until ctx is cancelled or the watcher fails.
//
// The supervisor does not hot-reload on an external edit — flows
// already attached to a port keep running under their old
// configuration — so onExternalChange exists purely to let the caller
// log a warning prompting a restart.
func (s *Store) Watch(ctx context.Context, onExternalChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("flow: create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		return fmt.Errorf("flow: watch store directory: %w", err)
	}

	target := filepath.Clean(s.path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logging.Warn("FlowStore", "watch error: %v", err)
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			// writeAll replaces the file via a tmp-then-rename, which
			// surfaces as Create rather than Write on most platforms, so
			// any event on the target path is a candidate — self-writes
			// are filtered out by the grace-period check below instead.
			if filepath.Clean(event.Name) != target {
				continue
			}

			s.mu.Lock()
			external := time.Since(s.lastWriteAt) > externalWriteGrace
			s.mu.Unlock()
			if external {
				onExternalChange()
			}
		}
	}
}

// List returns every flow, in file order.
func (s *Store) List() ([]Flow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readAll()
}

// Get returns the flow with the given ID.
func (s *Store) Get(id string) (Flow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	flows, err := s.readAll()
	if err != nil {
		return Flow{}, err
	}
	for _, f := range flows {
		if f.ID == id {
			return f, nil
		}
	}
	return Flow{}, &NotFoundError{ID: id}
}

// FindByRoute returns the flow whose route matches, if any, regardless
// of target type.
func (s *Store) FindByRoute(route string) (Flow, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	flows, err := s.readAll()
	if err != nil {
		return Flow{}, false, err
	}
	for _, f := range flows {
		if f.Route == route {
			return f, true, nil
		}
	}
	return Flow{}, false, nil
}

// FindByRouteAndTarget returns the flow whose route AND target_type both
// match, if any. Unlike FindByRoute, it does not stop at the first route
// match — spec.md §3 invariant 7 explicitly permits two flows to share a
// route as long as their target_type differs, and the dependency
// resolver needs the one exposing the specific endpoint (sse vs mcp) a
// downstream flow's URL actually points at, the same two-field scan
// find_by_route(route, target_type) performs in the original store.
func (s *Store) FindByRouteAndTarget(route string, targetType EndpointType) (Flow, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	flows, err := s.readAll()
	if err != nil {
		return Flow{}, false, err
	}
	for _, f := range flows {
		if f.Route == route && f.TargetType == targetType {
			return f, true, nil
		}
	}
	return Flow{}, false, nil
}

// Create assigns a new ID and timestamps, then inserts the flow. Callers
// are expected to have already run ApplyDefaults/DeriveTransports/Validate.
func (s *Store) Create(f Flow) (Flow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	flows, err := s.readAll()
	if err != nil {
		return Flow{}, err
	}

	f.ID = uuid.NewString()
	f.CreatedAt = time.Now().UTC()
	f.UpdatedAt = f.CreatedAt
	flows = append(flows, f)
	if err := s.writeAll(flows); err != nil {
		return Flow{}, err
	}
	logging.Info("FlowStore", "created flow %s (%s)", f.ID, f.Name)
	return f, nil
}

// Update replaces the flow matching updated.ID in place.
func (s *Store) Update(updated Flow) (Flow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	flows, err := s.readAll()
	if err != nil {
		return Flow{}, err
	}
	for i, f := range flows {
		if f.ID == updated.ID {
			updated.CreatedAt = f.CreatedAt
			updated.UpdatedAt = time.Now().UTC()
			flows[i] = updated
			if err := s.writeAll(flows); err != nil {
				return Flow{}, err
			}
			logging.Info("FlowStore", "updated flow %s (%s)", updated.ID, updated.Name)
			return updated, nil
		}
	}
	return Flow{}, &NotFoundError{ID: updated.ID}
}

// Delete removes the flow with the given ID.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	flows, err := s.readAll()
	if err != nil {
		return err
	}
	for i, f := range flows {
		if f.ID == id {
			flows = append(flows[:i], flows[i+1:]...)
			if err := s.writeAll(flows); err != nil {
				return err
			}
			logging.Info("FlowStore", "deleted flow %s", id)
			return nil
		}
	}
	return &NotFoundError{ID: id}
}
