package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/ppiankov/contentlock/internal/model"
)

// ErrInvalidUpdate is returned when a partial update would leave the
// record undecodable.
var ErrInvalidUpdate = errors.New("invalid state update")

// Store reads and writes the policy record through a Backend.
//
// The record is kept as a JSON document. Fields this version does not
// know about are carried through every write.
type Store struct {
	backend Backend
	key     string
	mu      sync.Mutex
}

// New returns a Store persisting under model.StateKey.
func New(b Backend) *Store {
	return &Store{backend: b, key: model.StateKey}
}

// Backend returns the underlying backend.
func (s *Store) Backend() Backend {
	return s.backend
}

// Init writes the default state when no record exists. It reports
// whether it wrote anything.
func (s *Store) Init(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.backend.Get(ctx, s.key)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return false, err
	}
	doc, err := toDoc(model.DefaultState())
	if err != nil {
		return false, err
	}
	return true, s.write(ctx, doc)
}

// Load returns the stored state with every missing field filled from
// the defaults. A missing record yields the defaults.
func (s *Store) Load(ctx context.Context) (*model.PolicyState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.merged(ctx)
	if err != nil {
		return nil, err
	}
	state, err := fromDoc(doc)
	if err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	state.Normalize()
	return state, nil
}

// Save replaces the stored record with state. Unknown fields already in
// the stored record are kept.
func (s *Store) Save(ctx context.Context, state *model.PolicyState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, err := s.stored(ctx)
	if err != nil {
		return err
	}
	doc, err := toDoc(state)
	if err != nil {
		return err
	}
	return s.write(ctx, overlay(stored, doc))
}

// ApplyUpdate merges a partial update into the stored record. For each
// top-level key an object value is shallow-merged into the existing
// sub-record; any other value (arrays, primitives) replaces it. A null
// sub-record resets it to its defaults.
func (s *Store) ApplyUpdate(ctx context.Context, updates map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.merged(ctx)
	if err != nil {
		return err
	}
	defaults, err := toDoc(model.DefaultState())
	if err != nil {
		return err
	}
	for key, val := range updates {
		if def, isRecord := defaults[key].(map[string]any); isRecord && val == nil {
			doc[key] = def
			continue
		}
		upd, ok := val.(map[string]any)
		if !ok {
			doc[key] = val
			continue
		}
		existing, ok := doc[key].(map[string]any)
		if !ok {
			doc[key] = upd
			continue
		}
		next := make(map[string]any, len(existing)+len(upd))
		for k, v := range existing {
			next[k] = v
		}
		for k, v := range upd {
			next[k] = v
		}
		doc[key] = next
	}

	if _, err := fromDoc(doc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidUpdate, err)
	}
	return s.write(ctx, doc)
}

// stored returns the raw stored document, or an empty one.
func (s *Store) stored(ctx context.Context) (map[string]any, error) {
	data, err := s.backend.Get(ctx, s.key)
	if errors.Is(err, ErrNotFound) {
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}
	doc, err := decodeDoc(data)
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}
	return doc, nil
}

// merged returns the stored document laid over the defaults.
func (s *Store) merged(ctx context.Context) (map[string]any, error) {
	stored, err := s.stored(ctx)
	if err != nil {
		return nil, err
	}
	defaults, err := toDoc(model.DefaultState())
	if err != nil {
		return nil, err
	}
	return overlay(defaults, stored), nil
}

func (s *Store) write(ctx context.Context, doc map[string]any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	if err := s.backend.Set(ctx, s.key, data); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

// overlay returns base with top laid over it. Objects present on both
// sides merge recursively; a null in top never replaces an object in
// base; everything else in top wins.
func overlay(base, top map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(top))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range top {
		tm, tok := v.(map[string]any)
		bm, bok := out[k].(map[string]any)
		if v == nil && bok {
			continue
		}
		if tok && bok {
			out[k] = overlay(bm, tm)
			continue
		}
		out[k] = v
	}
	return out
}

func decodeDoc(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	if doc == nil {
		doc = map[string]any{}
	}
	return doc, nil
}

func toDoc(state *model.PolicyState) (map[string]any, error) {
	data, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("encode state: %w", err)
	}
	return decodeDoc(data)
}

func fromDoc(doc map[string]any) (*model.PolicyState, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var state model.PolicyState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, err
	}
	return &state, nil
}
