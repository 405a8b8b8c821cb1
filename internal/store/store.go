// Package store is the filesystem implementation of ports.CardStore. Each
// client ID maps to one directory under the configured root; the directory's
// presence is the sole existence flag. Mutations of the same client ID are
// serialized in-process, and bundle creation uses os.Mkdir so that two
// concurrent creates of the same ID cannot both win.
package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"cardd/internal/ident"
	"cardd/internal/types"
)

const (
	dirMode  = 0o755
	fileMode = 0o644
)

type Store struct {
	root  string
	locks *idLocks
}

// New returns a Store rooted at root, creating the directory if needed.
func New(root string) (*Store, error) {
	root = filepath.Clean(root)
	if err := os.MkdirAll(root, dirMode); err != nil {
		return nil, types.Err(types.ErrIO, err, "create cards root %q", root)
	}
	return &Store{root: root, locks: newIDLocks()}, nil
}

// Root returns the directory all bundles live under.
func (s *Store) Root() string {
	return s.root
}

// dir is only safe to call with a validated client ID.
func (s *Store) dir(clientID string) string {
	return filepath.Join(s.root, clientID)
}

func checkID(clientID string) error {
	if !ident.Valid(clientID) {
		return types.Err(types.ErrInvalidIdentifier, nil, "client id %q", clientID)
	}
	return nil
}

// Exists reports whether a bundle directory is present for clientID.
// Lock-free: a single stat, no mutation.
func (s *Store) Exists(ctx context.Context, clientID string) (bool, error) {
	if err := checkID(clientID); err != nil {
		return false, err
	}
	_, err := os.Stat(s.dir(clientID))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, types.Err(types.ErrIO, err, "stat bundle %q", clientID)
	}
	return true, nil
}

// Create makes the bundle directory and persists every entry in spec.
// The directory creation itself is the conflict check: os.Mkdir fails with
// EEXIST if another create got there first.
func (s *Store) Create(ctx context.Context, clientID string, spec types.CardSpec) (types.Deployment, error) {
	var dep types.Deployment
	if err := checkID(clientID); err != nil {
		return dep, err
	}
	if spec.HTML == "" {
		return dep, types.Err(types.ErrMissingRequiredField, nil, "html is required")
	}

	mu := s.locks.get(clientID)
	mu.Lock()
	defer mu.Unlock()

	dir := s.dir(clientID)
	if err := os.Mkdir(dir, dirMode); err != nil {
		if errors.Is(err, os.ErrExist) {
			return dep, types.Err(types.ErrAlreadyExists, nil, "client id %q", clientID)
		}
		return dep, types.Err(types.ErrIO, err, "create bundle dir %q", clientID)
	}

	if err := s.persist(ctx, clientID, spec); err != nil {
		// No rollback: a partially written bundle stays on disk and remains
		// addressable by Update and Delete.
		return dep, err
	}
	return types.Deployment{ClientID: clientID, Dir: dir}, nil
}

// Update overwrites or adds the files present in spec, leaving everything
// else in the bundle untouched.
func (s *Store) Update(ctx context.Context, clientID string, spec types.CardSpec) (types.Deployment, error) {
	var dep types.Deployment
	if err := checkID(clientID); err != nil {
		return dep, err
	}

	mu := s.locks.get(clientID)
	mu.Lock()
	defer mu.Unlock()

	dir := s.dir(clientID)
	if _, err := os.Stat(dir); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return dep, types.Err(types.ErrNotFound, nil, "client id %q", clientID)
		}
		return dep, types.Err(types.ErrIO, err, "stat bundle %q", clientID)
	}

	if err := s.persist(ctx, clientID, spec); err != nil {
		return dep, err
	}
	return types.Deployment{ClientID: clientID, Dir: dir}, nil
}

// Delete removes the whole bundle tree. RemoveAll tolerates files that have
// already gone missing inside the directory.
func (s *Store) Delete(ctx context.Context, clientID string) error {
	if err := checkID(clientID); err != nil {
		return err
	}

	mu := s.locks.get(clientID)
	mu.Lock()
	defer mu.Unlock()

	dir := s.dir(clientID)
	if _, err := os.Stat(dir); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return types.Err(types.ErrNotFound, nil, "client id %q", clientID)
		}
		return types.Err(types.ErrIO, err, "stat bundle %q", clientID)
	}
	if err := os.RemoveAll(dir); err != nil {
		return types.Err(types.ErrIO, err, "remove bundle %q", clientID)
	}
	return nil
}

// idLocks hands out one mutex per client ID so mutations of the same bundle
// serialize while distinct bundles proceed in parallel. Entries are never
// reclaimed; the population is bounded by the number of distinct IDs seen.
type idLocks struct {
	mu sync.Mutex
	m  map[string]*sync.Mutex
}

func newIDLocks() *idLocks {
	return &idLocks{m: make(map[string]*sync.Mutex)}
}

func (l *idLocks) get(id string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	if m, ok := l.m[id]; ok {
		return m
	}
	m := &sync.Mutex{}
	l.m[id] = m
	return m
}
