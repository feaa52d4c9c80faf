// Package session implements the broker session store OEG reads to stamp
// outgoing OrderRequests with an account: Login
// publishes a new immutable Snapshot, and every reader sees either the
// previous snapshot or the new one, never a torn read.
package session

import (
	"sync/atomic"
	"time"
)

// Snapshot is one point-in-time view of the broker session.
type Snapshot struct {
	Account  string
	LoggedIn bool
	LoginAt  time.Time
}

var zeroSnapshot = &Snapshot{}

// Store publishes Snapshots via an atomic.Pointer so OEG's hot path never
// blocks on a mutex to read the current account.
type Store struct {
	current atomic.Pointer[Snapshot]
}

// NewStore returns a Store with no active session.
func NewStore() *Store {
	s := &Store{}
	s.current.Store(zeroSnapshot)
	return s
}

// Login publishes a new logged-in Snapshot for account.
func (s *Store) Login(account string) {
	s.current.Store(&Snapshot{Account: account, LoggedIn: true, LoginAt: time.Now().UTC()})
}

// Logout publishes the zero (logged-out) Snapshot.
func (s *Store) Logout() {
	s.current.Store(zeroSnapshot)
}

// Current returns the current Snapshot. Never nil.
func (s *Store) Current() *Snapshot {
	return s.current.Load()
}
