// Package memstore is an in-process ledger store. Writers are serialised and
// work on a private copy of the state that replaces the published one only
// on success, so every committed state is immutable and readers always see
// a complete snapshot.
package memstore

import (
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/odyssey-erp/ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/ledger/internal/accounting/journals"
	"github.com/odyssey-erp/ledger/internal/accounting/periods"
	"github.com/odyssey-erp/ledger/internal/accounting/reports"
)

type state struct {
	groups       map[int64]accounts.Group
	parents      map[int64]accounts.ParentAccount
	accounts     map[int64]accounts.Account
	voucherTypes map[int64]journals.VoucherType
	transactions map[int64]journals.Transaction
	closings     []periods.Closing
	seq          map[string]int64
}

func newState() *state {
	return &state{
		groups:       map[int64]accounts.Group{},
		parents:      map[int64]accounts.ParentAccount{},
		accounts:     map[int64]accounts.Account{},
		voucherTypes: map[int64]journals.VoucherType{},
		transactions: map[int64]journals.Transaction{},
		seq:          map[string]int64{},
	}
}

func (s *state) clone() *state {
	txns := make(map[int64]journals.Transaction, len(s.transactions))
	for id, t := range s.transactions {
		t.Lines = slices.Clone(t.Lines)
		txns[id] = t
	}
	return &state{
		groups:       maps.Clone(s.groups),
		parents:      maps.Clone(s.parents),
		accounts:     maps.Clone(s.accounts),
		voucherTypes: maps.Clone(s.voucherTypes),
		transactions: txns,
		closings:     slices.Clone(s.closings),
		seq:          maps.Clone(s.seq),
	}
}

func (s *state) next(table string) int64 {
	s.seq[table]++
	return s.seq[table]
}

// Store holds the ledger in memory.
type Store struct {
	writeMu sync.Mutex
	mu      sync.RWMutex
	current *state
	now     func() time.Time
}

// New returns an empty store.
func New() *Store {
	return &Store{current: newState(), now: time.Now}
}

// WithNow overrides the clock used for audit timestamps.
func (s *Store) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Accounts exposes the chart of accounts repository.
func (s *Store) Accounts() accounts.Repository { return &accountsRepo{store: s} }

// Journals exposes the posting repository.
func (s *Store) Journals() journals.Repository { return &journalsRepo{store: s} }

// Reports exposes the snapshot reader.
func (s *Store) Reports() reports.Repository { return &reportsRepo{store: s} }

func (s *Store) snapshot() *state {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// write runs fn against a private copy and publishes it when fn succeeds.
func (s *Store) write(fn func(*state) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	draft := s.snapshot().clone()
	if err := fn(draft); err != nil {
		return err
	}
	s.mu.Lock()
	s.current = draft
	s.mu.Unlock()
	return nil
}
