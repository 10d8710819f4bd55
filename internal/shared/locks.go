package shared

import "hash/fnv"

// LedgerCloseLockKey returns the advisory lock key serialising period close
// against postings. Postings take it shared, closing takes it exclusive.
func LedgerCloseLockKey() int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte("ledger:period:close"))
	return int64(h.Sum64() >> 1)
}
