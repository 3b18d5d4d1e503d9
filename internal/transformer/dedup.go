package transformer

import (
	"escrowetl/internal/period"
)

// balanceKey is the natural key of a FactBalance.
type balanceKey struct {
	account     int64
	installment int
	period      period.Period
}

// keepFirst remembers natural keys and reports whether a key is new.
// Later occurrences lose; the caller records the warning.
type keepFirst[K comparable] struct {
	seen map[K]int // key -> line of the winning row
}

func newKeepFirst[K comparable]() *keepFirst[K] {
	return &keepFirst[K]{seen: make(map[K]int)}
}

// claim returns (0, true) for a new key, or the winning line and false.
func (k *keepFirst[K]) claim(key K, line int) (int, bool) {
	if prev, dup := k.seen[key]; dup {
		return prev, false
	}
	k.seen[key] = line
	return 0, true
}
