package services

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/api-sage/ledger-transfer-engine/src/internal/domain"
)

type lockSlot struct {
	ch   chan struct{}
	refs int
}

// AccountLocker serializes operations that touch the same account while
// letting operations over disjoint accounts run in parallel. Locks are always
// taken in lexicographic id order, so two transfers over the same pair of
// accounts can never deadlock regardless of transfer direction.
type AccountLocker struct {
	mu    sync.Mutex
	slots map[string]*lockSlot
}

func NewAccountLocker() *AccountLocker {
	return &AccountLocker{slots: make(map[string]*lockSlot)}
}

// Acquire locks every given account id and returns a release function that
// must be called on every exit path. Waiting is bounded by ctx; on expiry all
// partially acquired locks are released and domain.ErrBusy is returned.
func (l *AccountLocker) Acquire(ctx context.Context, ids ...string) (func(), error) {
	ordered := orderedUnique(ids)

	acquired := make([]string, 0, len(ordered))
	for _, id := range ordered {
		slot := l.ref(id)
		select {
		case slot.ch <- struct{}{}:
			acquired = append(acquired, id)
		case <-ctx.Done():
			l.unref(id)
			l.releaseAll(acquired)
			return nil, fmt.Errorf("%w: lock wait for account %q: %v", domain.ErrBusy, id, ctx.Err())
		}
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			l.releaseAll(acquired)
		})
	}

	return release, nil
}

func (l *AccountLocker) ref(id string) *lockSlot {
	l.mu.Lock()
	defer l.mu.Unlock()

	slot, ok := l.slots[id]
	if !ok {
		slot = &lockSlot{ch: make(chan struct{}, 1)}
		l.slots[id] = slot
	}
	slot.refs++

	return slot
}

func (l *AccountLocker) unref(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	slot, ok := l.slots[id]
	if !ok {
		return
	}
	slot.refs--
	if slot.refs == 0 {
		delete(l.slots, id)
	}
}

func (l *AccountLocker) releaseAll(acquired []string) {
	for i := len(acquired) - 1; i >= 0; i-- {
		id := acquired[i]
		l.mu.Lock()
		slot := l.slots[id]
		l.mu.Unlock()
		<-slot.ch
		l.unref(id)
	}
}

func orderedUnique(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}

	sort.Strings(out)
	return out
}
