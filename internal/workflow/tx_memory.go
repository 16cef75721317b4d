package workflow

import (
	"context"
	"sync"
)

// TxSnapshotter is implemented by the in-memory stores: capture state before
// a transaction and put it back if the transaction fails.
type TxSnapshotter interface {
	Snapshot() any
	Restore(snap any)
}

// InMemoryStoreTx gives dev wiring and unit tests the same all-or-nothing
// semantics the postgres transaction provides. Transactions are serialized
// by a mutex; participating stores are rolled back to their pre-transaction
// state when fn fails, so a failed operation leaves no partial effect.
type InMemoryStoreTx struct {
	mu        sync.Mutex
	stores    Stores
	snapshots []TxSnapshotter
}

func NewInMemoryStoreTx(stores Stores, snapshots ...TxSnapshotter) *InMemoryStoreTx {
	return &InMemoryStoreTx{stores: stores, snapshots: snapshots}
}

func (t *InMemoryStoreTx) RunInTx(ctx context.Context, fn func(ctx context.Context, stores Stores) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	saved := make([]any, len(t.snapshots))
	for i, s := range t.snapshots {
		saved[i] = s.Snapshot()
	}
	if err := fn(ctx, t.stores); err != nil {
		for i, s := range t.snapshots {
			s.Restore(saved[i])
		}
		return err
	}
	return nil
}
