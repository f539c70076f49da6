// Package storefakes provides kvstore.Store doubles for tests.
package storefakes

import (
	"context"
	"sync"
	"time"

	"github.com/jrsteele09/brokerauth/kvstore"
	"github.com/jrsteele09/brokerauth/kvstore/memstore"
)

// Operation names accepted by FaultyStore.Fail.
const (
	OpGet         = "get"
	OpSet         = "set"
	OpDelete      = "delete"
	OpSetAdd      = "sadd"
	OpSetRemove   = "srem"
	OpSetIsMember = "sismember"
	OpSetMembers  = "smembers"
	OpSetSize     = "scard"
)

var _ kvstore.Store = (*FaultyStore)(nil)

// FaultyStore wraps an in-memory store and returns injected errors for
// selected operations.
type FaultyStore struct {
	*memstore.Store
	lock   sync.RWMutex
	faults map[string]error
}

func NewFaultyStore() *FaultyStore {
	return &FaultyStore{
		Store:  memstore.New(),
		faults: make(map[string]error),
	}
}

// Fail makes op return err until Heal is called.
func (f *FaultyStore) Fail(op string, err error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.faults[op] = err
}

func (f *FaultyStore) Heal() {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.faults = make(map[string]error)
}

func (f *FaultyStore) fault(op string) error {
	f.lock.RLock()
	defer f.lock.RUnlock()
	return f.faults[op]
}

func (f *FaultyStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := f.fault(OpGet); err != nil {
		return nil, err
	}
	return f.Store.Get(ctx, key)
}

func (f *FaultyStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := f.fault(OpSet); err != nil {
		return err
	}
	return f.Store.Set(ctx, key, value, ttl)
}

func (f *FaultyStore) Delete(ctx context.Context, key string) (bool, error) {
	if err := f.fault(OpDelete); err != nil {
		return false, err
	}
	return f.Store.Delete(ctx, key)
}

func (f *FaultyStore) SetAdd(ctx context.Context, key, member string) (bool, error) {
	if err := f.fault(OpSetAdd); err != nil {
		return false, err
	}
	return f.Store.SetAdd(ctx, key, member)
}

func (f *FaultyStore) SetRemove(ctx context.Context, key, member string) (bool, error) {
	if err := f.fault(OpSetRemove); err != nil {
		return false, err
	}
	return f.Store.SetRemove(ctx, key, member)
}

func (f *FaultyStore) SetIsMember(ctx context.Context, key, member string) (bool, error) {
	if err := f.fault(OpSetIsMember); err != nil {
		return false, err
	}
	return f.Store.SetIsMember(ctx, key, member)
}

func (f *FaultyStore) SetMembers(ctx context.Context, key string) ([]string, error) {
	if err := f.fault(OpSetMembers); err != nil {
		return nil, err
	}
	return f.Store.SetMembers(ctx, key)
}

func (f *FaultyStore) SetSize(ctx context.Context, key string) (int64, error) {
	if err := f.fault(OpSetSize); err != nil {
		return 0, err
	}
	return f.Store.SetSize(ctx, key)
}
