package replay

import "sync"

// KeyedMutex serializes work per string key. Replay is single-writer per
// (account, asset) pair; cross-pair concurrency stays unrestricted.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	mu   sync.Mutex
	refs int
}

// NewKeyedMutex creates an empty keyed mutex.
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*entry)}
}

// Lock acquires the lock for key, blocking while another holder has it.
func (k *KeyedMutex) Lock(key string) {
	k.mu.Lock()
	e, ok := k.locks[key]
	if !ok {
		e = &entry{}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
}

// Unlock releases the lock for key and frees it once nobody waits.
func (k *KeyedMutex) Unlock(key string) {
	k.mu.Lock()
	e, ok := k.locks[key]
	if ok {
		e.refs--
		if e.refs == 0 {
			delete(k.locks, key)
		}
	}
	k.mu.Unlock()

	if ok {
		e.mu.Unlock()
	}
}

// pairKey builds the serialization key for an (account, asset) pair.
func pairKey(accountID, assetID string) string {
	return accountID + "|" + assetID
}
