package services

import "sync"

// keyedMutex hands out one mutex per session key so that different
// sessions never serialize against each other. The registry itself is only
// locked long enough to look up or create an entry.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (k *keyedMutex) get(key string) *sync.Mutex {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.locks == nil {
		k.locks = make(map[string]*sync.Mutex)
	}
	lock, ok := k.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		k.locks[key] = lock
	}
	return lock
}

// sessionKey identifies one (owner, filename) pair. The owner is a UUID,
// so the separator cannot collide.
func sessionKey(owner, filename string) string {
	return owner + "/" + filename
}
