package store

import (
	"bytes"
	"sync"
)

// MemoryStore keeps the snapshot in memory, encoded exactly as a FileStore
// would write it. It's used for sessions that don't need to outlive the
// process, and in tests.
type MemoryStore struct {
	lock sync.Mutex
	data []byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (ms *MemoryStore) Load() (Snapshot, bool, error) {
	ms.lock.Lock()
	defer ms.lock.Unlock()

	if ms.data == nil {
		return Snapshot{}, false, nil
	}
	snapshot, err := Decode(bytes.NewReader(ms.data))
	if err != nil {
		return Snapshot{}, false, err
	}
	return snapshot, true, nil
}

func (ms *MemoryStore) Save(snapshot Snapshot) error {
	var buffer bytes.Buffer
	if err := Encode(&buffer, snapshot); err != nil {
		return err
	}

	ms.lock.Lock()
	ms.data = buffer.Bytes()
	ms.lock.Unlock()
	return nil
}

// Bytes returns a copy of the encoded snapshot, or nil if nothing has been
// saved.
func (ms *MemoryStore) Bytes() []byte {
	ms.lock.Lock()
	defer ms.lock.Unlock()

	if ms.data == nil {
		return nil
	}
	return append([]byte(nil), ms.data...)
}
