package assetstate

import (
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"
)

// Snapshot produces the persisted-state form of §4.2.4: authorized
// principals and assets only — chunks and batches are intentionally
// excluded, since they are transient staging state.
func (s *State) Snapshot() StableState {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := StableState{Authorized: make([]string, 0, len(s.authorized))}
	for p := range s.authorized {
		out.Authorized = append(out.Authorized, p)
	}
	for _, a := range s.assets {
		out.Assets = append(out.Assets, *a)
	}
	return out
}

// Restore rehydrates from a snapshot: every encoding is marked
// certified=false and the tree is rebuilt from scratch by replaying
// on_asset_change for every asset, per §4.2.4.
func (s *State) Restore(snap StableState) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.authorized = map[string]bool{}
	for _, p := range snap.Authorized {
		s.authorized[p] = true
	}
	s.assets = map[string]*Asset{}
	s.tree = NewTrie()
	s.chunks = map[uint64]*Chunk{}
	s.batches = map[uint64]*Batch{}

	for i := range snap.Assets {
		a := snap.Assets[i]
		for _, e := range a.Encodings {
			e.Certified = false
		}
		s.assets[a.Key] = &a
	}
	for key, a := range s.assets {
		s.onAssetChange(key, a)
	}
}

var snapshotBucket = []byte("assetstate_snapshot")
var snapshotKey = []byte("stable_state")

// PersistTo writes the current snapshot into a bbolt database at path,
// overwriting any previous snapshot. Used by cmd/assetserver --persist.
func (s *State) PersistTo(path string) error {
	snap := s.Snapshot()
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return fmt.Errorf("open snapshot store: %w", err)
	}
	defer db.Close()
	return db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(snapshotBucket)
		if err != nil {
			return err
		}
		return b.Put(snapshotKey, data)
	})
}

// RestoreFrom reads a snapshot previously written by PersistTo and
// rehydrates s from it. A missing database or bucket is not an error:
// the state simply starts empty.
func (s *State) RestoreFrom(path string) error {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return fmt.Errorf("open snapshot store: %w", err)
	}
	defer db.Close()

	var data []byte
	err = db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(snapshotBucket)
		if b == nil {
			return nil
		}
		v := b.Get(snapshotKey)
		if v != nil {
			data = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("read snapshot store: %w", err)
	}
	if data == nil {
		return nil
	}
	var snap StableState
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("unmarshal snapshot: %w", err)
	}
	s.Restore(snap)
	return nil
}
