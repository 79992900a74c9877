package engine

import (
	"sync"

	"github.com/roach88/harberger/internal/ledger"
)

// AssetLocks enforces a single writer per asset.
//
// Each collection has an RWMutex: asset operations hold it shared, rate
// changes hold it exclusively. Each asset has its own Mutex under that.
// Acquisition never blocks; a held lock is reported as ASSET_BUSY.
//
// Lock entries are created on first use and never removed.
type AssetLocks struct {
	mu          sync.Mutex
	collections map[string]*sync.RWMutex
	assets      map[ledger.AssetKey]*sync.Mutex
}

// NewAssetLocks creates an empty lock table.
func NewAssetLocks() *AssetLocks {
	return &AssetLocks{
		collections: make(map[string]*sync.RWMutex),
		assets:      make(map[ledger.AssetKey]*sync.Mutex),
	}
}

func (l *AssetLocks) entries(key ledger.AssetKey) (*sync.RWMutex, *sync.Mutex) {
	l.mu.Lock()
	defer l.mu.Unlock()

	coll, ok := l.collections[key.CollectionID]
	if !ok {
		coll = &sync.RWMutex{}
		l.collections[key.CollectionID] = coll
	}
	if key.AssetID == "" {
		return coll, nil
	}
	asset, ok := l.assets[key]
	if !ok {
		asset = &sync.Mutex{}
		l.assets[key] = asset
	}
	return coll, asset
}

// LockAsset takes the collection read lock and the asset lock. The
// returned func releases both.
func (l *AssetLocks) LockAsset(key ledger.AssetKey) (func(), error) {
	coll, asset := l.entries(key)
	if !coll.TryRLock() {
		return nil, ledger.NewAssetBusyError(key)
	}
	if !asset.TryLock() {
		coll.RUnlock()
		return nil, ledger.NewAssetBusyError(key)
	}
	return func() {
		asset.Unlock()
		coll.RUnlock()
	}, nil
}

// LockCollection takes the collection write lock, excluding every asset
// operation in the collection.
func (l *AssetLocks) LockCollection(collectionID string) (func(), error) {
	coll, _ := l.entries(ledger.AssetKey{CollectionID: collectionID})
	if !coll.TryLock() {
		return nil, ledger.NewAssetBusyError(ledger.AssetKey{CollectionID: collectionID})
	}
	return coll.Unlock, nil
}
