package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/streamforge/resolver/internal/core/domain"
	"github.com/syndtr/goleveldb/leveldb"
)

// DiskTier persists entries in an embedded LevelDB database. It survives
// restarts and sits between the memory and remote tiers. Expired entries
// are dropped lazily on read.
type DiskTier struct {
	cfg DiskConfig
	db  *leveldb.DB
}

// NewDiskTier opens (or creates) the database at cfg.Path.
func NewDiskTier(cfg DiskConfig) (*DiskTier, error) {
	db, err := leveldb.OpenFile(cfg.Path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open disk tier at %s: %w", cfg.Path, err)
	}
	return &DiskTier{cfg: cfg, db: db}, nil
}

func (d *DiskTier) Name() string          { return "disk" }
func (d *DiskTier) Remote() bool          { return false }
func (d *DiskTier) MaxTTL() time.Duration { return d.cfg.MaxTTL }

func (d *DiskTier) Get(ctx context.Context, key string) (*domain.CacheEntry, bool, error) {
	raw, err := d.db.Get([]byte(key), nil)
	if err == leveldb.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("disk get failed: %w", err)
	}

	var entry domain.CacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		// Malformed on-disk entry: drop it and report a miss.
		_ = d.db.Delete([]byte(key), nil)
		return nil, false, fmt.Errorf("malformed disk entry: %w", err)
	}

	if !usable(d, &entry, time.Now()) {
		_ = d.db.Delete([]byte(key), nil)
		return nil, false, nil
	}
	return &entry, true, nil
}

func (d *DiskTier) Set(ctx context.Context, key string, entry *domain.CacheEntry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode entry: %w", err)
	}
	if err := d.db.Put([]byte(key), raw, nil); err != nil {
		return fmt.Errorf("disk put failed: %w", err)
	}
	return nil
}

func (d *DiskTier) Delete(ctx context.Context, key string) error {
	if err := d.db.Delete([]byte(key), nil); err != nil {
		return fmt.Errorf("disk delete failed: %w", err)
	}
	return nil
}

func (d *DiskTier) Clear(ctx context.Context) error {
	batch := new(leveldb.Batch)
	iter := d.db.NewIterator(nil, nil)
	for iter.Next() {
		k := make([]byte, len(iter.Key()))
		copy(k, iter.Key())
		batch.Delete(k)
	}
	iter.Release()
	if err := iter.Error(); err != nil {
		return fmt.Errorf("disk clear iteration failed: %w", err)
	}
	if err := d.db.Write(batch, nil); err != nil {
		return fmt.Errorf("disk clear failed: %w", err)
	}
	return nil
}

// Close releases the underlying database.
func (d *DiskTier) Close() error {
	return d.db.Close()
}
