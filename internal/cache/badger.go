package cache

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// BadgerStore persists cache entries across restarts. Expiring entries are
// written with a badger TTL so the database drops them on its own.
type BadgerStore struct {
	db *badger.DB
}

type zapBadgerLogger struct {
	log *zap.SugaredLogger
}

var _ badger.Logger = (*zapBadgerLogger)(nil)

func (l *zapBadgerLogger) Errorf(msg string, args ...any)   { l.log.Errorf(msg, args...) }
func (l *zapBadgerLogger) Warningf(msg string, args ...any) { l.log.Warnf(msg, args...) }
func (l *zapBadgerLogger) Infof(msg string, args ...any)    { l.log.Debugf(msg, args...) }
func (l *zapBadgerLogger) Debugf(msg string, args ...any)   { l.log.Debugf(msg, args...) }

// OpenBadger opens a store rooted at dir. An empty dir opens an in-memory
// database.
func OpenBadger(dir string) (*BadgerStore, error) {
	var opts badger.Options
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, eris.Wrapf(err, "cache: create badger dir %s", dir)
		}
		opts = badger.DefaultOptions(dir)
	}
	opts.Logger = &zapBadgerLogger{log: zap.S().Named("badger")}
	opts.Compression = options.None

	db, err := badger.Open(opts)
	if err != nil {
		return nil, eris.Wrap(err, "cache: open badger")
	}
	return &BadgerStore{db: db}, nil
}

func (b *BadgerStore) Get(_ context.Context, key string) (Entry, bool, error) {
	var e Entry
	err := b.db.View(func(tx *badger.Txn) error {
		item, err := tx.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &e)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, eris.Wrapf(err, "cache: badger get %s", key)
	}
	return e, true, nil
}

func (b *BadgerStore) Set(_ context.Context, key string, e Entry) error {
	val, err := json.Marshal(e)
	if err != nil {
		return eris.Wrap(err, "cache: encode entry")
	}
	be := badger.NewEntry([]byte(key), val)
	if !e.ExpiresAt.IsZero() {
		ttl := time.Until(e.ExpiresAt)
		if ttl <= 0 {
			return nil
		}
		be = be.WithTTL(ttl)
	}
	return eris.Wrapf(b.db.Update(func(tx *badger.Txn) error {
		return tx.SetEntry(be)
	}), "cache: badger set %s", key)
}

// Len counts live keys. It walks the key space and is meant for stats.
func (b *BadgerStore) Len() int {
	n := 0
	_ = b.db.View(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := tx.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	return n
}

func (b *BadgerStore) Close() error {
	return eris.Wrap(b.db.Close(), "cache: close badger")
}
