package kv

import (
	"errors"
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v4"

	"github.com/rubiojr/mithril/pkg/log"
)

// BadgerStore keeps values in a Badger database directory.
type BadgerStore struct {
	db *badger.DB
}

// badgerLogger routes Badger's internal logging to the "kv" logger; Badger's
// info chatter is demoted to debug.
type badgerLogger struct {
	l *log.Logger
}

var _ badger.Logger = (*badgerLogger)(nil)

func (b *badgerLogger) Errorf(msg string, items ...any)   { b.l.Errorf(msg, items...) }
func (b *badgerLogger) Warningf(msg string, items ...any) { b.l.Warnf(msg, items...) }
func (b *badgerLogger) Infof(msg string, items ...any)    { b.l.Debugf(msg, items...) }
func (b *badgerLogger) Debugf(msg string, items ...any)   { b.l.Debugf(msg, items...) }

// NewBadgerStore opens the Badger database in dir. An empty dir opens an
// in-memory database.
func NewBadgerStore(dir string) (*BadgerStore, error) {
	var opts badger.Options
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating badger directory: %w", err)
		}
		opts = badger.DefaultOptions(dir)
	}
	opts.Logger = &badgerLogger{l: log.ForService("kv")}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening badger: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

func (b *BadgerStore) Read(key string) ([]byte, error) {
	var value []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, wrap("badger", "read", key, err)
	}
	return value, nil
}

func (b *BadgerStore) Write(key string, value []byte) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
	return wrap("badger", "write", key, err)
}

func (b *BadgerStore) Delete(key string) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	return wrap("badger", "delete", key, err)
}

func (b *BadgerStore) Close() error {
	return b.db.Close()
}
