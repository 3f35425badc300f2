package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/Lllllllleong/tenderflow/internal/models"
	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
)

// Badger keeps ledgers in a local BadgerDB, one JSON record per tender and ledger.
type Badger struct {
	db     *badger.DB
	ledger Ledger
	owned  bool
}

type badgerLogger struct {
	logger *slog.Logger
}

var _ badger.Logger = (*badgerLogger)(nil)

func (l *badgerLogger) Errorf(msg string, items ...any) { l.logger.Error(fmt.Sprintf(msg, items...)) }
func (l *badgerLogger) Warningf(msg string, items ...any) {
	l.logger.Warn(fmt.Sprintf(msg, items...))
}
func (l *badgerLogger) Infof(msg string, items ...any)  { l.logger.Debug(fmt.Sprintf(msg, items...)) }
func (l *badgerLogger) Debugf(msg string, items ...any) { l.logger.Debug(fmt.Sprintf(msg, items...)) }

// OpenBadgerDB opens the database at dir, creating the directory if needed. An empty dir opens an in-memory database.
func OpenBadgerDB(dir string) (*badger.DB, error) {
	var opts badger.Options
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create progress directory %s: %w", dir, err)
		}
		opts = badger.DefaultOptions(dir)
	}
	opts.Logger = &badgerLogger{logger: slog.Default()}
	opts.Compression = options.None

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open progress database: %w", err)
	}
	return db, nil
}

// NewBadger opens its own database; Close releases it.
func NewBadger(dir string, ledger Ledger) (*Badger, error) {
	db, err := OpenBadgerDB(dir)
	if err != nil {
		return nil, err
	}
	return &Badger{db: db, ledger: ledger, owned: true}, nil
}

// NewBadgerWithDB shares db between ledgers; the caller closes it.
func NewBadgerWithDB(db *badger.DB, ledger Ledger) *Badger {
	return &Badger{db: db, ledger: ledger}
}

func (b *Badger) Close() error {
	if b.owned {
		return b.db.Close()
	}
	return nil
}

func (b *Badger) key(tenderID string) []byte {
	return []byte("progress/" + string(b.ledger) + "/" + tenderID)
}

func (b *Badger) IsComplete(ctx context.Context, tenderID, name string) (bool, error) {
	rec, err := b.Record(ctx, tenderID)
	if err != nil {
		return false, err
	}
	return rec.IsComplete(name), nil
}

// conflictRetries bounds how often a read-modify-write is replayed after a concurrent write to the same tender.
const conflictRetries = 32

func (b *Badger) MarkComplete(ctx context.Context, tenderID, name string, pages []int) error {
	var err error
	for range conflictRetries {
		err = b.markComplete(tenderID, name, pages)
		if !errors.Is(err, badger.ErrConflict) {
			break
		}
	}
	if err != nil {
		return fmt.Errorf("failed to mark %s complete for tender %s: %w", name, tenderID, err)
	}
	return nil
}

func (b *Badger) markComplete(tenderID, name string, pages []int) error {
	return b.db.Update(func(txn *badger.Txn) error {
		rec, err := readRecord(txn, b.key(tenderID), tenderID)
		if err != nil {
			return err
		}
		rec.MarkComplete(name, pages, time.Now().UTC())
		value, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return txn.Set(b.key(tenderID), value)
	})
}

func (b *Badger) Record(ctx context.Context, tenderID string) (*models.ProgressRecord, error) {
	var rec *models.ProgressRecord
	err := b.db.View(func(txn *badger.Txn) error {
		var err error
		rec, err = readRecord(txn, b.key(tenderID), tenderID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read progress for tender %s: %w", tenderID, err)
	}
	return rec, nil
}

func readRecord(txn *badger.Txn, key []byte, tenderID string) (*models.ProgressRecord, error) {
	rec := &models.ProgressRecord{TenderID: tenderID}
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return rec, nil
	}
	if err != nil {
		return nil, err
	}
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, rec)
	})
	return rec, err
}
