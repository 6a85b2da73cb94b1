package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"

	"github.com/listenupapp/moments-pipeline/internal/domain"
	domainerrors "github.com/listenupapp/moments-pipeline/internal/errors"
	"github.com/listenupapp/moments-pipeline/internal/logger"
)

const reportPrefix = "report/"

// Badger stores each record under "<collection>/<id>" and each report
// under "report/<run_id>".
type Badger struct {
	db     *badger.DB
	path   string
	logger *slog.Logger
}

// OpenBadger opens the database directory at path. An empty path opens an
// in-memory database.
func OpenBadger(path string, log *slog.Logger) (*Badger, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.Logger = nil            // Disable Badger's internal logging
	opts.SyncWrites = true       // Ensure writes are synced to disk to prevent corruption on crashes
	opts.CompactL0OnClose = true // Compact L0 tables on close for faster startup

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	l := logger.OrDiscard(log)
	l.Info("badger sink opened", "path", path)
	return &Badger{db: db, path: path, logger: l}, nil
}

// Name implements Sink.
func (s *Badger) Name() string { return "badger" }

// Close closes the database.
func (s *Badger) Close() error {
	return s.db.Close()
}

// Write drops the collection's existing keys, then writes every record in
// one batch.
func (s *Badger) Write(ctx context.Context, collection string, records []domain.Keyed) error {
	if err := checkRecords(collection, records); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	prefix := []byte(collection + "/")
	if err := s.db.DropPrefix(prefix); err != nil {
		return domainerrors.Wrapf(err, domainerrors.CodeOutput, "clear %s", collection)
	}

	batch := s.db.NewWriteBatch()
	defer batch.Cancel()

	for _, r := range records {
		data, err := json.Marshal(r)
		if err != nil {
			return domainerrors.Wrapf(err, domainerrors.CodeOutput, "marshal %s %s", collection, r.Key())
		}
		if err := batch.Set(recordKey(collection, r.Key()), data); err != nil {
			return domainerrors.Wrapf(err, domainerrors.CodeOutput, "batch set %s %s", collection, r.Key())
		}
	}

	if err := batch.Flush(); err != nil {
		return domainerrors.Wrapf(err, domainerrors.CodeOutput, "flush %s", collection)
	}
	s.logger.Info("collection written", "collection", collection, "records", len(records), "path", s.path)
	return nil
}

// WriteReport stores the report under its run id.
func (s *Badger) WriteReport(ctx context.Context, report *domain.RunReport) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(report)
	if err != nil {
		return domainerrors.Wrapf(err, domainerrors.CodeOutput, "marshal report")
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(reportPrefix+report.RunID), data)
	})
	if err != nil {
		return domainerrors.Wrapf(err, domainerrors.CodeOutput, "write report")
	}
	s.logger.Info("report written", "run_id", report.RunID, "path", s.path)
	return nil
}

// Get decodes the record stored under collection/key into dest.
func (s *Badger) Get(collection, key string, dest any) error {
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(recordKey(collection, key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, dest)
		})
	})
	if domainerrors.Is(err, badger.ErrKeyNotFound) {
		return domainerrors.NotFoundf("%s/%s", collection, key)
	}
	return err
}

// Count returns the number of keys stored for a collection.
func (s *Badger) Count(collection string) (int, error) {
	n := 0
	prefix := []byte(collection + "/")
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

func recordKey(collection, key string) []byte {
	return []byte(collection + "/" + key)
}
