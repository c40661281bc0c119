package badger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/marmos91/dittovfs/internal/logger"
	"github.com/marmos91/dittovfs/pkg/vfs"
)

// BadgerRecordStore implements vfs.RecordStore on top of BadgerDB.
//
// It is the durable collaborator of the cache: ids, interned names, parent
// links and roots survive restarts. See keys.go for the key layout.
//
// Thread Safety:
// Reads and writes run in BadgerDB transactions. Name interning is
// serialized by nameMu so that two goroutines interning the same new name
// get the same id.
//
// Id Allocation:
// Ids and name ids come from badger sequences leased in blocks of
// sequenceBandwidth. Leased but unused ids are skipped after a restart, so
// ids are unique and increasing but may have gaps.
type BadgerRecordStore struct {
	db *badger.DB

	idSeq   *badger.Sequence
	nameSeq *badger.Sequence

	// nameMu serializes EnsureName.
	nameMu sync.Mutex

	// closeMu guards closing against in-flight operations.
	closeMu sync.RWMutex
	closed  atomic.Bool
}

// BadgerRecordStoreConfig configures the store.
type BadgerRecordStoreConfig struct {
	// DBPath is the directory holding the database. Required unless
	// InMemory is set.
	DBPath string

	// InMemory keeps everything in RAM (tests, dry runs).
	InMemory bool

	// SyncWrites makes every commit durable before returning.
	SyncWrites bool

	// BlockCacheSizeMB is BadgerDB's block cache size in MB (default: 64)
	BlockCacheSizeMB int64

	// IndexCacheSizeMB is BadgerDB's index cache size in MB (default: 32)
	IndexCacheSizeMB int64
}

const sequenceBandwidth = 1000

// NewBadgerRecordStore opens (or creates) the database described by config.
func NewBadgerRecordStore(ctx context.Context, config BadgerRecordStoreConfig) (*BadgerRecordStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if config.DBPath == "" && !config.InMemory {
		return nil, fmt.Errorf("badger record store requires a db path")
	}

	opts := badger.DefaultOptions(config.DBPath)
	if config.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}

	// records are tiny, compression is not worth it
	opts = opts.WithCompression(options.None)
	opts = opts.WithSyncWrites(config.SyncWrites)
	opts = opts.WithLogger(badgerLogger{})
	opts = opts.WithLoggingLevel(badger.WARNING)

	blockCacheMB := config.BlockCacheSizeMB
	if blockCacheMB == 0 {
		blockCacheMB = 64
	}
	indexCacheMB := config.IndexCacheSizeMB
	if indexCacheMB == 0 {
		indexCacheMB = 32
	}
	opts = opts.WithBlockCacheSize(blockCacheMB << 20)
	opts = opts.WithIndexCacheSize(indexCacheMB << 20)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB at %s: %w", config.DBPath, err)
	}

	idSeq, err := db.GetSequence([]byte(keySeqID), sequenceBandwidth)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to open id sequence: %w", err)
	}
	nameSeq, err := db.GetSequence([]byte(keySeqName), sequenceBandwidth)
	if err != nil {
		_ = idSeq.Release()
		_ = db.Close()
		return nil, fmt.Errorf("failed to open name sequence: %w", err)
	}

	logger.Debug("Opened badger record store at %q (in-memory=%t)", config.DBPath, config.InMemory)
	return &BadgerRecordStore{db: db, idSeq: idSeq, nameSeq: nameSeq}, nil
}

// begin guards an operation against a concurrent Close. The returned
// function must be called when the operation is done.
func (s *BadgerRecordStore) begin(ctx context.Context) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.closeMu.RLock()
	if s.closed.Load() {
		s.closeMu.RUnlock()
		return nil, vfs.ErrStoreClosed
	}
	return s.closeMu.RUnlock, nil
}

// RunValueLogGC reclaims space in the value log. It returns nil when there
// was nothing to rewrite.
func (s *BadgerRecordStore) RunValueLogGC(ctx context.Context, discardRatio float64) error {
	done, err := s.begin(ctx)
	if err != nil {
		return err
	}
	defer done()

	rewritten := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := s.db.RunValueLogGC(discardRatio)
		if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrRejected) ||
			errors.Is(err, badger.ErrGCInMemoryMode) {
			break
		}
		if err != nil {
			return fmt.Errorf("value log gc: %w", err)
		}
		rewritten++
	}
	if rewritten > 0 {
		logger.Info("Badger value log GC rewrote %d files", rewritten)
	}
	return nil
}

// Close releases the sequences and closes the database.
func (s *BadgerRecordStore) Close() error {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()
	if s.closed.Swap(true) {
		return nil
	}

	var errs []error
	if err := s.idSeq.Release(); err != nil {
		errs = append(errs, fmt.Errorf("release id sequence: %w", err))
	}
	if err := s.nameSeq.Release(); err != nil {
		errs = append(errs, fmt.Errorf("release name sequence: %w", err))
	}
	if err := s.db.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close BadgerDB: %w", err))
	}
	return errors.Join(errs...)
}

// badgerLogger routes BadgerDB logs through the package logger.
type badgerLogger struct{}

func (badgerLogger) Errorf(format string, args ...any)   { logger.Error("badger: "+format, args...) }
func (badgerLogger) Warningf(format string, args ...any) { logger.Warn("badger: "+format, args...) }
func (badgerLogger) Infof(format string, args ...any)    { logger.Debug("badger: "+format, args...) }
func (badgerLogger) Debugf(format string, args ...any)   { logger.Debug("badger: "+format, args...) }

var _ vfs.RecordStore = (*BadgerRecordStore)(nil)
