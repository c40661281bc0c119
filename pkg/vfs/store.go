package vfs

import "context"

// Record is the durable description of one file as kept by a RecordStore.
type Record struct {
	ID        FileID
	Parent    FileID // zero for roots
	NameID    NameID
	Directory bool
}

// RecordStore is the persistent collaborator behind the cache.
//
// It allocates file ids, interns names, and remembers the parent of every
// record. The cache never writes slot data back to it: the caller that
// creates or moves a file updates the store and then tells the cache.
//
// Implementations must be safe for concurrent use.
type RecordStore interface {
	// AllocateID returns a fresh, never used, positive file id.
	AllocateID(ctx context.Context) (FileID, error)

	// EnsureName interns name and returns its id. Calling it twice with the
	// same name returns the same id.
	EnsureName(ctx context.Context, name string) (NameID, error)

	// NameOf returns the name interned under id, or ErrNameNotFound.
	NameOf(ctx context.Context, id NameID) (string, error)

	// PutRecord creates or replaces a record, updating the children index of
	// both the old and the new parent.
	PutRecord(ctx context.Context, rec Record) error

	// Record returns the record for id, or ErrRecordNotFound.
	Record(ctx context.Context, id FileID) (Record, error)

	// ParentOf returns the parent of id, or ErrRecordNotFound.
	ParentOf(ctx context.Context, id FileID) (FileID, error)

	// Children lists the ids whose parent is id, in ascending id order.
	Children(ctx context.Context, id FileID) ([]FileID, error)

	// DeleteRecord removes id. Deleting a missing record is not an error.
	DeleteRecord(ctx context.Context, id FileID) error

	// SetRoot registers id as the root called name.
	SetRoot(ctx context.Context, name string, id FileID) error

	// Root returns the root registered under name, or ErrRootNotFound.
	Root(ctx context.Context, name string) (FileID, error)

	// Roots returns all registered roots keyed by name.
	Roots(ctx context.Context) (map[string]FileID, error)

	// Close releases resources held by the store.
	Close() error
}

// DeletionObserver is told which ids are about to be cleaned up.
//
// BeforeCleanup runs while the write window is still held and before the
// slots of ids are marked dead, so handles to them can still be read.
type DeletionObserver interface {
	BeforeCleanup(ids []FileID)
}

// DeletionObserverFunc adapts a function to DeletionObserver.
type DeletionObserverFunc func(ids []FileID)

func (f DeletionObserverFunc) BeforeCleanup(ids []FileID) { f(ids) }
