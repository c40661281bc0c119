package badger

import (
	"context"
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/marmos91/dittovfs/pkg/vfs"
	pkgerrors "github.com/pkg/errors"
)

// AllocateID returns the next id of the id sequence.
func (s *BadgerRecordStore) AllocateID(ctx context.Context) (vfs.FileID, error) {
	done, err := s.begin(ctx)
	if err != nil {
		return 0, err
	}
	defer done()

	next, err := s.idSeq.Next()
	if err != nil {
		return 0, pkgerrors.Wrap(err, "allocate file id")
	}
	return vfs.FileID(next + 1), nil
}

// EnsureName interns name, allocating a new name id on first use.
func (s *BadgerRecordStore) EnsureName(ctx context.Context, name string) (vfs.NameID, error) {
	done, err := s.begin(ctx)
	if err != nil {
		return 0, err
	}
	defer done()

	s.nameMu.Lock()
	defer s.nameMu.Unlock()

	var id vfs.NameID
	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(keyNameID(name))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			id = vfs.NameID(decodeID(val))
			return nil
		})
	})
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, badger.ErrKeyNotFound) {
		return 0, pkgerrors.Wrapf(err, "lookup name %q", name)
	}

	next, err := s.nameSeq.Next()
	if err != nil {
		return 0, pkgerrors.Wrap(err, "allocate name id")
	}
	id = vfs.NameID(next + 1)
	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(keyNameID(name), encodeID(int32(id))); err != nil {
			return err
		}
		return txn.Set(keyName(id), []byte(name))
	})
	if err != nil {
		return 0, pkgerrors.Wrapf(err, "store name %q", name)
	}
	return id, nil
}

// NameOf returns the string interned under id.
func (s *BadgerRecordStore) NameOf(ctx context.Context, id vfs.NameID) (string, error) {
	done, err := s.begin(ctx)
	if err != nil {
		return "", err
	}
	defer done()

	var name string
	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(keyName(id))
		if err != nil {
			return err
		}
		val, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		name = string(val)
		return nil
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", vfs.ErrNameNotFound
	}
	if err != nil {
		return "", pkgerrors.Wrapf(err, "read name %d", id)
	}
	return name, nil
}

func getRecord(txn *badger.Txn, id vfs.FileID) (vfs.Record, error) {
	item, err := txn.Get(keyRecord(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return vfs.Record{}, vfs.ErrRecordNotFound
	}
	if err != nil {
		return vfs.Record{}, err
	}
	val, err := item.ValueCopy(nil)
	if err != nil {
		return vfs.Record{}, err
	}
	return decodeRecord(id, val)
}

// PutRecord stores rec and keeps the children index in sync in the same
// transaction.
func (s *BadgerRecordStore) PutRecord(ctx context.Context, rec vfs.Record) error {
	if err := vfs.CheckID(rec.ID); err != nil {
		return err
	}
	done, err := s.begin(ctx)
	if err != nil {
		return err
	}
	defer done()

	val, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		old, err := getRecord(txn, rec.ID)
		switch {
		case errors.Is(err, vfs.ErrRecordNotFound):
		case err != nil:
			return err
		case old.Parent != rec.Parent && old.Parent.Valid():
			if err := txn.Delete(keyChild(old.Parent, rec.ID)); err != nil {
				return err
			}
		}
		if err := txn.Set(keyRecord(rec.ID), val); err != nil {
			return err
		}
		if rec.Parent.Valid() {
			return txn.Set(keyChild(rec.Parent, rec.ID), nil)
		}
		return nil
	})
	if err != nil {
		return pkgerrors.Wrapf(err, "put record %d", rec.ID)
	}
	return nil
}

// Record returns the record of id.
func (s *BadgerRecordStore) Record(ctx context.Context, id vfs.FileID) (vfs.Record, error) {
	done, err := s.begin(ctx)
	if err != nil {
		return vfs.Record{}, err
	}
	defer done()

	var rec vfs.Record
	err = s.db.View(func(txn *badger.Txn) error {
		var err error
		rec, err = getRecord(txn, id)
		return err
	})
	if errors.Is(err, vfs.ErrRecordNotFound) {
		return vfs.Record{}, err
	}
	if err != nil {
		return vfs.Record{}, pkgerrors.Wrapf(err, "read record %d", id)
	}
	return rec, nil
}

// ParentOf returns the parent of id.
func (s *BadgerRecordStore) ParentOf(ctx context.Context, id vfs.FileID) (vfs.FileID, error) {
	rec, err := s.Record(ctx, id)
	if err != nil {
		return 0, err
	}
	return rec.Parent, nil
}

// Children scans the children index of id.
func (s *BadgerRecordStore) Children(ctx context.Context, id vfs.FileID) ([]vfs.FileID, error) {
	done, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer done()

	out := []vfs.FileID{}
	err = s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = keyChildPrefix(id)
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			out = append(out, childFromKey(it.Item().Key()))
			if len(out)%1000 == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list children of %d: %w", id, err)
	}
	return out, nil
}

// DeleteRecord removes id and its children index entry.
func (s *BadgerRecordStore) DeleteRecord(ctx context.Context, id vfs.FileID) error {
	done, err := s.begin(ctx)
	if err != nil {
		return err
	}
	defer done()

	err = s.db.Update(func(txn *badger.Txn) error {
		rec, err := getRecord(txn, id)
		if errors.Is(err, vfs.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if rec.Parent.Valid() {
			if err := txn.Delete(keyChild(rec.Parent, id)); err != nil {
				return err
			}
		}
		return txn.Delete(keyRecord(id))
	})
	if err != nil {
		return pkgerrors.Wrapf(err, "delete record %d", id)
	}
	return nil
}

// SetRoot registers id under name.
func (s *BadgerRecordStore) SetRoot(ctx context.Context, name string, id vfs.FileID) error {
	if err := vfs.CheckID(id); err != nil {
		return err
	}
	done, err := s.begin(ctx)
	if err != nil {
		return err
	}
	defer done()

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(keyRoot(name), encodeID(int32(id)))
	})
	if err != nil {
		return pkgerrors.Wrapf(err, "set root %q", name)
	}
	return nil
}

// Root returns the root registered under name.
func (s *BadgerRecordStore) Root(ctx context.Context, name string) (vfs.FileID, error) {
	done, err := s.begin(ctx)
	if err != nil {
		return 0, err
	}
	defer done()

	var id vfs.FileID
	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(keyRoot(name))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			id = vfs.FileID(decodeID(val))
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, vfs.ErrRootNotFound
	}
	if err != nil {
		return 0, pkgerrors.Wrapf(err, "read root %q", name)
	}
	return id, nil
}

// Roots scans the root table.
func (s *BadgerRecordStore) Roots(ctx context.Context) (map[string]vfs.FileID, error) {
	done, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer done()

	out := make(map[string]vfs.FileID)
	err = s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefixRoot)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			name := string(item.Key()[len(prefixRoot):])
			err := item.Value(func(val []byte) error {
				out[name] = vfs.FileID(decodeID(val))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list roots: %w", err)
	}
	return out, nil
}
