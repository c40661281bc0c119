package badger

import (
	"encoding/binary"

	"github.com/marmos91/dittovfs/pkg/vfs"
)

// Database Key Namespace Design
// ==============================
//
// BadgerDB is a key-value store, so prefixed keys split the data into
// namespaces. Ids are encoded big endian so that range scans return them in
// ascending order.
//
// Data Type          Prefix   Key Format                     Value Type
// =======================================================================
// Records            "r:"     r:<id>                         record (JSON)
// Children index     "c:"     c:<parentID><childID>          empty
// Names by id        "n:"     n:<nameID>                     name (bytes)
// Name ids by name   "N:"     N:<name>                       nameID (binary)
// Roots              "root:"  root:<name>                    id (binary)
// Sequences          "seq:"   seq:id, seq:name               badger.Sequence
//
// The children index is denormalized: one key per child, no value, so that
// listing a directory is a single prefix scan over "c:<parentID>".

const (
	prefixRecord = "r:"
	prefixChild  = "c:"
	prefixName   = "n:"
	prefixNameID = "N:"
	prefixRoot   = "root:"

	keySeqID   = "seq:id"
	keySeqName = "seq:name"
)

func appendID(b []byte, v int32) []byte {
	return binary.BigEndian.AppendUint32(b, uint32(v))
}

func keyRecord(id vfs.FileID) []byte {
	return appendID([]byte(prefixRecord), int32(id))
}

func keyChildPrefix(parent vfs.FileID) []byte {
	return appendID([]byte(prefixChild), int32(parent))
}

func keyChild(parent, child vfs.FileID) []byte {
	return appendID(keyChildPrefix(parent), int32(child))
}

// childFromKey extracts the child id of a children index key.
func childFromKey(key []byte) vfs.FileID {
	return vfs.FileID(binary.BigEndian.Uint32(key[len(key)-4:]))
}

func keyName(id vfs.NameID) []byte {
	return appendID([]byte(prefixName), int32(id))
}

func keyNameID(name string) []byte {
	return []byte(prefixNameID + name)
}

func keyRoot(name string) []byte {
	return []byte(prefixRoot + name)
}

func encodeID(v int32) []byte {
	return appendID(nil, v)
}

func decodeID(b []byte) int32 {
	if len(b) != 4 {
		return 0
	}
	return int32(binary.BigEndian.Uint32(b))
}
