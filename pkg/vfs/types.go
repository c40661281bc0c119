package vfs

import "fmt"

// FileID identifies a file or directory for the lifetime of a session.
//
// Ids are dense positive integers allocated by the RecordStore. Once an id has
// been invalidated it is never handed out again within the same session.
type FileID int32

// Valid reports whether the id is positive.
func (id FileID) Valid() bool { return id > 0 }

func (id FileID) String() string { return fmt.Sprintf("#%d", int32(id)) }

// NameID identifies an interned file name. Zero and negative values never
// name anything.
type NameID int32

// Valid reports whether the name id is positive.
func (n NameID) Valid() bool { return n > 0 }

// Flags is the packed per-file word: the top byte holds boolean flags and the
// low 24 bits hold the modification stamp.
type Flags uint32

const (
	FlagWritable              Flags = 0x01000000
	FlagHidden                Flags = 0x02000000
	FlagIndexed               Flags = 0x04000000
	FlagChildrenCaseSensitive Flags = 0x08000000
	FlagSpecial               Flags = 0x10000000
	FlagSymlink               Flags = 0x20000000
	FlagHasSymlink            Flags = 0x40000000
	FlagOffline               Flags = 0x80000000

	// AllFlagsMask covers every bit reserved for flags.
	AllFlagsMask Flags = 0xFF000000

	// StampMask covers the modification stamp bits.
	StampMask Flags = ^AllFlagsMask
)

// Valid reports whether the mask only touches flag bits and is not empty.
func (f Flags) Valid() bool {
	return f != 0 && f&^AllFlagsMask == 0
}

// Stamp extracts the modification stamp.
func (f Flags) Stamp() uint32 { return uint32(f & StampMask) }

// Has reports whether every bit in mask is set.
func (f Flags) Has(mask Flags) bool { return f&mask == mask }

// With returns f with mask set or cleared according to value.
func (f Flags) With(mask Flags, value bool) Flags {
	if value {
		return f | mask
	}
	return f &^ mask
}

var flagNames = []struct {
	flag Flags
	name string
}{
	{FlagWritable, "writable"},
	{FlagHidden, "hidden"},
	{FlagIndexed, "indexed"},
	{FlagChildrenCaseSensitive, "childrenCaseSensitive"},
	{FlagSpecial, "special"},
	{FlagSymlink, "symlink"},
	{FlagHasSymlink, "hasSymlink"},
	{FlagOffline, "offline"},
}

func (f Flags) String() string {
	out := ""
	for _, fn := range flagNames {
		if f&fn.flag == 0 {
			continue
		}
		if out != "" {
			out += "|"
		}
		out += fn.name
	}
	if out == "" {
		out = "none"
	}
	return fmt.Sprintf("%s stamp=%d", out, f.Stamp())
}

// StampFromCounter truncates a counter into the stamp bits.
func StampFromCounter(counter uint64) uint32 {
	return uint32(counter) & uint32(StampMask)
}
