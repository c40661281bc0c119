package cache

import (
	"fmt"

	"github.com/marmos91/dittovfs/pkg/vfs"
)

// SlotState is the tag of a slot's payload reference.
type SlotState uint8

const (
	// SlotEmpty means the file has not been loaded into the cache yet.
	SlotEmpty SlotState = iota
	SlotLive
	// SlotDead means the file was invalidated and cleaned up. Dead slots
	// never become live again.
	SlotDead
)

func (s SlotState) String() string {
	switch s {
	case SlotEmpty:
		return "empty"
	case SlotLive:
		return "live"
	case SlotDead:
		return "dead"
	default:
		return "unknown"
	}
}

// Payload is the reference half of a slot: a directory record for
// directories, the user data map for plain files.
type Payload struct {
	Directory *DirectoryRecord
	UserMap   *vfs.UserMap
}

// IsDirectory reports whether the payload belongs to a directory.
func (p Payload) IsDirectory() bool { return p.Directory != nil }

func (p Payload) String() string {
	if p.Directory != nil {
		return fmt.Sprintf("directory{children=%d, allLoaded=%t}",
			len(p.Directory.Children()), p.Directory.AllChildrenLoaded())
	}
	return fmt.Sprintf("file{userData=%d}", p.UserMap.Len())
}

// slot values are immutable once published; updates swap the pointer.
type slot struct {
	state   SlotState
	payload Payload
}

var deadSlot = &slot{state: SlotDead}

func liveSlot(p Payload) *slot {
	if p.Directory == nil && p.UserMap == nil {
		p.UserMap = vfs.EmptyUserMap
	}
	return &slot{state: SlotLive, payload: p}
}

func (s *slot) String() string {
	if s == nil {
		return "empty"
	}
	if s.state == SlotDead {
		return "dead"
	}
	return s.payload.String()
}
