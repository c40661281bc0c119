package vfs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorCodes(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code ErrorCode
	}{
		{"already initialized", &AlreadyInitializedError{ID: 1}, ErrAlreadyInitialized},
		{"invalid handle", &InvalidHandleError{ID: 2}, ErrInvalidHandle},
		{"consistency", NewConsistencyError(3, "broken"), ErrConsistency},
		{"argument", &ArgumentError{Arg: "id", Value: 0}, ErrInvalidArgument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("outer: %w", tt.err)
			code, ok := CodeOf(wrapped)
			require.True(t, ok)
			assert.Equal(t, tt.code, code)
		})
	}

	_, ok := CodeOf(errors.New("plain"))
	assert.False(t, ok)
}

func TestAlreadyInitializedMessage(t *testing.T) {
	err := &AlreadyInitializedError{ID: 4, NameID: 9, Name: "a.txt", Existing: "file", Incoming: "dir"}
	assert.Equal(t,
		`file already created: id=4 nameId=9 name="a.txt" data: dir, alreadyExistingData: file`,
		err.Error())
}

func TestInvalidHandleMessage(t *testing.T) {
	err := (&InvalidHandleError{ID: 7}).WithPath("/root/report.txt")
	assert.Equal(t, "accessing dead virtual file: /root/report.txt (id=7)", err.Error())
	assert.True(t, IsInvalidHandle(fmt.Errorf("read: %w", err)))
	assert.Equal(t, "accessing dead virtual file: id=8", (&InvalidHandleError{ID: 8}).Error())
}

func TestConsistencyErrorDetails(t *testing.T) {
	err := NewConsistencyError(5, "non-positive name id").
		WithDetail("parentId", 1).
		WithDetail("nameId", 0)

	assert.Equal(t, "consistency violation for id=5: non-positive name id; nameId=0; parentId=1", err.Error())
	ce, ok := AsConsistencyError(fmt.Errorf("resolve: %w", err))
	require.True(t, ok)
	assert.Equal(t, 1, ce.Details()["parentId"])
}

func TestCheckID(t *testing.T) {
	assert.NoError(t, CheckID(1))
	assert.Error(t, CheckID(0))
	assert.Error(t, CheckID(-3))
}

func TestFlags(t *testing.T) {
	f := Flags(0).With(FlagHidden, true).With(FlagSymlink, true) | 42
	assert.True(t, f.Has(FlagHidden|FlagSymlink))
	assert.False(t, f.Has(FlagWritable))
	assert.Equal(t, uint32(42), f.Stamp())
	assert.Equal(t, "hidden|symlink stamp=42", f.String())
	assert.Equal(t, "none stamp=0", Flags(0).String())

	assert.True(t, FlagOffline.Valid())
	assert.False(t, Flags(0).Valid())
	assert.False(t, (FlagHidden | 1).Valid())

	assert.Equal(t, uint32(0), StampFromCounter(1<<24))
	assert.Equal(t, uint32(5), StampFromCounter(1<<24+5))
}
