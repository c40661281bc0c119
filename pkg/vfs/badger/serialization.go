package badger

import (
	"encoding/json"
	"fmt"

	"github.com/marmos91/dittovfs/pkg/vfs"
)

// recordData is the on-disk form of a vfs.Record.
type recordData struct {
	Parent    int32 `json:"p"`
	NameID    int32 `json:"n"`
	Directory bool  `json:"d,omitempty"`
}

func encodeRecord(rec vfs.Record) ([]byte, error) {
	bytes, err := json.Marshal(recordData{
		Parent:    int32(rec.Parent),
		NameID:    int32(rec.NameID),
		Directory: rec.Directory,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode record %d: %w", rec.ID, err)
	}
	return bytes, nil
}

func decodeRecord(id vfs.FileID, bytes []byte) (vfs.Record, error) {
	var data recordData
	if err := json.Unmarshal(bytes, &data); err != nil {
		return vfs.Record{}, fmt.Errorf("failed to decode record %d: %w", id, err)
	}
	return vfs.Record{
		ID:        id,
		Parent:    vfs.FileID(data.Parent),
		NameID:    vfs.NameID(data.NameID),
		Directory: data.Directory,
	}, nil
}
