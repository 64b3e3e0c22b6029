package persist

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/hyperjump/kioku/internal/models"
)

// snapshotVersion identifies the on-disk snapshot layout.
const snapshotVersion = 1

// recordMeta is the per-record metadata file (metadata/<id>.json).
type recordMeta struct {
	ID               string          `json:"id"`
	Content          string          `json:"content"`
	CreatedAt        time.Time       `json:"createdAt"`
	Metadata         models.Metadata `json:"metadata,omitempty"`
	VectorDimensions int             `json:"vectorDimensions"`
}

// snapshotIndex is the authoritative index file (indices/vector_index.json).
// Only ids listed here are restored; stray per-record files are ignored.
type snapshotIndex struct {
	TotalRecords int       `json:"totalRecords"`
	SavedAt      time.Time `json:"savedAt"`
	Records      []string  `json:"records"`
	// ConsciousnessRecords counts records carrying the context_aware flag.
	ConsciousnessRecords int `json:"consciousnessRecords"`
	Version              int `json:"version"`
}

func writeVectorFile(path string, vector []float32) error {
	buf := make([]byte, 4*len(vector))
	for i, v := range vector {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return os.WriteFile(path, buf, 0644)
}

func readVectorFile(path string, dimensions int) ([]float32, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(data) != 4*dimensions {
		return nil, fmt.Errorf("vector file has %d bytes, want %d", len(data), 4*dimensions)
	}
	vec := make([]float32, dimensions)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vec, nil
}

func writeMetaFile(path string, meta recordMeta) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func readMetaFile(path string) (recordMeta, error) {
	var meta recordMeta
	data, err := os.ReadFile(path)
	if err != nil {
		return meta, err
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return meta, err
	}
	if meta.ID == "" || meta.VectorDimensions <= 0 {
		return meta, fmt.Errorf("metadata file missing id or dimensions")
	}
	return meta, nil
}

// writeIndexFile writes the index atomically (temp file then rename) so a
// crash mid-write never leaves a partially-written authoritative index.
func writeIndexFile(path string, idx snapshotIndex) error {
	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func readIndexFile(path string) (snapshotIndex, error) {
	var idx snapshotIndex
	data, err := os.ReadFile(path)
	if err != nil {
		return idx, err
	}
	if err := json.Unmarshal(data, &idx); err != nil {
		return idx, err
	}
	return idx, nil
}
