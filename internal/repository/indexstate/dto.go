package indexstate

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/lexibase/lexibase/internal/domain"
)

// stateToFields converts index state into a flat map[string]string for HSET.
// The vector is stored as raw little-endian float32 bytes so the FT index can
// read it in place.
func stateToFields(s domain.DocumentIndexState) map[string]string {
	return map[string]string{
		"tenant":     s.TenantID,
		"doc":        s.DocumentID,
		"vector":     vectorToBytes(s.Vector),
		"indexed_at": s.IndexedAt.UTC().Format(time.RFC3339Nano),
		"source_job": s.SourceJobID,
	}
}

// stateFromFields converts a flat hash map back into index state.
func stateFromFields(m map[string]string) (domain.DocumentIndexState, error) {
	s := domain.DocumentIndexState{
		TenantID:    m["tenant"],
		DocumentID:  m["doc"],
		Vector:      bytesToVector(m["vector"]),
		SourceJobID: m["source_job"],
	}
	if v := m["indexed_at"]; v != "" {
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return domain.DocumentIndexState{}, fmt.Errorf("parse indexed_at: %w", err)
		}
		s.IndexedAt = t
	}
	return s, nil
}

// vectorToBytes serializes []float32 to a binary string (4 bytes per float, little-endian).
func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}

// bytesToVector deserializes a binary string back to []float32.
func bytesToVector(s string) []float32 {
	b := []byte(s)
	if len(b)%4 != 0 {
		return nil
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}
