package storage

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
)

// ErrCorruptVector is returned when neither stored vector encoding can be decoded
var ErrCorruptVector = errors.New("corrupt stored vector")

// serializeVector converts a float32 slice to a byte blob (little-endian)
func serializeVector(vector []float32) []byte {
	blob := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(v))
	}
	return blob
}

// deserializeVector converts a byte blob back to a float32 slice
func deserializeVector(blob []byte) ([]float32, error) {
	if len(blob) == 0 || len(blob)%4 != 0 {
		return nil, fmt.Errorf("%w: blob length %d", ErrCorruptVector, len(blob))
	}
	vector := make([]float32, len(blob)/4)
	for i := range vector {
		bits := binary.LittleEndian.Uint32(blob[i*4:])
		vector[i] = math.Float32frombits(bits)
	}
	return vector, nil
}

// decodeStoredVector prefers the binary column and falls back to the JSON
// column when the blob is missing or unreadable
func decodeStoredVector(blob []byte, jsonText *string, dimension int) ([]float32, error) {
	if v, err := deserializeVector(blob); err == nil && (dimension == 0 || len(v) == dimension) {
		return v, nil
	}
	if jsonText == nil || strings.TrimSpace(*jsonText) == "" {
		return nil, ErrCorruptVector
	}
	var v []float32
	if err := json.Unmarshal([]byte(*jsonText), &v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptVector, err)
	}
	if len(v) == 0 || (dimension != 0 && len(v) != dimension) {
		return nil, fmt.Errorf("%w: json vector has %d values, want %d", ErrCorruptVector, len(v), dimension)
	}
	return v, nil
}

// SerializeVector is an exported helper for testing
func SerializeVector(vector []float32) []byte {
	return serializeVector(vector)
}

// DeserializeVector is an exported helper for testing
func DeserializeVector(blob []byte) ([]float32, error) {
	return deserializeVector(blob)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePattern builds a case-insensitive substring pattern with LIKE
// wildcards in term escaped
func likePattern(term string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(term)) + "%"
}

var metadataKeyPattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// jsonPath returns a json_extract path for a metadata key. Keys are
// restricted so they can be interpolated safely.
func jsonPath(key string) (string, bool) {
	if !metadataKeyPattern.MatchString(key) {
		return "", false
	}
	return "$." + key, true
}
