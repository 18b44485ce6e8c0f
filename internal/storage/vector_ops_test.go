package storage

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializeVector(t *testing.T) {
	vector := []float32{0, 1.5, -2.25, float32(math.Pi), math.MaxFloat32}

	blob := SerializeVector(vector)
	assert.Len(t, blob, len(vector)*4)

	got, err := DeserializeVector(blob)
	require.NoError(t, err)
	assert.Equal(t, vector, got)

	// Little-endian layout: 1.5 is 0x3FC00000
	assert.Equal(t, []byte{0x00, 0x00, 0xC0, 0x3F}, blob[4:8])
}

func TestDeserializeVector_Invalid(t *testing.T) {
	_, err := DeserializeVector(nil)
	assert.ErrorIs(t, err, ErrCorruptVector)

	_, err = DeserializeVector([]byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrCorruptVector)
}

func TestDecodeStoredVector(t *testing.T) {
	strPtr := func(s string) *string { return &s }

	tests := []struct {
		name      string
		blob      []byte
		json      *string
		dimension int
		want      []float32
		wantErr   bool
	}{
		{name: "binary preferred", blob: serializeVector([]float32{1, 2}), json: strPtr("[9, 9]"), dimension: 2, want: []float32{1, 2}},
		{name: "json when blob missing", json: strPtr("[0.5, -0.5]"), dimension: 2, want: []float32{0.5, -0.5}},
		{name: "json when blob truncated", blob: []byte{1, 2, 3}, json: strPtr("[3]"), dimension: 1, want: []float32{3}},
		{name: "json when blob has wrong dimension", blob: serializeVector([]float32{1}), json: strPtr("[1, 2]"), dimension: 2, want: []float32{1, 2}},
		{name: "unknown dimension accepts blob", blob: serializeVector([]float32{4, 5, 6}), want: []float32{4, 5, 6}},
		{name: "nothing readable", blob: []byte{1}, wantErr: true},
		{name: "bad json", json: strPtr("{"), wantErr: true},
		{name: "json dimension mismatch", json: strPtr("[1, 2, 3]"), dimension: 2, wantErr: true},
		{name: "empty json array", json: strPtr("[]"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeStoredVector(tt.blob, tt.json, tt.dimension)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrCorruptVector)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLikePattern(t *testing.T) {
	assert.Equal(t, "%coffee%", likePattern("Coffee"))
	assert.Equal(t, `%100\%%`, likePattern("100%"))
	assert.Equal(t, `%a\_b%`, likePattern("a_b"))
	assert.Equal(t, `%c:\\dir%`, likePattern(`C:\dir`))
}

func TestJSONPath(t *testing.T) {
	path, ok := jsonPath("scene_id")
	assert.True(t, ok)
	assert.Equal(t, "$.scene_id", path)

	for _, bad := range []string{"", "a.b", "x' OR 1=1", "$.name", "name space"} {
		_, ok := jsonPath(bad)
		assert.False(t, ok, bad)
	}
}
