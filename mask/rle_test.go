package mask

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode_KnownVectors(t *testing.T) {
	tests := []struct {
		name   string
		rows   [][]uint8
		counts []uint32
		text   string
	}{
		{
			// 按列: (0,0)=0 (1,0)=1 (0,1)=1 (1,1)=0
			name:   "diagonal",
			rows:   [][]uint8{{0, 1}, {1, 0}},
			counts: []uint32{1, 2, 1},
			text:   "121",
		},
		{
			name:   "foreground first",
			rows:   [][]uint8{{1, 1}, {1, 0}},
			counts: []uint32{0, 3, 1},
			text:   "031",
		},
		{
			name:   "all zero",
			rows:   [][]uint8{{0, 0, 0}, {0, 0, 0}},
			counts: []uint32{6},
			text:   "6",
		},
		{
			name:   "all one",
			rows:   [][]uint8{{1, 1}, {1, 1}},
			counts: []uint32{0, 4},
			text:   "04",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := FromRows(tt.rows)
			require.NoError(t, err)

			enc, err := Encode(m)
			require.NoError(t, err)
			assert.Equal(t, tt.counts, enc.Counts)

			raw, err := base64.StdEncoding.DecodeString(enc.Text)
			require.NoError(t, err)
			assert.Equal(t, tt.text, string(raw))
		})
	}
}

func TestCompress_DeltaAndSign(t *testing.T) {
	// 第 4 个游程 5 编码为 5-3=2
	assert.Equal(t, "0322", compress([]uint32{0, 3, 2, 5}))
	// 差值为负数时带符号位
	assert.Equal(t, "051M", compress([]uint32{0, 5, 1, 2}))
	// 多字符编码
	assert.Equal(t, "T3", compress([]uint32{100}))
	assert.Equal(t, "`0", compress([]uint32{16}))

	for _, counts := range [][]uint32{{0, 3, 2, 5}, {0, 5, 1, 2}, {100}, {16}, {7, 1000, 3, 70000, 1, 2}} {
		got, err := decompress(compress(counts))
		require.NoError(t, err)
		require.Len(t, got, len(counts))
		for i := range counts {
			assert.Equal(t, int64(counts[i]), got[i])
		}
	}
}

func TestRoundTrip_RandomGrids(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 200; i++ {
		h := rng.Intn(40) + 1
		w := rng.Intn(40) + 1
		m := New(h, w)
		density := rng.Float64()
		for j := range m.Data {
			if rng.Float64() < density {
				m.Data[j] = 1
			}
		}

		enc, err := Encode(m)
		require.NoError(t, err)

		var sum uint32
		for _, c := range enc.Counts {
			sum += c
		}
		require.Equal(t, uint32(h*w), sum)

		got, err := Decode(&Encoded{Height: enc.Height, Width: enc.Width, Text: enc.Text})
		require.NoError(t, err)
		require.True(t, m.Equal(got), "grid %d (%dx%d) did not survive round trip", i, h, w)
	}
}

func TestRoundTrip_Uniform(t *testing.T) {
	for _, v := range []uint8{0, 1} {
		m := New(100, 100)
		for i := range m.Data {
			m.Data[i] = v
		}
		enc, err := Encode(m)
		require.NoError(t, err)

		got, err := DecodeString(enc.Text, 100, 100)
		require.NoError(t, err)
		assert.True(t, m.Equal(got))
	}
}

func TestRoundTrip_EmptyGrid(t *testing.T) {
	enc, err := Encode(New(0, 0))
	require.NoError(t, err)
	assert.Equal(t, []uint32{0}, enc.Counts)

	got, err := Decode(enc)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Height)
}

func TestDecode_FromCountsOnly(t *testing.T) {
	got, err := Decode(&Encoded{Height: 2, Width: 2, Counts: []uint32{1, 2, 1}})
	require.NoError(t, err)
	assert.Equal(t, []uint8{0, 1, 1, 0}, got.Data)
}

func TestEncode_RejectsNonBinary(t *testing.T) {
	m := New(2, 2)
	m.Data[3] = 7

	_, err := Encode(m)
	var encErr *EncodeError
	require.True(t, errors.As(err, &encErr))
	assert.Equal(t, 1, encErr.Row)
	assert.Equal(t, 1, encErr.Col)
}

func TestEncode_RejectsRaggedData(t *testing.T) {
	_, err := Encode(&Mask{Height: 2, Width: 2, Data: []uint8{0, 1, 0}})
	var encErr *EncodeError
	require.True(t, errors.As(err, &encErr))

	_, err = FromRows([][]uint8{{0, 1}, {1}})
	require.True(t, errors.As(err, &encErr))
}

func TestFromRows_Normalizes255(t *testing.T) {
	m, err := FromRows([][]uint8{{0, 255}, {1, 0}})
	require.NoError(t, err)
	assert.Equal(t, []uint8{0, 1, 1, 0}, m.Data)

	_, err = FromRows([][]uint8{{0, 128}})
	require.Error(t, err)
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name string
		enc  *Encoded
	}{
		{"nil", nil},
		{"bad base64", &Encoded{Height: 2, Width: 2, Text: "!!!"}},
		{"bad character", &Encoded{Height: 2, Width: 2, Text: base64.StdEncoding.EncodeToString([]byte("1 1"))}},
		{"truncated", &Encoded{Height: 2, Width: 2, Text: base64.StdEncoding.EncodeToString([]byte("T"))}},
		{"sum mismatch", &Encoded{Height: 2, Width: 2, Text: base64.StdEncoding.EncodeToString([]byte("14"))}},
		{"negative run", &Encoded{Height: 2, Width: 2, Text: base64.StdEncoding.EncodeToString([]byte("05M"))}},
		{"negative size", &Encoded{Height: -1, Width: 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.enc)
			var decErr *DecodeError
			require.True(t, errors.As(err, &decErr), "got %v", err)
		})
	}
}

func TestEncoded_JSON(t *testing.T) {
	m, err := FromRows([][]uint8{{0, 1}, {1, 0}})
	require.NoError(t, err)
	enc, err := Encode(m)
	require.NoError(t, err)

	data, err := json.Marshal(enc)
	require.NoError(t, err)
	assert.JSONEq(t, `{"size":[2,2],"counts":"MTIx"}`, string(data))

	var back Encoded
	require.NoError(t, json.Unmarshal(data, &back))
	got, err := Decode(&back)
	require.NoError(t, err)
	assert.True(t, m.Equal(got))
}
