package distmatrix

import (
	"bytes"
	"context"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rferrors "ruleforge/internal/errors"
	"ruleforge/internal/paths"
)

var words = []string{"password", "password1", "Password", "dragon", "monkey", "ab\xff"}

func TestBuild(t *testing.T) {
	m, err := Build(context.Background(), words, 100)
	require.NoError(t, err)
	require.Equal(t, len(words), m.Size())
	require.NoError(t, m.Validate())

	assert.Equal(t, 1, m.At(0, 1))
	assert.Equal(t, 1, m.At(0, 2))
	assert.Equal(t, 2, m.At(1, 2))
	assert.Equal(t, 0, m.At(3, 3))

	for i := 0; i < m.Size(); i++ {
		for j := 0; j < m.Size(); j++ {
			assert.Equal(t, m.At(i, j), m.At(j, i))
		}
	}
}

func TestBuildBounded(t *testing.T) {
	m, err := Build(context.Background(), []string{"a", "abcdefgh"}, 3)
	require.NoError(t, err)
	assert.Equal(t, 4, m.Cap())
	assert.Equal(t, 4, m.At(0, 1))
}

func TestBuildCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Build(ctx, words, 100)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSubAndSlice(t *testing.T) {
	m, err := Build(context.Background(), words, 100)
	require.NoError(t, err)

	sub := m.Sub([]int{2, 0})
	assert.Equal(t, 2, sub.Size())
	assert.Equal(t, m.At(2, 0), sub.At(0, 1))

	sl, err := m.Slice(3, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, sl.Size())
	assert.Equal(t, m.At(3, 4), sl.At(0, 1))
	assert.Equal(t, m.At(4, 5), sl.At(1, 2))
	require.NoError(t, sl.Validate())

	_, err = m.Slice(4, 3)
	assert.True(t, rferrors.Is(err, rferrors.MatrixMismatch))
}

func TestValidate(t *testing.T) {
	m := New(2, 10)
	m.cells[1] = 3
	assert.True(t, rferrors.Is(m.Validate(), rferrors.MatrixMismatch))

	m = New(2, 10)
	m.cells[0] = 1
	assert.Error(t, m.Validate())
}

func TestNPYRoundTrip(t *testing.T) {
	m, err := Build(context.Background(), words, 100)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteNPY(&buf, m))
	assert.Equal(t, 0, (bytes.IndexByte(buf.Bytes(), '\n')+1)%npyAlign, "header must be aligned")
	assert.Contains(t, buf.String(), "'descr': '|u1'")

	back, err := ReadNPY(&buf)
	require.NoError(t, err)
	assert.Equal(t, m.cells, back.cells)

	big := New(2, math.MaxUint16)
	big.Set(0, 1, 300)
	buf.Reset()
	require.NoError(t, WriteNPY(&buf, big))
	assert.Contains(t, buf.String(), "'descr': '<u2'")
	back, err = ReadNPY(&buf)
	require.NoError(t, err)
	assert.Equal(t, 300, back.At(1, 0))
}

// numpyFile builds an .npy file the way NumPy writes one for np.save.
func numpyFile(t *testing.T, descr string, fortran bool, n int, cell func(i, j int) []byte) []byte {
	t.Helper()
	order := "False"
	if fortran {
		order = "True"
	}
	header := "{'descr': '" + descr + "', 'fortran_order': " + order + ", 'shape': (" +
		itoa(n) + ", " + itoa(n) + "), }"
	for (10+len(header)+1)%64 != 0 {
		header += " "
	}
	header += "\n"

	var buf bytes.Buffer
	buf.WriteString("\x93NUMPY\x01\x00")
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint16(len(header))))
	buf.WriteString(header)
	for a := 0; a < n; a++ {
		for b := 0; b < n; b++ {
			i, j := a, b
			if fortran {
				i, j = b, a
			}
			buf.Write(cell(i, j))
		}
	}
	return buf.Bytes()
}

func itoa(n int) string {
	return string(rune('0' + n))
}

func TestReadNPYDtypes(t *testing.T) {
	dist := [][]int{{0, 1, 5}, {1, 0, 2}, {5, 2, 0}}

	tests := []struct {
		descr string
		cell  func(v int) []byte
	}{
		{"|i1", func(v int) []byte { return []byte{byte(int8(v))} }},
		{"<i4", func(v int) []byte { return binary.LittleEndian.AppendUint32(nil, uint32(v)) }},
		{"<i8", func(v int) []byte { return binary.LittleEndian.AppendUint64(nil, uint64(v)) }},
		{"<f8", func(v int) []byte { return binary.LittleEndian.AppendUint64(nil, math.Float64bits(float64(v))) }},
		{"<f4", func(v int) []byte { return binary.LittleEndian.AppendUint32(nil, math.Float32bits(float32(v))) }},
	}

	for _, tt := range tests {
		for _, fortran := range []bool{false, true} {
			data := numpyFile(t, tt.descr, fortran, 3, func(i, j int) []byte { return tt.cell(dist[i][j]) })
			m, err := ReadNPY(bytes.NewReader(data))
			require.NoError(t, err, tt.descr)
			for i := range dist {
				for j := range dist[i] {
					assert.Equal(t, dist[i][j], m.At(i, j), "%s (%d,%d)", tt.descr, i, j)
				}
			}
		}
	}
}

func TestReadNPYRejects(t *testing.T) {
	_, err := ReadNPY(bytes.NewReader([]byte("not numpy at all")))
	assert.Error(t, err)

	neg := numpyFile(t, "|i1", false, 2, func(i, j int) []byte {
		if i != j {
			return []byte{0xff}
		}
		return []byte{0}
	})
	_, err = ReadNPY(bytes.NewReader(neg))
	assert.ErrorContains(t, err, "negative")

	odd := numpyFile(t, ">i4", false, 1, func(int, int) []byte { return make([]byte, 4) })
	_, err = ReadNPY(bytes.NewReader(odd))
	assert.ErrorContains(t, err, "unsupported npy dtype")
}

func TestSaveLoad(t *testing.T) {
	dir := t.TempDir()
	wl := filepath.Join(dir, "words.txt")
	m, err := Build(context.Background(), words, 100)
	require.NoError(t, err)

	for _, compressed := range []bool{false, true} {
		path := paths.MatrixPath(wl, compressed)
		require.NoError(t, Save(path, m, "abc123"))

		back, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, m.cells, back.cells)

		digest, err := StoredDigest(path)
		require.NoError(t, err)
		assert.Equal(t, "abc123", digest)

		_, err = os.Stat(path + ".tmp")
		assert.True(t, os.IsNotExist(err))
	}
}

func TestLoadFor(t *testing.T) {
	dir := t.TempDir()
	wl := filepath.Join(dir, "words.txt")

	_, _, err := LoadFor(wl, len(words), "")
	assert.True(t, rferrors.Is(err, rferrors.MatrixMissing))

	m, err := Build(context.Background(), words, 100)
	require.NoError(t, err)
	require.NoError(t, Save(paths.MatrixPath(wl, false), m, "d1"))

	got, path, err := LoadFor(wl, len(words), "d1")
	require.NoError(t, err)
	assert.Equal(t, paths.MatrixPath(wl, false), path)
	assert.Equal(t, len(words), got.Size())

	_, _, err = LoadFor(wl, len(words)+1, "d1")
	assert.True(t, rferrors.Is(err, rferrors.MatrixMismatch))

	_, _, err = LoadFor(wl, len(words), "d2")
	assert.True(t, rferrors.Is(err, rferrors.MatrixMismatch))

	_, _, err = LoadFor(wl, len(words), "")
	assert.NoError(t, err)
}

func BenchmarkBuild(b *testing.B) {
	list := make([]string, 0, 200)
	for i := 0; i < 200; i++ {
		list = append(list, "password"+string(rune('a'+i%26))+string(rune('0'+i%10)))
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Build(context.Background(), list, 100); err != nil {
			b.Fatal(err)
		}
	}
}
