// Package distmatrix builds, slices and persists the pairwise edit-distance
// matrices that drive clustering.
//
// Matrices are square, symmetric and have a zero diagonal. Distances above
// the build bound are stored as Cap (bound+1) so clustering still sees them
// as far apart without paying for the exact value.
package distmatrix

import (
	"context"
	"fmt"
	"math"

	"ruleforge/internal/editdist"
	rferrors "ruleforge/internal/errors"
)

// Matrix is a dense n×n distance matrix in row-major order.
type Matrix struct {
	n     int
	sat   int
	cells []uint16
}

// New returns an n×n zero matrix whose saturated value is capValue.
func New(n, capValue int) *Matrix {
	if capValue <= 0 || capValue > math.MaxUint16 {
		capValue = math.MaxUint16
	}
	return &Matrix{n: n, sat: capValue, cells: make([]uint16, n*n)}
}

// Size returns the number of rows.
func (m *Matrix) Size() int { return m.n }

// Cap returns the value stored for pairs beyond the build bound.
func (m *Matrix) Cap() int { return m.sat }

// At returns the distance between items i and j.
func (m *Matrix) At(i, j int) int { return int(m.cells[i*m.n+j]) }

// Set stores d for (i, j) and (j, i), saturating at Cap.
func (m *Matrix) Set(i, j, d int) {
	if d < 0 || d > m.sat {
		d = m.sat
	}
	m.cells[i*m.n+j] = uint16(d)
	m.cells[j*m.n+i] = uint16(d)
}

// Row returns row i. The slice aliases the matrix.
func (m *Matrix) Row(i int) []uint16 {
	return m.cells[i*m.n : (i+1)*m.n]
}

// Max returns the largest stored distance.
func (m *Matrix) Max() int {
	hi := 0
	for _, c := range m.cells {
		if int(c) > hi {
			hi = int(c)
		}
	}
	return hi
}

// Build computes the distance matrix of words with distances bounded by
// maxDistance (negative means unbounded). Each unordered pair is computed
// once. The context is checked before every row.
func Build(ctx context.Context, words []string, maxDistance int) (*Matrix, error) {
	capValue := maxDistance + 1
	if maxDistance < 0 {
		capValue = math.MaxUint16
	}
	m := New(len(words), capValue)

	for i := range words {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for j := i + 1; j < len(words); j++ {
			d := editdist.Strings(words[i], words[j], maxDistance)
			if d == editdist.TooLarge {
				d = m.sat
			}
			m.Set(i, j, d)
		}
	}
	return m, nil
}

// Sub returns the matrix restricted to indices, in the given order.
func (m *Matrix) Sub(indices []int) *Matrix {
	out := New(len(indices), m.sat)
	for a, i := range indices {
		for b, j := range indices {
			out.cells[a*out.n+b] = m.cells[i*m.n+j]
		}
	}
	return out
}

// Slice returns the block of n consecutive items starting at offset. It is
// used to cut a whole-wordlist matrix down to one chunk.
func (m *Matrix) Slice(offset, n int) (*Matrix, error) {
	if offset < 0 || n < 0 || offset+n > m.n {
		return nil, rferrors.Newf(rferrors.MatrixMismatch,
			"chunk [%d, %d) outside %d×%d matrix", offset, offset+n, m.n, m.n)
	}
	out := New(n, m.sat)
	for a := 0; a < n; a++ {
		copy(out.Row(a), m.cells[(offset+a)*m.n+offset:(offset+a)*m.n+offset+n])
	}
	return out, nil
}

// Validate checks symmetry and the zero diagonal.
func (m *Matrix) Validate() error {
	for i := 0; i < m.n; i++ {
		if m.At(i, i) != 0 {
			return rferrors.Newf(rferrors.MatrixMismatch, "diagonal entry %d is %d", i, m.At(i, i))
		}
		for j := i + 1; j < m.n; j++ {
			if m.At(i, j) != m.At(j, i) {
				return rferrors.New(rferrors.MatrixMismatch,
					fmt.Sprintf("matrix not symmetric at (%d, %d)", i, j), nil)
			}
		}
	}
	return nil
}
