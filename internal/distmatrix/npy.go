package distmatrix

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var npyMagic = []byte("\x93NUMPY")

// npyAlign is the header alignment numpy uses since 1.x for version 1.0 files.
const npyAlign = 64

var (
	descrRe   = regexp.MustCompile(`'descr'\s*:\s*'([^']+)'`)
	fortranRe = regexp.MustCompile(`'fortran_order'\s*:\s*(True|False)`)
	shapeRe   = regexp.MustCompile(`'shape'\s*:\s*\(\s*(\d+)\s*,\s*(\d+)\s*,?\s*\)`)
)

// WriteNPY encodes m as a NumPy .npy (version 1.0) array. Cells are written
// as |u1 when every distance fits a byte and as <u2 otherwise.
func WriteNPY(w io.Writer, m *Matrix) error {
	descr := "<u2"
	if m.Max() <= math.MaxUint8 {
		descr = "|u1"
	}

	header := fmt.Sprintf("{'descr': '%s', 'fortran_order': False, 'shape': (%d, %d), }", descr, m.n, m.n)
	pad := npyAlign - (len(npyMagic)+4+len(header)+1)%npyAlign
	if pad == npyAlign {
		pad = 0
	}
	header += strings.Repeat(" ", pad) + "\n"

	bw := bufio.NewWriter(w)
	bw.Write(npyMagic)
	bw.Write([]byte{1, 0})
	var hlen [2]byte
	binary.LittleEndian.PutUint16(hlen[:], uint16(len(header)))
	bw.Write(hlen[:])
	bw.WriteString(header)

	if descr == "|u1" {
		for _, c := range m.cells {
			bw.WriteByte(byte(c))
		}
	} else {
		var buf [2]byte
		for _, c := range m.cells {
			binary.LittleEndian.PutUint16(buf[:], c)
			bw.Write(buf[:])
		}
	}
	return bw.Flush()
}

// ReadNPY decodes a square two-dimensional .npy array of integer or float
// distances. Versions 1.0 to 3.0 and both memory orders are accepted.
func ReadNPY(r io.Reader) (*Matrix, error) {
	br := bufio.NewReader(r)

	prelude := make([]byte, len(npyMagic)+2)
	if _, err := io.ReadFull(br, prelude); err != nil {
		return nil, fmt.Errorf("read npy magic: %w", err)
	}
	if !bytes.Equal(prelude[:len(npyMagic)], npyMagic) {
		return nil, fmt.Errorf("not an npy file")
	}

	var hlen int
	switch major := prelude[len(npyMagic)]; major {
	case 1:
		var b [2]byte
		if _, err := io.ReadFull(br, b[:]); err != nil {
			return nil, fmt.Errorf("read npy header length: %w", err)
		}
		hlen = int(binary.LittleEndian.Uint16(b[:]))
	case 2, 3:
		var b [4]byte
		if _, err := io.ReadFull(br, b[:]); err != nil {
			return nil, fmt.Errorf("read npy header length: %w", err)
		}
		hlen = int(binary.LittleEndian.Uint32(b[:]))
	default:
		return nil, fmt.Errorf("unsupported npy version %d", major)
	}

	header := make([]byte, hlen)
	if _, err := io.ReadFull(br, header); err != nil {
		return nil, fmt.Errorf("read npy header: %w", err)
	}
	descr, fortran, rows, cols, err := parseHeader(string(header))
	if err != nil {
		return nil, err
	}
	if rows != cols {
		return nil, fmt.Errorf("distance matrix is %d×%d, want square", rows, cols)
	}

	dec, size, err := decoderFor(descr)
	if err != nil {
		return nil, err
	}

	m := New(rows, math.MaxUint16)
	buf := make([]byte, size)
	for k := 0; k < rows*cols; k++ {
		if _, err := io.ReadFull(br, buf); err != nil {
			return nil, fmt.Errorf("read npy data: %w", err)
		}
		v, err := dec(buf)
		if err != nil {
			return nil, err
		}
		i, j := k/cols, k%cols
		if fortran {
			i, j = j, i
		}
		m.cells[i*rows+j] = uint16(v)
	}
	return m, nil
}

func parseHeader(h string) (descr string, fortran bool, rows, cols int, err error) {
	dm := descrRe.FindStringSubmatch(h)
	fm := fortranRe.FindStringSubmatch(h)
	sm := shapeRe.FindStringSubmatch(h)
	if dm == nil || fm == nil || sm == nil {
		return "", false, 0, 0, fmt.Errorf("npy header %q is not a 2-d array", strings.TrimSpace(h))
	}
	rows, _ = strconv.Atoi(sm[1])
	cols, _ = strconv.Atoi(sm[2])
	return dm[1], fm[1] == "True", rows, cols, nil
}

type cellDecoder func([]byte) (int, error)

func decoderFor(descr string) (cellDecoder, int, error) {
	le := binary.LittleEndian
	switch descr {
	case "|u1", "<u1", "u1":
		return func(b []byte) (int, error) { return int(b[0]), nil }, 1, nil
	case "|i1", "<i1", "i1":
		return nonNegative(func(b []byte) int64 { return int64(int8(b[0])) }), 1, nil
	case "<u2":
		return func(b []byte) (int, error) { return int(le.Uint16(b)), nil }, 2, nil
	case "<i2":
		return nonNegative(func(b []byte) int64 { return int64(int16(le.Uint16(b))) }), 2, nil
	case "<u4":
		return nonNegative(func(b []byte) int64 { return int64(le.Uint32(b)) }), 4, nil
	case "<i4":
		return nonNegative(func(b []byte) int64 { return int64(int32(le.Uint32(b))) }), 4, nil
	case "<i8":
		return nonNegative(func(b []byte) int64 { return int64(le.Uint64(b)) }), 8, nil
	case "<f4":
		return finite(func(b []byte) float64 { return float64(math.Float32frombits(le.Uint32(b))) }), 4, nil
	case "<f8":
		return finite(func(b []byte) float64 { return math.Float64frombits(le.Uint64(b)) }), 8, nil
	default:
		return nil, 0, fmt.Errorf("unsupported npy dtype %q", descr)
	}
}

func nonNegative(f func([]byte) int64) cellDecoder {
	return func(b []byte) (int, error) {
		v := f(b)
		if v < 0 {
			return 0, fmt.Errorf("negative distance %d", v)
		}
		if v > math.MaxUint16 {
			v = math.MaxUint16
		}
		return int(v), nil
	}
}

func finite(f func([]byte) float64) cellDecoder {
	return func(b []byte) (int, error) {
		v := f(b)
		if math.IsNaN(v) || v < 0 {
			return 0, fmt.Errorf("invalid distance %v", v)
		}
		if math.IsInf(v, 1) || v > math.MaxUint16 {
			return math.MaxUint16, nil
		}
		return int(math.Round(v)), nil
	}
}
