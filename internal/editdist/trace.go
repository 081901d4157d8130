package editdist

import "fmt"

// OpKind identifies a single alignment step.
type OpKind uint8

const (
	// Replace substitutes a[Src] with b[Dst].
	Replace OpKind = iota + 1
	// Insert puts b[Dst] in front of a[Src].
	Insert
	// Delete removes a[Src]; Dst is the matching position in b.
	Delete
)

func (k OpKind) String() string {
	switch k {
	case Replace:
		return "replace"
	case Insert:
		return "insert"
	case Delete:
		return "delete"
	default:
		return fmt.Sprintf("OpKind(%d)", uint8(k))
	}
}

// Op is one edit operation. Src indexes the source string, Dst the target.
type Op struct {
	Kind OpKind
	Src  int
	Dst  int
}

func (o Op) String() string {
	return fmt.Sprintf("%s(%d,%d)", o.Kind, o.Src, o.Dst)
}

// Trace is an ordered list of operations turning one string into another.
type Trace []Op

// Compute returns the edit trace from a to b in left-to-right order.
//
// The alignment is unbounded and canonical: walking back from the end of the
// table, a diagonal step (match, then replace) is preferred over a deletion,
// and a deletion over an insertion. len(Compute(a, b)) equals Distance(a, b, -1).
func Compute(a, b []rune) Trace {
	n, m := len(a), len(b)
	d := make([][]int, n+1)
	for i := range d {
		d[i] = make([]int, m+1)
		d[i][0] = i
	}
	for j := 0; j <= m; j++ {
		d[0][j] = j
	}
	for i := 1; i <= n; i++ {
		for j := 1; j <= m; j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			d[i][j] = min(d[i-1][j]+1, d[i][j-1]+1, d[i-1][j-1]+cost)
		}
	}

	trace := make(Trace, 0, d[n][m])
	i, j := n, m
	for i > 0 || j > 0 {
		switch {
		case i > 0 && j > 0 && a[i-1] == b[j-1] && d[i][j] == d[i-1][j-1]:
			i, j = i-1, j-1
		case i > 0 && j > 0 && d[i][j] == d[i-1][j-1]+1:
			trace = append(trace, Op{Kind: Replace, Src: i - 1, Dst: j - 1})
			i, j = i-1, j-1
		case i > 0 && d[i][j] == d[i-1][j]+1:
			trace = append(trace, Op{Kind: Delete, Src: i - 1, Dst: j})
			i--
		default:
			trace = append(trace, Op{Kind: Insert, Src: i, Dst: j - 1})
			j--
		}
	}

	for l, r := 0, len(trace)-1; l < r; l, r = l+1, r-1 {
		trace[l], trace[r] = trace[r], trace[l]
	}
	return trace
}
