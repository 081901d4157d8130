// Package rules implements the hashcat rule vocabulary used by the synthesis
// engine: a closed set of rule kinds, their typed parameters, their transforms
// and the priority-ordered catalog.
package rules

import "fmt"

// Kind enumerates the supported rule families.
type Kind uint8

const (
	Noop           Kind = iota // :
	Lower                      // l
	Upper                      // u
	Capitalize                 // c
	ToggleAll                  // t
	ToggleAt                   // TN
	ToggleAtAlt                // tN, materialised as TN
	DuplicateFirst             // zN
	DuplicateLast              // ZN
	Append                     // $X
	Prepend                    // ^X
	DeleteFirst                // [
	DeleteLast                 // ]
	DeleteAt                   // DN
	InsertAt                   // iNX
	OverwriteAt                // oNX
	RotateRight                // }
	RotateLeft                 // {
	Reverse                    // r
	Substitute                 // sXY

	numKinds
)

// Shape describes which parameters a rule kind carries.
type Shape uint8

const (
	ShapeNone         Shape = iota // no parameters
	ShapePosition                  // N
	ShapeChar                      // X
	ShapePositionChar              // N, X
	ShapeCharPair                  // X, Y
)

type kindInfo struct {
	name  string
	shape Shape
}

var kindTable = [numKinds]kindInfo{
	Noop:           {":", ShapeNone},
	Lower:          {"l", ShapeNone},
	Upper:          {"u", ShapeNone},
	Capitalize:     {"c", ShapeNone},
	ToggleAll:      {"t", ShapeNone},
	ToggleAt:       {"TN", ShapePosition},
	ToggleAtAlt:    {"tN", ShapePosition},
	DuplicateFirst: {"zN", ShapePosition},
	DuplicateLast:  {"ZN", ShapePosition},
	Append:         {"$X", ShapeChar},
	Prepend:        {"^X", ShapeChar},
	DeleteFirst:    {"[", ShapeNone},
	DeleteLast:     {"]", ShapeNone},
	DeleteAt:       {"DN", ShapePosition},
	InsertAt:       {"iNX", ShapePositionChar},
	OverwriteAt:    {"oNX", ShapePositionChar},
	RotateRight:    {"}", ShapeNone},
	RotateLeft:     {"{", ShapeNone},
	Reverse:        {"r", ShapeNone},
	Substitute:     {"sXY", ShapeCharPair},
}

var kindByName = func() map[string]Kind {
	m := make(map[string]Kind, numKinds)
	for k := Kind(0); k < numKinds; k++ {
		m[kindTable[k].name] = k
	}
	return m
}()

// Name returns the catalog name of the kind, e.g. "iNX".
func (k Kind) Name() string {
	if k >= numKinds {
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
	return kindTable[k].name
}

func (k Kind) String() string { return k.Name() }

// Shape returns the parameter shape of the kind.
func (k Kind) Shape() Shape {
	if k >= numKinds {
		return ShapeNone
	}
	return kindTable[k].shape
}

// Arity is the number of parameters beyond the subject word.
func (k Kind) Arity() int {
	switch k.Shape() {
	case ShapePosition, ShapeChar:
		return 1
	case ShapePositionChar, ShapeCharPair:
		return 2
	default:
		return 0
	}
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool { return k < numKinds }

// KindByName looks up a catalog name such as "$X" or "DN".
func KindByName(name string) (Kind, bool) {
	k, ok := kindByName[name]
	return k, ok
}
