package aggregate

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGranularity(t *testing.T) {
	for in, want := range map[string]Granularity{"": Combo, "combo": Combo, "ATOMIC": Atomic, "both": Both} {
		g, err := ParseGranularity(in)
		require.NoError(t, err)
		assert.Equal(t, want, g)
	}
	_, err := ParseGranularity("single")
	assert.Error(t, err)
}

func TestAddSequence(t *testing.T) {
	seqs := [][]string{{"c", "$1"}, {"$1"}, {":"}, {"c", "$1"}}

	tests := []struct {
		g    Granularity
		want []Entry
	}{
		{Combo, []Entry{{"c $1", 2}, {"$1", 1}, {":", 1}}},
		{Atomic, []Entry{{"$1", 3}, {"c", 2}, {":", 1}}},
		{Both, []Entry{{"$1", 3}, {"c", 2}, {"c $1", 2}, {":", 1}}},
	}

	for _, tt := range tests {
		t.Run(string(tt.g), func(t *testing.T) {
			c := NewCounter()
			for _, s := range seqs {
				c.AddSequence(s, tt.g)
			}
			assert.Equal(t, tt.want, c.Top(0))
		})
	}
}

func TestTop(t *testing.T) {
	c := NewCounter()
	for _, r := range []string{"b", "a", "c", "a", "b", "d"} {
		c.Add(r)
	}
	assert.Equal(t, 4, c.Len())
	assert.Equal(t, 6, c.Total())

	assert.Equal(t, []Entry{{"b", 2}, {"a", 2}}, c.Top(2))
	assert.Equal(t, []Entry{{"b", 2}, {"a", 2}, {"c", 1}, {"d", 1}}, c.Top(0))
	assert.Len(t, c.Top(10), 4)

	c.AddSequence(nil, Combo)
	assert.Equal(t, 6, c.Total())
}

func TestWriteRules(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteRules(&buf, []Entry{{"$\xff", 3}, {"c $1", 1}}))
	assert.Equal(t, "$\xff\nc $1\n", buf.String())
}
