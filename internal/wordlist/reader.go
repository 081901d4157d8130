package wordlist

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// DefaultChunkSize bounds the number of passwords compared against each other.
const DefaultChunkSize = 10000

// Chunk is a contiguous slice of the input, in input order.
type Chunk struct {
	Index  int
	Offset int // position of Words[0] in the whole list
	Words  []string
}

// Read splits every line of r into whitespace-separated words.
// Bytes that are not valid UTF-8 are kept untouched.
func Read(r io.Reader) ([]string, error) {
	br := bufio.NewReaderSize(r, 64*1024)
	var words []string
	for {
		line, err := br.ReadString('\n')
		if len(line) > 0 {
			words = append(words, strings.Fields(line)...)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return words, nil
			}
			return nil, err
		}
	}
}

// ReadFile reads the wordlist at path.
func ReadFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	words, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return words, nil
}

// Chunks partitions words into consecutive chunks of at most size words.
// A size <= 0 yields a single chunk holding everything.
func Chunks(words []string, size int) []Chunk {
	if len(words) == 0 {
		return nil
	}
	if size <= 0 || size > len(words) {
		size = len(words)
	}

	chunks := make([]Chunk, 0, (len(words)+size-1)/size)
	for off := 0; off < len(words); off += size {
		end := off + size
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, Chunk{
			Index:  len(chunks),
			Offset: off,
			Words:  words[off:end],
		})
	}
	return chunks
}
