package distmatrix

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"

	rferrors "ruleforge/internal/errors"
	"ruleforge/internal/paths"
)

// Save writes m to path as .npy, zstd-compressed when path ends in ".zst".
// A non-empty digest is stored next to it so later loads can detect a
// wordlist that changed since the matrix was built.
func Save(path string, m *Matrix, digest string) (err error) {
	if err := paths.EnsureParent(path); err != nil {
		return err
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = f.Close()
			_ = os.Remove(tmp)
		}
	}()

	var w io.Writer = f
	var enc *zstd.Encoder
	if strings.HasSuffix(path, paths.CompressedExt) {
		enc, err = zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
		if err != nil {
			return err
		}
		w = enc
	}
	if err = WriteNPY(w, m); err != nil {
		return err
	}
	if enc != nil {
		if err = enc.Close(); err != nil {
			return err
		}
	}
	if err = f.Close(); err != nil {
		return err
	}
	if err = os.Rename(tmp, path); err != nil {
		return err
	}

	if digest != "" {
		return os.WriteFile(paths.DigestPath(path), []byte(digest+"\n"), 0o644)
	}
	return nil
}

// Load reads a matrix written by Save or by NumPy.
func Load(path string) (*Matrix, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = bufio.NewReader(f)
	if strings.HasSuffix(path, paths.CompressedExt) {
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		defer dec.Close()
		r = dec
	}

	m, err := ReadNPY(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// StoredDigest returns the wordlist digest saved with a matrix, or "" when
// there is no sidecar.
func StoredDigest(path string) (string, error) {
	data, err := os.ReadFile(paths.DigestPath(path))
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// LoadFor loads the precomputed matrix belonging to wordlist and checks it
// covers exactly n passwords. When both the sidecar and digest are present
// they must match.
func LoadFor(wordlist string, n int, digest string) (*Matrix, string, error) {
	path, ok := paths.FindMatrix(wordlist)
	if !ok {
		return nil, "", rferrors.New(rferrors.MatrixMissing,
			fmt.Sprintf("no precomputed matrix %s", paths.MatrixPath(wordlist, false)), nil)
	}

	m, err := Load(path)
	if err != nil {
		return nil, path, rferrors.New(rferrors.InputError, "cannot read distance matrix", err)
	}
	if m.Size() != n {
		return nil, path, rferrors.Newf(rferrors.MatrixMismatch,
			"%s has %d rows, wordlist has %d passwords", path, m.Size(), n)
	}
	if err := m.Validate(); err != nil {
		return nil, path, err
	}

	if digest != "" {
		stored, err := StoredDigest(path)
		if err != nil {
			return nil, path, rferrors.New(rferrors.InputError, "cannot read matrix digest", err)
		}
		if stored != "" && stored != digest {
			return nil, path, rferrors.Newf(rferrors.MatrixMismatch,
				"%s was built from a different wordlist", path)
		}
	}
	return m, path, nil
}
