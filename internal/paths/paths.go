// Package paths derives the file locations RuleForge reads and writes.
package paths

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	// MatrixSuffix follows the wordlist stem of a persisted distance matrix.
	MatrixSuffix = "_distance_matrix.npy"
	// CompressedExt is appended to zstd-compressed matrices.
	CompressedExt = ".zst"
	// DigestExt is appended to a matrix path for its wordlist digest sidecar.
	DigestExt = ".b2"

	homeEnv    = "RULEFORGE_HOME"
	homeDir    = ".ruleforge"
	historyDB  = "history.db"
	configBase = ".ruleforge"
)

// Stem strips the final extension from path, keeping the directory.
func Stem(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path))
}

// MatrixPath returns the persisted matrix location for a wordlist:
// "<wordlist without extension>_distance_matrix.npy", plus ".zst" when
// compressed.
func MatrixPath(wordlist string, compressed bool) string {
	p := Stem(wordlist) + MatrixSuffix
	if compressed {
		p += CompressedExt
	}
	return p
}

// FindMatrix returns the first existing matrix for wordlist, preferring the
// uncompressed file.
func FindMatrix(wordlist string) (string, bool) {
	for _, compressed := range []bool{false, true} {
		p := MatrixPath(wordlist, compressed)
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, true
		}
	}
	return "", false
}

// DigestPath returns the sidecar path holding the wordlist digest of a matrix.
func DigestPath(matrix string) string {
	return matrix + DigestExt
}

// IsMatrixFile reports whether name looks like a persisted matrix.
func IsMatrixFile(name string) bool {
	name = strings.TrimSuffix(name, CompressedExt)
	return strings.HasSuffix(name, MatrixSuffix)
}

// Home returns the RuleForge state directory: $RULEFORGE_HOME when set,
// otherwise ~/.ruleforge.
func Home() (string, error) {
	if dir := os.Getenv(homeEnv); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, homeDir), nil
}

// DefaultHistoryPath returns the run history database location.
func DefaultHistoryPath() (string, error) {
	dir, err := Home()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, historyDB), nil
}

// ConfigBaseName is the config file name searched in the working directory,
// without extension.
func ConfigBaseName() string {
	return configBase
}

// EnsureParent creates the parent directory of path.
func EnsureParent(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
