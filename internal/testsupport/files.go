package testsupport

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// WriteFile fills the target path with the requested number of bytes using a
// simple repeating pattern. A size <= 0 writes a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(strings.Repeat("B", int(size))), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// WriteMetadata writes a two-sample QIIME 2 metadata TSV with the given
// columns after sample-id.
func WriteMetadata(t testing.TB, path string, columns ...string) {
	t.Helper()

	header := append([]string{"sample-id"}, columns...)
	types := append([]string{"#q2:types"}, repeat("categorical", len(columns))...)
	rows := []string{
		strings.Join(header, "\t"),
		strings.Join(types, "\t"),
		strings.Join(append([]string{"L1S8"}, repeat("a", len(columns))...), "\t"),
		strings.Join(append([]string{"L1S57"}, repeat("b", len(columns))...), "\t"),
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(strings.Join(rows, "\n")+"\n"), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func repeat(value string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = value
	}
	return out
}
