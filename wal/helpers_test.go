package wal

import (
	"os"
	"testing"
)

func truncateFile(t *testing.T, path string, size int64) {
	t.Helper()

	if err := os.Truncate(path, size); err != nil {
		t.Fatalf("truncate: %v", err)
	}
}
