package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRun_Fixture(t *testing.T) {
	var out bytes.Buffer
	code := run(context.Background(), &out, filepath.Join("..", "..", "data", "mock", "wilayah.csv"))

	assert.Equal(t, 0, code, out.String())
	assert.Contains(t, out.String(), "All validations passed.")
	assert.Contains(t, out.String(), "(22 total)")
	// Tirto has no villages in the fixture; that is advisory only.
	assert.Contains(t, out.String(), "WARN")
	assert.Contains(t, out.String(), "Tirto")
}

func TestRun_InconsistentDataset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.csv")
	assert.NoError(t, os.WriteFile(path, []byte("11,Aceh\n12.01,Kabupaten Tanpa Provinsi\n"), 0o600))

	var out bytes.Buffer
	code := run(context.Background(), &out, path)

	assert.Equal(t, 1, code)
	assert.Contains(t, out.String(), "index build failed at 12.01")
}

func TestRun_MissingFile(t *testing.T) {
	var out bytes.Buffer
	code := run(context.Background(), &out, filepath.Join(t.TempDir(), "absent.csv"))

	assert.Equal(t, 1, code)
	assert.Contains(t, out.String(), "FATAL: load")
}
