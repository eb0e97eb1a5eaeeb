package cache_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/artpar/modelkit/core/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFingerprint(t *testing.T) {
	base := cache.Fingerprint([]byte("model: Post\nfields:\n  title: string\n"), "schema")
	assert.Len(t, base, 64)

	tests := []struct {
		name string
		text string
		same bool
	}{
		{"identical", "model: Post\nfields:\n  title: string\n", true},
		{"comments and spacing", "# posts\nmodel:   Post\n\nfields:\n    title: string   # short\n", true},
		{"quoting", "model: \"Post\"\nfields:\n  'title': \"string\"\n", true},
		{"flow style", "{model: Post, fields: {title: string}}", true},
		{"json", `{"model": "Post", "fields": {"title": "string"}}`, true},
		{"anchor on a value", "model: &m Post\nfields:\n  title: string\n", true},
		{"different value", "model: Post\nfields:\n  title: text\n", false},
		{"key order", "fields:\n  title: string\nmodel: Post\n", false},
		{"extra key", "model: Post\nfields:\n  title: string\nversion: \"1\"\n", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cache.Fingerprint([]byte(tt.text), "schema")
			if tt.same {
				assert.Equal(t, base, got)
			} else {
				assert.NotEqual(t, base, got)
			}
		})
	}
}

func TestFingerprint_ScalarTypesMatter(t *testing.T) {
	quoted := cache.Fingerprint([]byte("model: Post\nversion: \"1\"\n"), "schema")
	plain := cache.Fingerprint([]byte("model: Post\nversion: 1\n"), "schema")
	assert.NotEqual(t, quoted, plain)
}

func TestFingerprint_Scope(t *testing.T) {
	data := []byte("model: Post\n")
	assert.NotEqual(t, cache.Fingerprint(data, "schema"), cache.Fingerprint(data, "report"))
}

func TestFingerprint_UndecodableText(t *testing.T) {
	a := cache.Fingerprint([]byte("model: [unclosed"), "schema")
	b := cache.Fingerprint([]byte("model: [unclosed "), "schema")
	assert.Len(t, a, 64)
	assert.NotEqual(t, a, b, "raw bytes are hashed when the text does not decode")
}

func TestFileFingerprint(t *testing.T) {
	path := filepath.Join(t.TempDir(), "post.yaml")
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	writeFile(t, path, "model: Post\n", t0)

	first, err := cache.FileFingerprint(path)
	require.NoError(t, err)
	again, err := cache.FileFingerprint(path)
	require.NoError(t, err)
	assert.Equal(t, first, again)

	require.NoError(t, os.Chtimes(path, t0.Add(time.Second), t0.Add(time.Second)))
	touched, err := cache.FileFingerprint(path)
	require.NoError(t, err)
	assert.NotEqual(t, first, touched)

	writeFile(t, path, "model: Posts\n", t0.Add(time.Second))
	resized, err := cache.FileFingerprint(path)
	require.NoError(t, err)
	assert.NotEqual(t, touched, resized)

	other := filepath.Join(filepath.Dir(path), "copy.yaml")
	writeFile(t, other, "model: Posts\n", t0.Add(time.Second))
	moved, err := cache.FileFingerprint(other)
	require.NoError(t, err)
	assert.NotEqual(t, resized, moved)

	_, err = cache.FileFingerprint(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
