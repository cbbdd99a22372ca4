package collect

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name string, size int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o644))
	return path
}

func TestRescanFiltersByExtension(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.mp3", 10)
	writeFile(t, dir, "b.txt", 20)
	writeFile(t, dir, "c.MP3", 30)

	c := New()
	c.AddSource(dir, "mp3", "ctx")
	c.Rescan()

	assert.Equal(t, 2, c.Len())
	for _, e := range c.Entries() {
		assert.Equal(t, "ctx", e.Context)
	}
}

func TestRescanKeepsSurvivorsAndDropsStale(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "keep.txt", 5)
	stale := writeFile(t, dir, "stale.txt", 5)

	c := New()
	c.AddSource(dir, ".txt", nil)
	c.Rescan()
	require.Equal(t, 2, c.Len())

	keptEntries := c.Entries()
	var keepID uint64
	for _, e := range keptEntries {
		if filepath.Base(e.Path) == "keep.txt" {
			keepID = e.ID
		}
	}
	require.NotZero(t, keepID)

	require.NoError(t, os.Remove(stale))
	c.Rescan()

	assert.Equal(t, 1, c.Len())
	survivor, ok := c.Get(keepID)
	require.True(t, ok)
	assert.Equal(t, "keep.txt", filepath.Base(survivor.Path))
}

func TestRescanNewEntriesJoinAtHead(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "first.txt", 1)

	c := New()
	c.AddSource(dir, "txt", nil)
	c.Rescan()

	writeFile(t, dir, "second.txt", 1)
	c.Rescan()

	entries := c.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "second.txt", filepath.Base(entries[0].Path))
}

func TestFindGlobCaseInsensitive(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "Song.MP3", 1)
	writeFile(t, dir, "notes.txt", 1)

	c := New()
	c.AddSource(dir, "", nil)
	c.Rescan()

	matches := c.Find("*.mp3")
	require.Len(t, matches, 1)
	assert.Equal(t, "Song.MP3", filepath.Base(matches[0].Path))
}

func TestIDAssignmentIsMonotonic(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "one.txt", 1)

	c := New()
	c.AddSource(dir, "txt", nil)
	c.Rescan()
	first := c.Entries()[0].ID

	writeFile(t, dir, "two.txt", 1)
	c.Rescan()

	var secondID uint64
	for _, e := range c.Entries() {
		if filepath.Base(e.Path) == "two.txt" {
			secondID = e.ID
		}
	}
	assert.Greater(t, secondID, first)
}
