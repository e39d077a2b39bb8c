package shareplay

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduleRespectsSlotLimit(t *testing.T) {
	s, _, _ := newTestState("a", "b", "c", "d")

	jobs := s.Schedule()
	require.Len(t, jobs, MaxActiveDownloads)
	assert.Equal(t, "item-1", jobs[0].ItemID)
	assert.Equal(t, "a", jobs[0].Ref)
	assert.Equal(t, "item-2", jobs[1].ItemID)
	assert.Equal(t, ItemGrabbing, s.Items()[0].Status)
	assert.Equal(t, ItemPending, s.Items()[2].Status)

	assert.Empty(t, s.Schedule(), "no free slot")

	require.True(t, s.ApplyMetadata("item-1", "Song A", 180, ""))
	assert.Empty(t, s.Schedule(), "downloading still holds the slot")

	require.True(t, s.CompleteDownload("item-1", "", "/tmp/a.opus", "", 0))
	jobs = s.Schedule()
	require.Len(t, jobs, 1)
	assert.Equal(t, "item-3", jobs[0].ItemID)
	assert.LessOrEqual(t, s.ActiveDownloads(), MaxActiveDownloads)
}

func TestAcquisitionLifecycle(t *testing.T) {
	s, _, _ := newTestState("a")
	s.Schedule()

	assert.True(t, s.ApplyMetadata("item-1", "", 0, "/tmp/item-1/item-1_thumb.jpg"))
	item := s.Items()[0]
	assert.Equal(t, ItemDownloading, item.Status)
	assert.Equal(t, UnknownTitle, item.Title)
	assert.Equal(t, int64(0), item.Duration)

	_, ok := s.Location("item-1")
	assert.False(t, ok, "not ready yet")
	thumb, ok := s.ThumbnailLocation("item-1")
	assert.True(t, ok)
	assert.Equal(t, "/tmp/item-1/item-1_thumb.jpg", thumb)

	assert.True(t, s.CompleteDownload("item-1", "Final", "/tmp/item-1/item-1.opus", "", 200))
	assert.Equal(t, ItemReady, item.Status)
	assert.Equal(t, "Final", item.Title)
	assert.Equal(t, int64(200), item.Duration)

	path, ok := s.Location("item-1")
	assert.True(t, ok)
	assert.Equal(t, "/tmp/item-1/item-1.opus", path)

	assert.False(t, s.CompleteDownload("item-1", "again", "/x", "", 0), "ready is terminal")
	assert.False(t, s.FailItem("item-1", "late"), "ready is terminal")
}

func TestFailItem(t *testing.T) {
	s, _, _ := newTestState("a")
	s.Schedule()

	assert.True(t, s.FailItem("item-1", "video unavailable"))
	item := s.Items()[0]
	assert.Equal(t, ItemError, item.Status)
	assert.Equal(t, ErrorTitle, item.Title)
	assert.Equal(t, "video unavailable", item.Error)
	assert.Equal(t, 0, s.ActiveDownloads())

	assert.False(t, s.FailItem("missing", "x"))
	assert.False(t, s.ApplyMetadata("missing", "x", 1, ""))
}

func TestExpandPlaylistReplacesPlaceholder(t *testing.T) {
	s, _, _ := newTestState("https://www.youtube.com/playlist?list=PL1")
	s.Schedule()

	entries := make([]Entry, 5)
	for i := range entries {
		entries[i] = Entry{Ref: "https://youtu.be/" + string(rune('a'+i)), Title: "Track", Duration: 100}
	}

	assert.True(t, s.ExpandPlaylist("item-1", entries))
	require.Equal(t, 5, s.Len())
	for _, it := range s.Items() {
		assert.NotEqual(t, "item-1", it.ID)
		assert.Equal(t, ItemPending, it.Status)
		assert.Equal(t, int64(100), it.Duration)
	}
	assert.Equal(t, 0, currentIndex(t, s))

	assert.False(t, s.ExpandPlaylist("item-1", entries), "placeholder already gone")
	assert.False(t, s.ExpandPlaylist("item-2", nil), "no entries")
}

func TestExpandPlaylistShiftsCurrent(t *testing.T) {
	s, _, _ := newTestState("a", "playlist", "b")
	s.SetTrack(2)

	require.True(t, s.ExpandPlaylist("item-2", []Entry{{Ref: "x"}, {Ref: "y"}, {Ref: "z"}}))
	assert.Equal(t, 5, s.Len())
	assert.Equal(t, 4, currentIndex(t, s))
	assert.Equal(t, "b", s.Current().Ref)
	assert.Equal(t, PlaceholderTitle, s.Items()[1].Title)
}

func TestDirRemoverScansByPrefix(t *testing.T) {
	base := t.TempDir()
	itemDir := ItemDir(base, "abc")
	require.NoError(t, os.MkdirAll(itemDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(itemDir, "abc.opus"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(base, "abc.webm"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(base, "other.opus"), []byte("x"), 0644))
	stored := filepath.Join(t.TempDir(), "stored.jpg")
	require.NoError(t, os.WriteFile(stored, []byte("x"), 0644))

	NewDirRemover(base).RemoveItemFiles("abc", stored, filepath.Join(base, "missing"))

	assert.NoFileExists(t, stored)
	assert.NoDirExists(t, itemDir)
	assert.NoFileExists(t, filepath.Join(base, "abc.webm"))
	assert.FileExists(t, filepath.Join(base, "other.opus"))
}

func TestPrepareWorkDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "temp")
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "leftover"), []byte("x"), 0644))

	require.NoError(t, PrepareWorkDir(dir))
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
