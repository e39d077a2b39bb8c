package download

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"StuffChat/core/media"
	"StuffChat/core/shareplay"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResolver struct {
	mu          sync.Mutex
	metadata    *media.Metadata
	metadataErr error
	entries     []media.PlaylistEntry
	playlistErr error
	downloadErr error
	targets     []string
}

func (f *fakeResolver) Metadata(ctx context.Context, target string) (*media.Metadata, error) {
	f.mu.Lock()
	f.targets = append(f.targets, target)
	f.mu.Unlock()
	if f.metadataErr != nil {
		return nil, f.metadataErr
	}
	md := *f.metadata
	return &md, nil
}

func (f *fakeResolver) Playlist(ctx context.Context, target string) ([]media.PlaylistEntry, error) {
	return f.entries, f.playlistErr
}

func (f *fakeResolver) Download(ctx context.Context, target, dir, itemID string) (string, error) {
	if f.downloadErr != nil {
		return "", f.downloadErr
	}
	return filepath.Join(dir, itemID+".opus"), nil
}

type fakeThumbnailer struct{ err error }

func (f fakeThumbnailer) Make(ctx context.Context, url, dir, itemID string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return filepath.Join(dir, itemID+media.ThumbnailSuffix), nil
}

type fakeProber struct{ secs float64 }

func (f fakeProber) Duration(ctx context.Context, file string) (float64, error) {
	return f.secs, nil
}

type recordingReporter struct {
	mu        sync.Mutex
	metadata  []MetadataResult
	playlists []PlaylistResult
	downloads []DownloadResult
}

func (r *recordingReporter) ReportMetadata(res MetadataResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metadata = append(r.metadata, res)
}

func (r *recordingReporter) ReportPlaylist(res PlaylistResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.playlists = append(r.playlists, res)
}

func (r *recordingReporter) ReportDownload(res DownloadResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.downloads = append(r.downloads, res)
}

func runJobs(t *testing.T, resolver Resolver, jobs []shareplay.Acquisition, opts ...Option) (*recordingReporter, string) {
	t.Helper()
	dir := t.TempDir()
	o := New(Config{WorkDir: dir, Workers: 2}, resolver, opts...)
	rep := &recordingReporter{}
	o.Dispatch(rep, "room-1", jobs)
	o.Wait()
	return rep, dir
}

func TestSingleItemSuccess(t *testing.T) {
	resolver := &fakeResolver{metadata: &media.Metadata{Title: "Song", Duration: 200, Thumbnail: "https://img/x.jpg"}}
	rep, dir := runJobs(t, resolver,
		[]shareplay.Acquisition{{ItemID: "item-1", Ref: "some song"}},
		WithThumbnailer(fakeThumbnailer{}))

	assert.Equal(t, []string{"ytsearch1:some song"}, resolver.targets)

	require.Len(t, rep.metadata, 1)
	md := rep.metadata[0]
	assert.True(t, md.Success)
	assert.Equal(t, "room-1", md.RoomID)
	assert.Equal(t, "Song", md.Title)
	assert.Equal(t, int64(200), md.Duration)
	assert.Empty(t, md.Thumbnail)

	require.Len(t, rep.downloads, 1)
	dl := rep.downloads[0]
	assert.True(t, dl.Success)
	assert.Equal(t, filepath.Join(dir, "item-1", "item-1.opus"), dl.File)
	assert.Equal(t, filepath.Join(dir, "item-1", "item-1"+media.ThumbnailSuffix), dl.Thumbnail)
}

// orderThumbnailer 记录封面处理开始时已上报的元数据条数
type orderThumbnailer struct {
	rep  *recordingReporter
	seen chan int
}

func (o orderThumbnailer) Make(ctx context.Context, url, dir, itemID string) (string, error) {
	o.rep.mu.Lock()
	o.seen <- len(o.rep.metadata)
	o.rep.mu.Unlock()
	return filepath.Join(dir, itemID+media.ThumbnailSuffix), nil
}

func TestMetadataReportedBeforeThumbnail(t *testing.T) {
	resolver := &fakeResolver{metadata: &media.Metadata{Title: "Song", Thumbnail: "https://img/x.jpg"}}
	rep := &recordingReporter{}
	thumbs := orderThumbnailer{rep: rep, seen: make(chan int, 1)}
	o := New(Config{WorkDir: t.TempDir(), Workers: 1}, resolver, WithThumbnailer(thumbs))

	o.Dispatch(rep, "room-1", []shareplay.Acquisition{{ItemID: "item-1", Ref: "https://youtu.be/x"}})
	o.Wait()

	assert.Equal(t, 1, <-thumbs.seen)
	require.Len(t, rep.downloads, 1)
	assert.NotEmpty(t, rep.downloads[0].Thumbnail)
}

func TestMetadataFailure(t *testing.T) {
	resolver := &fakeResolver{metadataErr: errors.New("video unavailable")}
	rep, _ := runJobs(t, resolver, []shareplay.Acquisition{{ItemID: "item-1", Ref: "https://youtu.be/x"}})

	require.Len(t, rep.metadata, 1)
	assert.False(t, rep.metadata[0].Success)
	assert.Contains(t, rep.metadata[0].Error, "video unavailable")
	assert.Empty(t, rep.downloads)
}

func TestDownloadFailureKeepsMetadata(t *testing.T) {
	resolver := &fakeResolver{
		metadata:    &media.Metadata{Title: "Song", Duration: 10},
		downloadErr: errors.New("403"),
	}
	rep, _ := runJobs(t, resolver, []shareplay.Acquisition{{ItemID: "item-1", Ref: "https://youtu.be/x"}})

	require.Len(t, rep.downloads, 1)
	dl := rep.downloads[0]
	assert.False(t, dl.Success)
	assert.Equal(t, "Song", dl.Title)
	assert.Equal(t, "403", dl.Error)
}

func TestThumbnailFailureDegrades(t *testing.T) {
	resolver := &fakeResolver{metadata: &media.Metadata{Title: "Song", Thumbnail: "https://img/x.jpg"}}
	rep, _ := runJobs(t, resolver,
		[]shareplay.Acquisition{{ItemID: "item-1", Ref: "https://youtu.be/x"}},
		WithThumbnailer(fakeThumbnailer{err: errors.New("404")}))

	require.Len(t, rep.downloads, 1)
	assert.True(t, rep.downloads[0].Success)
	assert.Empty(t, rep.downloads[0].Thumbnail)
}

func TestMissingFieldsUseFallbacks(t *testing.T) {
	resolver := &fakeResolver{metadata: &media.Metadata{}}
	rep, _ := runJobs(t, resolver,
		[]shareplay.Acquisition{{ItemID: "item-1", Ref: "https://youtu.be/x"}},
		WithProber(fakeProber{secs: 99.6}))

	require.Len(t, rep.metadata, 1)
	assert.Equal(t, shareplay.UnknownTitle, rep.metadata[0].Title)
	assert.Equal(t, int64(0), rep.metadata[0].Duration)

	require.Len(t, rep.downloads, 1)
	assert.Equal(t, int64(100), rep.downloads[0].Duration)
}

func TestPlaylistExpansion(t *testing.T) {
	resolver := &fakeResolver{entries: []media.PlaylistEntry{
		{Ref: "https://youtu.be/a", Title: "A", Duration: 1},
		{Ref: "https://youtu.be/b", Title: "B", Duration: 2},
	}}
	rep, _ := runJobs(t, resolver, []shareplay.Acquisition{{ItemID: "ph", Ref: "https://www.youtube.com/playlist?list=PL"}})

	require.Len(t, rep.playlists, 1)
	pl := rep.playlists[0]
	assert.Equal(t, "ph", pl.PlaceholderID)
	assert.Equal(t, []shareplay.Entry{
		{Ref: "https://youtu.be/a", Title: "A", Duration: 1},
		{Ref: "https://youtu.be/b", Title: "B", Duration: 2},
	}, pl.Entries)
	assert.Empty(t, rep.metadata)
	assert.Empty(t, rep.downloads)
}

func TestPlaylistFailureFallsBackToSingleItem(t *testing.T) {
	resolver := &fakeResolver{
		playlistErr: errors.New("private playlist"),
		metadata:    &media.Metadata{Title: "Only"},
	}
	rep, _ := runJobs(t, resolver, []shareplay.Acquisition{{ItemID: "ph", Ref: "https://www.youtube.com/playlist?list=PL"}})

	assert.Empty(t, rep.playlists)
	require.Len(t, rep.downloads, 1)
	assert.True(t, rep.downloads[0].Success)
	assert.Equal(t, "Only", rep.downloads[0].Title)
}
