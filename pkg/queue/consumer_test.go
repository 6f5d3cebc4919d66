package queue

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cheeseagent/pkg/cheese"
	"cheeseagent/pkg/state"
	"cheeseagent/pkg/storage"
)

// recordingUploader remembers every call and fails the paths it is told
// to fail.
type recordingUploader struct {
	calls []uploadCall
	fail  map[string]bool
}

type uploadCall struct {
	path string
	tags map[string]string
}

func (u *recordingUploader) Upload(_ context.Context, localPath string, tags map[string]string) error {
	u.calls = append(u.calls, uploadCall{path: localPath, tags: tags})
	if u.fail[localPath] {
		return errors.New("upload rejected")
	}
	return nil
}

type fixture struct {
	store  *state.Store
	images *storage.ImageStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	images, err := storage.NewImageStore(filepath.Join(dir, "images"))
	require.NoError(t, err)
	return &fixture{
		store:  state.NewStore(filepath.Join(dir, "state.json")),
		images: images,
	}
}

// enqueue stores an image file, records the item, and enqueues it.
func (f *fixture) enqueue(t *testing.T, id string, category cheese.Category) cheese.PendingUploadEntry {
	t.Helper()
	path, err := f.images.Save(category, id, []byte("image "+id))
	require.NoError(t, err)

	now := time.Now().UTC()
	require.NoError(t, f.store.AddScrapedItem(cheese.ScrapedItem{
		ID:           id,
		LocalPath:    path,
		Category:     category,
		SourceQuery:  category.SearchQuery(),
		DiscoveredAt: now,
	}))
	entry := cheese.PendingUploadEntry{
		ItemID:     id,
		LocalPath:  path,
		Category:   category,
		Tags:       cheese.DefaultTags(category, now),
		EnqueuedAt: now,
	}
	require.NoError(t, f.store.EnqueueUpload(entry))
	return entry
}

func TestDrainUploadsAndRemoves(t *testing.T) {
	f := newFixture(t)
	a := f.enqueue(t, "aaaa000000000000", cheese.Blue)
	b := f.enqueue(t, "bbbb000000000000", cheese.Hard)

	uploader := &recordingUploader{}
	summary, err := NewConsumer(f.store, f.images, uploader).Drain(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Uploaded)
	assert.Equal(t, 0, summary.Failed)
	require.Len(t, uploader.calls, 2)
	assert.Equal(t, a.LocalPath, uploader.calls[0].path)
	assert.Equal(t, b.LocalPath, uploader.calls[1].path)

	// Entry removal and file deletion are one unit.
	current, err := f.store.Load()
	require.NoError(t, err)
	assert.Empty(t, current.PendingUploads)
	assert.NoFileExists(t, a.LocalPath)
	assert.NoFileExists(t, b.LocalPath)

	// The scraped record itself survives the upload.
	assert.Len(t, current.ScrapedImages, 2)
}

func TestDrainLeavesFailedEntries(t *testing.T) {
	f := newFixture(t)
	ok := f.enqueue(t, "aaaa000000000000", cheese.Fresh)
	bad := f.enqueue(t, "bbbb000000000000", cheese.Bloomy)

	uploader := &recordingUploader{fail: map[string]bool{bad.LocalPath: true}}
	summary, err := NewConsumer(f.store, f.images, uploader).Drain(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Uploaded)
	assert.Equal(t, 1, summary.Failed)

	current, err := f.store.Load()
	require.NoError(t, err)
	require.Len(t, current.PendingUploads, 1)
	assert.Equal(t, bad.ItemID, current.PendingUploads[0].ItemID)
	assert.NoFileExists(t, ok.LocalPath)
	assert.FileExists(t, bad.LocalPath)
}

func TestDrainHonorsHandEditedTags(t *testing.T) {
	f := newFixture(t)
	f.enqueue(t, "aaaa000000000000", cheese.WashedRind)

	// Edit tags directly in the state file, as a curator would.
	data, err := os.ReadFile(f.store.Path())
	require.NoError(t, err)
	var doc state.File
	require.NoError(t, json.Unmarshal(data, &doc))
	doc.PendingUploads[0].Tags["license"] = "public-domain"
	edited, err := json.Marshal(&doc)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(f.store.Path(), edited, 0644))

	uploader := &recordingUploader{}
	_, err = NewConsumer(f.store, f.images, uploader).Drain(context.Background())
	require.NoError(t, err)

	require.Len(t, uploader.calls, 1)
	assert.Equal(t, "public-domain", uploader.calls[0].tags["license"])
}

// uploaderFunc adapts a function to the Uploader interface.
type uploaderFunc func(ctx context.Context, localPath string, tags map[string]string) error

func (f uploaderFunc) Upload(ctx context.Context, localPath string, tags map[string]string) error {
	return f(ctx, localPath, tags)
}

// editTags rewrites one pending entry's tag directly in the state file.
func editTags(t *testing.T, store *state.Store, itemID, key, value string) {
	t.Helper()
	data, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	var doc state.File
	require.NoError(t, json.Unmarshal(data, &doc))
	for i := range doc.PendingUploads {
		if doc.PendingUploads[i].ItemID == itemID {
			doc.PendingUploads[i].Tags[key] = value
		}
	}
	edited, err := json.Marshal(&doc)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(store.Path(), edited, 0644))
}

func TestDrainReReadsTagsMidDrain(t *testing.T) {
	f := newFixture(t)
	first := f.enqueue(t, "aaaa000000000000", cheese.Blue)
	second := f.enqueue(t, "bbbb000000000000", cheese.Hard)

	// While the first entry uploads, a curator edits the second entry's
	// tags. The second upload must carry the edit.
	rec := &recordingUploader{}
	uploader := uploaderFunc(func(ctx context.Context, localPath string, tags map[string]string) error {
		if localPath == first.LocalPath {
			editTags(t, f.store, second.ItemID, "license", "public-domain")
		}
		return rec.Upload(ctx, localPath, tags)
	})

	summary, err := NewConsumer(f.store, f.images, uploader).Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Uploaded)

	require.Len(t, rec.calls, 2)
	assert.Equal(t, second.LocalPath, rec.calls[1].path)
	assert.Equal(t, "public-domain", rec.calls[1].tags["license"])
}

func TestDrainSkipsEntriesRemovedMidDrain(t *testing.T) {
	f := newFixture(t)
	first := f.enqueue(t, "aaaa000000000000", cheese.Fresh)
	second := f.enqueue(t, "bbbb000000000000", cheese.Bloomy)

	rec := &recordingUploader{}
	uploader := uploaderFunc(func(ctx context.Context, localPath string, tags map[string]string) error {
		if localPath == first.LocalPath {
			_, err := f.store.DequeueUpload(second.ItemID)
			require.NoError(t, err)
		}
		return rec.Upload(ctx, localPath, tags)
	})

	summary, err := NewConsumer(f.store, f.images, uploader).Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Uploaded)
	assert.Equal(t, 0, summary.Failed)

	// The vanished entry was never uploaded.
	require.Len(t, rec.calls, 1)
	assert.Equal(t, first.LocalPath, rec.calls[0].path)
}

func TestDrainStopsOnCancelledContext(t *testing.T) {
	f := newFixture(t)
	f.enqueue(t, "aaaa000000000000", cheese.Blue)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	uploader := &recordingUploader{}
	_, err := NewConsumer(f.store, f.images, uploader).Drain(ctx)
	require.Error(t, err)
	assert.Empty(t, uploader.calls)
}

func TestNewExecUploader(t *testing.T) {
	_, err := NewExecUploader(nil)
	require.Error(t, err)

	u, err := NewExecUploader([]string{"upload-tool", "--dest", "gallery"})
	require.NoError(t, err)
	assert.Equal(t, []string{"upload-tool", "--dest", "gallery"}, u.Command)
}

func TestExecUploaderRunsCommand(t *testing.T) {
	tags := map[string]string{"cheese_type": "blue", "license": "creative-commons"}

	t.Run("Success", func(t *testing.T) {
		u, err := NewExecUploader([]string{"true"})
		require.NoError(t, err)
		assert.NoError(t, u.Upload(context.Background(), "/tmp/x.jpg", tags))
	})

	t.Run("Failure", func(t *testing.T) {
		u, err := NewExecUploader([]string{"false"})
		require.NoError(t, err)
		assert.Error(t, u.Upload(context.Background(), "/tmp/x.jpg", tags))
	})
}
