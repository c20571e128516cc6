package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"tutorbot-backend/models"
)

// fakeObjectStore is an in-memory ObjectStore with failure injection and
// call counting.
type fakeObjectStore struct {
	mu         sync.Mutex
	objects    map[string][]byte
	getCalls   int32
	getDelay   time.Duration
	putErr     error
	getStarted chan struct{} // closed when the first Get begins
	getBlock   chan struct{} // if set, Get waits here or on ctx
	startOnce  sync.Once
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{objects: make(map[string][]byte)}
}

func (f *fakeObjectStore) Put(ctx context.Context, key string, r io.Reader, size int64) error {
	if f.putErr != nil {
		return f.putErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.objects[key] = data
	f.mu.Unlock()
	return nil
}

func (f *fakeObjectStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	atomic.AddInt32(&f.getCalls, 1)
	if f.getStarted != nil {
		f.startOnce.Do(func() { close(f.getStarted) })
	}
	if f.getBlock != nil {
		select {
		case <-f.getBlock:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.getDelay > 0 {
		time.Sleep(f.getDelay)
	}
	f.mu.Lock()
	data, ok := f.objects[key]
	f.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("no such key: %s", key)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeObjectStore) List(ctx context.Context) ([]ObjectInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var infos []ObjectInfo
	for key, data := range f.objects {
		infos = append(infos, ObjectInfo{Key: key, Size: int64(len(data)), LastModified: time.Unix(0, 0)})
	}
	return infos, nil
}

func (f *fakeObjectStore) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	delete(f.objects, key)
	f.mu.Unlock()
	return nil
}

func (f *fakeObjectStore) Presign(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return "https://example.com/" + key + "?signed=1", nil
}

func (f *fakeObjectStore) Healthy(ctx context.Context) error { return nil }

type fakeMetadata struct {
	mu    sync.Mutex
	names map[string]string
}

func newFakeMetadata() *fakeMetadata {
	return &fakeMetadata{names: make(map[string]string)}
}

func (f *fakeMetadata) GetAll(ctx context.Context) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]string, len(f.names))
	for k, v := range f.names {
		out[k] = v
	}
	return out, nil
}

func (f *fakeMetadata) Set(ctx context.Context, filename, displayName string) error {
	f.mu.Lock()
	f.names[filename] = displayName
	f.mu.Unlock()
	return nil
}

func (f *fakeMetadata) Delete(ctx context.Context, filename string) error {
	f.mu.Lock()
	delete(f.names, filename)
	f.mu.Unlock()
	return nil
}

func newTestCoordinator(t *testing.T, remote ObjectStore) (*Coordinator, *Cache) {
	t.Helper()
	cache, err := NewCache(t.TempDir())
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}
	return NewCoordinator(cache, remote, newFakeMetadata()), cache
}

func TestUploadWritesBothTiers(t *testing.T) {
	remote := newFakeObjectStore()
	coord, cache := newTestCoordinator(t, remote)

	doc, err := coord.Upload(context.Background(), "lecture1.pdf", strings.NewReader("pdf bytes"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if doc.Tier != models.TierBoth {
		t.Errorf("expected tier both, got %s", doc.Tier)
	}
	if !cache.Exists("lecture1.pdf") {
		t.Error("expected cache entry after upload")
	}
	if _, ok := remote.objects["lecture1.pdf"]; !ok {
		t.Error("expected remote object after upload")
	}
}

func TestUploadRemoteFailureIsFatal(t *testing.T) {
	remote := newFakeObjectStore()
	remote.putErr = errors.New("bucket unreachable")
	coord, cache := newTestCoordinator(t, remote)

	_, err := coord.Upload(context.Background(), "lecture1.pdf", strings.NewReader("pdf bytes"))
	if !errors.Is(err, models.ErrStorageWrite) {
		t.Fatalf("expected ErrStorageWrite, got %v", err)
	}
	// Local-only success is not a valid end state in remote mode.
	if cache.Exists("lecture1.pdf") {
		t.Error("cache entry should be rolled back after remote failure")
	}
}

func TestUploadRejectsPathTraversal(t *testing.T) {
	coord, _ := newTestCoordinator(t, nil)
	for _, name := range []string{"../evil.pdf", "a/b.pdf", "", "."} {
		if _, err := coord.Upload(context.Background(), name, strings.NewReader("x")); err == nil {
			t.Errorf("expected error for filename %q", name)
		}
	}
}

func TestFetchLocalSingleFlight(t *testing.T) {
	remote := newFakeObjectStore()
	remote.objects["big.pdf"] = []byte(strings.Repeat("x", 4096))
	remote.getDelay = 50 * time.Millisecond
	coord, _ := newTestCoordinator(t, remote)

	const callers = 10
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = coord.FetchLocal(context.Background(), "big.pdf")
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("caller %d: %v", i, err)
		}
	}
	if n := atomic.LoadInt32(&remote.getCalls); n != 1 {
		t.Errorf("expected exactly 1 download, got %d", n)
	}
}

func TestFetchLocalSurvivesStarterCancel(t *testing.T) {
	remote := newFakeObjectStore()
	remote.objects["big.pdf"] = []byte("shared download")
	remote.getStarted = make(chan struct{})
	remote.getBlock = make(chan struct{})
	coord, cache := newTestCoordinator(t, remote)

	starterCtx, cancel := context.WithCancel(context.Background())
	starterErr := make(chan error, 1)
	go func() {
		_, err := coord.FetchLocal(starterCtx, "big.pdf")
		starterErr <- err
	}()

	// Let the download begin, join a second caller to the in-flight
	// fill, then cancel the caller that started it.
	<-remote.getStarted
	followerErr := make(chan error, 1)
	go func() {
		_, err := coord.FetchLocal(context.Background(), "big.pdf")
		followerErr <- err
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()
	close(remote.getBlock)

	if err := <-followerErr; err != nil {
		t.Fatalf("follower FetchLocal: %v", err)
	}
	if err := <-starterErr; err != nil {
		t.Fatalf("starter FetchLocal: %v", err)
	}
	if !cache.Exists("big.pdf") {
		t.Error("expected cache fill to complete despite cancellation")
	}
	if n := atomic.LoadInt32(&remote.getCalls); n != 1 {
		t.Errorf("expected exactly 1 download, got %d", n)
	}
}

func TestFetchLocalCacheHitSkipsRemote(t *testing.T) {
	remote := newFakeObjectStore()
	coord, cache := newTestCoordinator(t, remote)
	if _, err := cache.Write("cached.pdf", strings.NewReader("already here")); err != nil {
		t.Fatalf("seed cache: %v", err)
	}

	path, err := coord.FetchLocal(context.Background(), "cached.pdf")
	if err != nil {
		t.Fatalf("FetchLocal: %v", err)
	}
	if path != cache.Path("cached.pdf") {
		t.Errorf("unexpected path %s", path)
	}
	if atomic.LoadInt32(&remote.getCalls) != 0 {
		t.Error("remote download should not run on cache hit")
	}
}

func TestFetchLocalUnknownFileLocalMode(t *testing.T) {
	coord, _ := newTestCoordinator(t, nil)
	_, err := coord.FetchLocal(context.Background(), "missing.pdf")
	if !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	remote := newFakeObjectStore()
	coord, cache := newTestCoordinator(t, remote)

	if _, err := coord.Upload(context.Background(), "lecture1.pdf", strings.NewReader("bytes")); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if err := coord.Delete(context.Background(), "lecture1.pdf"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if cache.Exists("lecture1.pdf") {
		t.Error("cache entry should be gone")
	}
	if _, ok := remote.objects["lecture1.pdf"]; ok {
		t.Error("remote object should be gone")
	}

	// Second delete of a missing file succeeds.
	if err := coord.Delete(context.Background(), "lecture1.pdf"); err != nil {
		t.Fatalf("repeat Delete: %v", err)
	}

	docs, err := coord.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	for _, d := range docs {
		if d.Filename == "lecture1.pdf" {
			t.Error("deleted file still listed")
		}
	}
}

func TestPresignLocalModeUnsupported(t *testing.T) {
	coord, _ := newTestCoordinator(t, nil)
	_, err := coord.Presign(context.Background(), "lecture1.pdf", time.Minute)
	if !errors.Is(err, models.ErrUnsupportedOperation) {
		t.Fatalf("expected ErrUnsupportedOperation, got %v", err)
	}
}

func TestPresignRemoteMode(t *testing.T) {
	remote := newFakeObjectStore()
	coord, _ := newTestCoordinator(t, remote)
	url, err := coord.Presign(context.Background(), "lecture1.pdf", time.Minute)
	if err != nil {
		t.Fatalf("Presign: %v", err)
	}
	if url == "" {
		t.Error("expected non-empty URL")
	}
}

func TestListSortedWithDisplayNames(t *testing.T) {
	remote := newFakeObjectStore()
	remote.objects["b.pdf"] = []byte("b")
	remote.objects["a.pdf"] = []byte("a")
	coord, _ := newTestCoordinator(t, remote)

	if err := coord.SetDisplayName(context.Background(), "a.pdf", "Week 1 Slides"); err != nil {
		t.Fatalf("SetDisplayName: %v", err)
	}

	docs, err := coord.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(docs))
	}
	if docs[0].Filename != "a.pdf" || docs[1].Filename != "b.pdf" {
		t.Errorf("listing not sorted: %v, %v", docs[0].Filename, docs[1].Filename)
	}
	if docs[0].DisplayName != "Week 1 Slides" {
		t.Errorf("expected custom display name, got %q", docs[0].DisplayName)
	}
	if docs[1].DisplayName != "b.pdf" {
		t.Errorf("expected default display name, got %q", docs[1].DisplayName)
	}
}

func TestSetDisplayNameUnknownFile(t *testing.T) {
	coord, _ := newTestCoordinator(t, newFakeObjectStore())
	err := coord.SetDisplayName(context.Background(), "ghost.pdf", "Ghost")
	if !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
