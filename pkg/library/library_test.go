package library

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shelfd/shelfd/pkg/cache"
	"github.com/shelfd/shelfd/pkg/models"
	"github.com/shelfd/shelfd/pkg/realtime"
	"github.com/shelfd/shelfd/pkg/store/metadata"
	"github.com/shelfd/shelfd/pkg/store/object"
)

// fakeObjects is an in-memory stand-in for the S3 adapter.
type fakeObjects struct {
	mu      sync.Mutex
	buckets map[string]bool
	blobs   map[string][]byte
	parts   map[string]map[int][]byte
	aborted []string
	nextMP  int
}

func newFakeObjects() *fakeObjects {
	return &fakeObjects{
		buckets: map[string]bool{},
		blobs:   map[string][]byte{},
		parts:   map[string]map[int][]byte{},
	}
}

func blobKey(bucket, key string) string { return bucket + "/" + key }

func (f *fakeObjects) CreateBucket(_ context.Context, name string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.buckets[name] {
		return false, nil
	}
	f.buckets[name] = true
	return true, nil
}

func (f *fakeObjects) UploadFile(_ context.Context, bucket, key string, data []byte, _ string, _ map[string]string) (*object.UploadResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blobs[blobKey(bucket, key)] = append([]byte(nil), data...)
	sum := sha256.Sum256(data)
	return &object.UploadResult{Key: key, Size: int64(len(data)), SHA256: hex.EncodeToString(sum[:]), ETag: "etag"}, nil
}

func (f *fakeObjects) StartMultipartUpload(_ context.Context, _, _, _ string, _ map[string]string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextMP++
	id := fmt.Sprintf("mp-%d", f.nextMP)
	f.parts[id] = map[int][]byte{}
	return id, nil
}

func (f *fakeObjects) UploadPart(_ context.Context, _, _, uploadID string, partNumber int, data []byte) (*object.Part, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	parts, ok := f.parts[uploadID]
	if !ok {
		return nil, errors.New("unknown multipart upload")
	}
	parts[partNumber] = append([]byte(nil), data...)
	return &object.Part{PartNumber: int32(partNumber), ETag: fmt.Sprintf("etag-%d", partNumber), Size: int64(len(data))}, nil
}

func (f *fakeObjects) CompleteMultipartUpload(_ context.Context, bucket, key, uploadID string, _ []object.Part) (*object.UploadResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	parts, ok := f.parts[uploadID]
	if !ok {
		return nil, errors.New("unknown multipart upload")
	}
	numbers := make([]int, 0, len(parts))
	for n := range parts {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)
	var blob []byte
	for _, n := range numbers {
		blob = append(blob, parts[n]...)
	}
	f.blobs[blobKey(bucket, key)] = blob
	delete(f.parts, uploadID)
	return &object.UploadResult{Key: key, Size: int64(len(blob)), ETag: "etag-final"}, nil
}

func (f *fakeObjects) AbortMultipartUpload(_ context.Context, _, _, uploadID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.parts, uploadID)
	f.aborted = append(f.aborted, uploadID)
	return nil
}

func (f *fakeObjects) CopyObject(_ context.Context, bucket, srcKey, dstKey string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	blob, ok := f.blobs[blobKey(bucket, srcKey)]
	if !ok {
		return errors.New("copy source missing")
	}
	f.blobs[blobKey(bucket, dstKey)] = append([]byte(nil), blob...)
	return nil
}

func (f *fakeObjects) DeleteObject(_ context.Context, bucket, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.blobs, blobKey(bucket, key))
	return nil
}

func (f *fakeObjects) GeneratePresignedDownloadURL(_ context.Context, bucket, key string, _ time.Duration, _ string) (string, error) {
	return "https://objects.test/" + bucket + "/" + key + "?signed", nil
}

func (f *fakeObjects) blob(bucket, key string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.blobs[blobKey(bucket, key)]
	return b, ok
}

type testEnv struct {
	svc     *Service
	store   *metadata.GORMStore
	objects *fakeObjects
	cache   *cache.Cache
	bus     *realtime.Bus
}

func newTestEnv(t *testing.T, cfg Config) *testEnv {
	t.Helper()
	store, err := metadata.New(&metadata.Config{
		Type:   metadata.DatabaseTypeSQLite,
		SQLite: metadata.SQLiteConfig{Path: ":memory:"},
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	c := cache.New(cache.Options{JanitorInterval: -1})
	t.Cleanup(c.Close)

	objects := newFakeObjects()
	bus := realtime.NewBus(16)
	svc := NewService(store, objects, c, bus, nil, nil, cfg)
	return &testEnv{svc: svc, store: store, objects: objects, cache: c, bus: bus}
}

func createLibrary(t *testing.T, env *testEnv) *models.Library {
	t.Helper()
	lib, err := env.svc.CreateLibrary(context.Background(), CreateLibraryInput{
		Name: "docs", OwnerID: "owner-1",
	})
	if err != nil {
		t.Fatalf("CreateLibrary failed: %v", err)
	}
	return lib
}

func TestCreateLibrary(t *testing.T) {
	env := newTestEnv(t, Config{})
	lib := createLibrary(t, env)

	if !strings.HasPrefix(lib.BucketName, "shelfd-") {
		t.Errorf("unexpected bucket name %q", lib.BucketName)
	}
	if !env.objects.buckets[lib.BucketName] {
		t.Error("expected bucket allocated at creation")
	}
	if lib.OwnerID != "owner-1" || lib.CreatedBy != "owner-1" {
		t.Errorf("owner not recorded: %+v", lib)
	}
}

func TestUpdateLibraryAuthorization(t *testing.T) {
	env := newTestEnv(t, Config{})
	lib := createLibrary(t, env)
	ctx := context.Background()

	name := "renamed"
	if _, err := env.svc.UpdateLibrary(ctx, lib.ID, Actor{ID: "intruder"}, UpdateLibraryInput{Name: &name}); !errors.Is(err, models.ErrAccessDenied) {
		t.Errorf("expected access denied, got %v", err)
	}

	updated, err := env.svc.UpdateLibrary(ctx, lib.ID, Actor{ID: "owner-1"}, UpdateLibraryInput{Name: &name})
	if err != nil {
		t.Fatalf("owner update failed: %v", err)
	}
	if updated.Name != "renamed" {
		t.Errorf("got %q", updated.Name)
	}
	if updated.BucketName != lib.BucketName {
		t.Error("bucket name must be immutable")
	}

	t.Run("admin may update another owner's library", func(t *testing.T) {
		desc := "curated"
		updated, err := env.svc.UpdateLibrary(ctx, lib.ID, Actor{ID: "ops-admin", Admin: true}, UpdateLibraryInput{Description: &desc})
		if err != nil {
			t.Fatalf("admin update failed: %v", err)
		}
		if updated.Description != "curated" {
			t.Errorf("got %q", updated.Description)
		}
	})

	t.Run("admin may delete another owner's library", func(t *testing.T) {
		if err := env.svc.DeleteLibrary(ctx, lib.ID, Actor{ID: "other"}); !errors.Is(err, models.ErrAccessDenied) {
			t.Fatalf("expected access denied, got %v", err)
		}
		if err := env.svc.DeleteLibrary(ctx, lib.ID, Actor{ID: "ops-admin", Admin: true}); err != nil {
			t.Fatalf("admin delete failed: %v", err)
		}
		if _, err := env.svc.GetLibrary(ctx, lib.ID); !errors.Is(err, models.ErrLibraryNotFound) {
			t.Errorf("expected library gone, got %v", err)
		}
	})
}

func uploadFile(t *testing.T, env *testEnv, libID string, dirID *string, name string, content []byte, onDuplicate string) *models.File {
	t.Helper()
	ctx := context.Background()
	init, err := env.svc.InitUpload(ctx, InitUploadInput{
		LibraryID: libID, DirectoryID: dirID, Filename: name,
		ContentType: "text/plain", SizeBytes: int64(len(content)),
		OnDuplicate: onDuplicate, ActorID: "owner-1",
	})
	if err != nil {
		t.Fatalf("InitUpload failed: %v", err)
	}
	for i := 0; i < init.TotalChunks; i++ {
		end := (int64(i) + 1) * init.ChunkSize
		if end > int64(len(content)) {
			end = int64(len(content))
		}
		if err := env.svc.UploadPart(ctx, init.UploadID, i+1, content[int64(i)*init.ChunkSize:end]); err != nil {
			t.Fatalf("UploadPart %d failed: %v", i+1, err)
		}
	}
	file, err := env.svc.CompleteUpload(ctx, init.UploadID, "")
	if err != nil {
		t.Fatalf("CompleteUpload failed: %v", err)
	}
	return file
}

func TestUploadSinglePart(t *testing.T) {
	env := newTestEnv(t, Config{})
	lib := createLibrary(t, env)

	file := uploadFile(t, env, lib.ID, nil, "notes.txt", []byte("hello world"), DuplicateAsk)

	if file.CurrentVersion != 1 {
		t.Errorf("expected version 1, got %d", file.CurrentVersion)
	}
	wantKey := lib.ID + "/notes.txt_v1"
	if file.StorageKey != wantKey {
		t.Errorf("expected key %q, got %q", wantKey, file.StorageKey)
	}
	if blob, ok := env.objects.blob(lib.BucketName, wantKey); !ok || string(blob) != "hello world" {
		t.Error("blob not stored")
	}
	sum := sha256.Sum256([]byte("hello world"))
	if file.ChecksumSHA256 != hex.EncodeToString(sum[:]) {
		t.Errorf("checksum mismatch: %s", file.ChecksumSHA256)
	}
}

func TestUploadZeroByte(t *testing.T) {
	env := newTestEnv(t, Config{})
	lib := createLibrary(t, env)

	ctx := context.Background()
	init, err := env.svc.InitUpload(ctx, InitUploadInput{
		LibraryID: lib.ID, Filename: "empty.txt", SizeBytes: 0, ActorID: "owner-1",
	})
	if err != nil {
		t.Fatalf("InitUpload failed: %v", err)
	}
	if init.Multipart || init.TotalChunks != 1 {
		t.Errorf("zero-byte files take the single path: %+v", init)
	}
	if err := env.svc.UploadPart(ctx, init.UploadID, 1, nil); err != nil {
		t.Fatalf("UploadPart failed: %v", err)
	}
	file, err := env.svc.CompleteUpload(ctx, init.UploadID, "")
	if err != nil {
		t.Fatalf("CompleteUpload failed: %v", err)
	}
	if file.SizeBytes != 0 {
		t.Errorf("expected 0 bytes, got %d", file.SizeBytes)
	}
}

func TestUploadMultipart(t *testing.T) {
	env := newTestEnv(t, Config{ChunkSizeBytes: 4})
	lib := createLibrary(t, env)

	content := []byte("abcdefghij") // 3 chunks of 4
	ctx := context.Background()
	init, err := env.svc.InitUpload(ctx, InitUploadInput{
		LibraryID: lib.ID, Filename: "big.bin", SizeBytes: int64(len(content)), ActorID: "owner-1",
	})
	if err != nil {
		t.Fatalf("InitUpload failed: %v", err)
	}
	if !init.Multipart || init.TotalChunks != 3 {
		t.Fatalf("expected 3-chunk multipart, got %+v", init)
	}

	// Out-of-order parts still compose correctly.
	if err := env.svc.UploadPart(ctx, init.UploadID, 2, content[4:8]); err != nil {
		t.Fatal(err)
	}
	if err := env.svc.UploadPart(ctx, init.UploadID, 1, content[0:4]); err != nil {
		t.Fatal(err)
	}
	if err := env.svc.UploadPart(ctx, init.UploadID, 3, content[8:]); err != nil {
		t.Fatal(err)
	}

	file, err := env.svc.CompleteUpload(ctx, init.UploadID, "")
	if err != nil {
		t.Fatalf("CompleteUpload failed: %v", err)
	}
	if file.SizeBytes != int64(len(content)) {
		t.Errorf("expected %d bytes, got %d", len(content), file.SizeBytes)
	}
	if blob, _ := env.objects.blob(lib.BucketName, file.StorageKey); string(blob) != string(content) {
		t.Errorf("blob mismatch: %q", blob)
	}
	// No server-side hash exists for multipart; the ETag stands in.
	if file.ChecksumSHA256 != "etag-final" {
		t.Errorf("expected ETag surrogate checksum, got %q", file.ChecksumSHA256)
	}
}

func TestCompleteUploadClientChecksum(t *testing.T) {
	env := newTestEnv(t, Config{ChunkSizeBytes: 4})
	lib := createLibrary(t, env)
	ctx := context.Background()

	t.Run("mismatch against server hash is rejected", func(t *testing.T) {
		init, err := env.svc.InitUpload(ctx, InitUploadInput{
			LibraryID: lib.ID, Filename: "s.txt", SizeBytes: 2, ActorID: "owner-1",
		})
		if err != nil {
			t.Fatal(err)
		}
		if err := env.svc.UploadPart(ctx, init.UploadID, 1, []byte("hi")); err != nil {
			t.Fatal(err)
		}
		if _, err := env.svc.CompleteUpload(ctx, init.UploadID, strings.Repeat("0", 64)); !errors.Is(err, models.ErrChecksumMismatch) {
			t.Errorf("expected checksum rejection, got %v", err)
		}
	})

	t.Run("multipart records the client hash", func(t *testing.T) {
		content := []byte("abcdefgh")
		sum := sha256.Sum256(content)
		want := hex.EncodeToString(sum[:])

		init, err := env.svc.InitUpload(ctx, InitUploadInput{
			LibraryID: lib.ID, Filename: "m.bin", SizeBytes: int64(len(content)), ActorID: "owner-1",
		})
		if err != nil {
			t.Fatal(err)
		}
		if err := env.svc.UploadPart(ctx, init.UploadID, 1, content[:4]); err != nil {
			t.Fatal(err)
		}
		if err := env.svc.UploadPart(ctx, init.UploadID, 2, content[4:]); err != nil {
			t.Fatal(err)
		}
		file, err := env.svc.CompleteUpload(ctx, init.UploadID, want)
		if err != nil {
			t.Fatalf("CompleteUpload failed: %v", err)
		}
		if file.ChecksumSHA256 != want {
			t.Errorf("expected client hash recorded, got %q", file.ChecksumSHA256)
		}
	})
}

func TestConcurrentOverwritesKeepEveryVersionBlob(t *testing.T) {
	env := newTestEnv(t, Config{})
	lib := createLibrary(t, env)
	ctx := context.Background()

	first := uploadFile(t, env, lib.ID, nil, "q1.pdf", []byte("original q1"), DuplicateAsk)

	// Two overwrites initialized back to back, before either completes.
	initA, err := env.svc.InitUpload(ctx, InitUploadInput{
		LibraryID: lib.ID, Filename: "q1.pdf", SizeBytes: 9, OnDuplicate: DuplicateOverwrite, ActorID: "owner-1",
	})
	if err != nil {
		t.Fatal(err)
	}
	initB, err := env.svc.InitUpload(ctx, InitUploadInput{
		LibraryID: lib.ID, Filename: "q1.pdf", SizeBytes: 9, OnDuplicate: DuplicateOverwrite, ActorID: "owner-2",
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := env.svc.UploadPart(ctx, initA.UploadID, 1, []byte("content A")); err != nil {
		t.Fatal(err)
	}
	if err := env.svc.UploadPart(ctx, initB.UploadID, 1, []byte("content B")); err != nil {
		t.Fatal(err)
	}

	fileA, err := env.svc.CompleteUpload(ctx, initA.UploadID, "")
	if err != nil {
		t.Fatalf("first complete failed: %v", err)
	}
	fileB, err := env.svc.CompleteUpload(ctx, initB.UploadID, "")
	if err != nil {
		t.Fatalf("second complete failed: %v", err)
	}

	if fileA.CurrentVersion != 2 || fileB.CurrentVersion != 3 {
		t.Fatalf("expected versions 2 and 3, got %d and %d", fileA.CurrentVersion, fileB.CurrentVersion)
	}

	versions, err := env.svc.ListFileVersions(ctx, first.ID)
	if err != nil || len(versions) != 3 {
		t.Fatalf("expected 3 version rows, got %d (%v)", len(versions), err)
	}
	seen := map[string]int{}
	for _, v := range versions {
		seen[v.StorageKey]++
	}
	if len(seen) != 3 {
		t.Fatalf("version storage keys must be distinct, got %v", seen)
	}

	// Each version's blob survives at its own key with its own bytes.
	v2, err := env.store.GetFileVersion(ctx, first.ID, 2)
	if err != nil {
		t.Fatal(err)
	}
	if blob, ok := env.objects.blob(lib.BucketName, v2.StorageKey); !ok || string(blob) != "content A" {
		t.Errorf("version 2 blob corrupted: %q", blob)
	}
	v3, err := env.store.GetFileVersion(ctx, first.ID, 3)
	if err != nil {
		t.Fatal(err)
	}
	if blob, ok := env.objects.blob(lib.BucketName, v3.StorageKey); !ok || string(blob) != "content B" {
		t.Errorf("version 3 blob corrupted: %q", blob)
	}
	if !strings.HasSuffix(v2.StorageKey, "_v2") || !strings.HasSuffix(v3.StorageKey, "_v3") {
		t.Errorf("unexpected keys %q %q", v2.StorageKey, v3.StorageKey)
	}
}

func TestUploadDuplicateHandling(t *testing.T) {
	env := newTestEnv(t, Config{})
	lib := createLibrary(t, env)
	ctx := context.Background()

	first := uploadFile(t, env, lib.ID, nil, "q1.pdf", []byte("v1 content"), DuplicateAsk)

	t.Run("ask returns conflict", func(t *testing.T) {
		res, err := env.svc.InitUpload(ctx, InitUploadInput{
			LibraryID: lib.ID, Filename: "q1.pdf", SizeBytes: 4, OnDuplicate: DuplicateAsk, ActorID: "owner-1",
		})
		if !errors.Is(err, ErrDuplicateConflict) {
			t.Fatalf("expected conflict, got %v", err)
		}
		if res.Conflict == nil || res.Conflict.ExistingFile.ID != first.ID {
			t.Fatalf("conflict missing existing file: %+v", res)
		}
		if ok, _ := regexp.MatchString(`^q1_[0-9]+\.pdf$`, res.Conflict.ProposedName); !ok {
			t.Errorf("unexpected proposed name %q", res.Conflict.ProposedName)
		}
	})

	t.Run("overwrite bumps version", func(t *testing.T) {
		file := uploadFile(t, env, lib.ID, nil, "q1.pdf", []byte("v2 content!"), DuplicateOverwrite)
		if file.ID != first.ID {
			t.Errorf("overwrite must target the existing file")
		}
		if file.CurrentVersion != 2 {
			t.Errorf("expected version 2, got %d", file.CurrentVersion)
		}
		if !strings.HasSuffix(file.StorageKey, "_v2") {
			t.Errorf("expected version-scoped key, got %q", file.StorageKey)
		}
		versions, err := env.svc.ListFileVersions(ctx, file.ID)
		if err != nil || len(versions) != 2 {
			t.Errorf("expected 2 version rows, got %d (%v)", len(versions), err)
		}
	})

	t.Run("rename creates sibling", func(t *testing.T) {
		file := uploadFile(t, env, lib.ID, nil, "q1.pdf", []byte("v3 content"), DuplicateRename)
		if file.ID == first.ID {
			t.Error("rename must create a new file")
		}
		if ok, _ := regexp.MatchString(`^q1_[0-9]+\.pdf$`, file.Filename); !ok {
			t.Errorf("unexpected filename %q", file.Filename)
		}
	})
}

func TestUploadSizeLimit(t *testing.T) {
	env := newTestEnv(t, Config{MaxFileSizeBytes: 10})
	lib := createLibrary(t, env)

	_, err := env.svc.InitUpload(context.Background(), InitUploadInput{
		LibraryID: lib.ID, Filename: "big.bin", SizeBytes: 11, ActorID: "owner-1",
	})
	if !errors.Is(err, models.ErrFileTooLarge) {
		t.Errorf("expected size rejection, got %v", err)
	}
}

func TestAbortUploadIdempotent(t *testing.T) {
	env := newTestEnv(t, Config{ChunkSizeBytes: 4})
	lib := createLibrary(t, env)
	ctx := context.Background()

	init, err := env.svc.InitUpload(ctx, InitUploadInput{
		LibraryID: lib.ID, Filename: "big.bin", SizeBytes: 12, ActorID: "owner-1",
	})
	if err != nil {
		t.Fatalf("InitUpload failed: %v", err)
	}

	if err := env.svc.AbortUpload(ctx, init.UploadID); err != nil {
		t.Fatalf("AbortUpload failed: %v", err)
	}
	if err := env.svc.AbortUpload(ctx, init.UploadID); err != nil {
		t.Fatalf("second abort must succeed: %v", err)
	}
	if err := env.svc.AbortUpload(ctx, "never-existed"); err != nil {
		t.Fatalf("unknown id must succeed: %v", err)
	}
	if len(env.objects.aborted) != 1 {
		t.Errorf("expected one server-side abort, got %v", env.objects.aborted)
	}
}

func TestDirectoryLifecycle(t *testing.T) {
	env := newTestEnv(t, Config{})
	lib := createLibrary(t, env)
	ctx := context.Background()

	docs, err := env.svc.CreateDirectory(ctx, CreateDirectoryInput{LibraryID: lib.ID, Name: "docs", ActorID: "owner-1"})
	if err != nil {
		t.Fatalf("CreateDirectory failed: %v", err)
	}
	if docs.Path != "/" || docs.FullPath() != "/docs" {
		t.Errorf("unexpected paths: %q %q", docs.Path, docs.FullPath())
	}

	guides, err := env.svc.CreateDirectory(ctx, CreateDirectoryInput{LibraryID: lib.ID, ParentID: &docs.ID, Name: "guides", ActorID: "owner-1"})
	if err != nil {
		t.Fatalf("nested create failed: %v", err)
	}
	file := uploadFile(t, env, lib.ID, &guides.ID, "intro.md", []byte("# Intro\n\nwelcome"), DuplicateAsk)
	if file.Path != "/docs/guides" {
		t.Errorf("file path %q", file.Path)
	}
	if file.StorageKey != lib.ID+"/docs/guides/intro.md_v1" {
		t.Errorf("storage key %q", file.StorageKey)
	}

	// Rename cascades into descendant paths but not storage keys.
	if _, err := env.svc.RenameDirectory(ctx, docs.ID, "manuals", "owner-1"); err != nil {
		t.Fatalf("RenameDirectory failed: %v", err)
	}
	moved, err := env.svc.GetFile(ctx, file.ID)
	if err != nil {
		t.Fatal(err)
	}
	if moved.Path != "/manuals/guides" {
		t.Errorf("descendant path not rewritten: %q", moved.Path)
	}
	if moved.StorageKey != file.StorageKey {
		t.Error("storage key must not change on rename")
	}

	// Move into own descendant is rejected.
	if _, err := env.svc.MoveDirectory(ctx, docs.ID, &guides.ID, "owner-1"); !errors.Is(err, models.ErrInvalidMoveTarget) {
		t.Errorf("expected invalid move target, got %v", err)
	}
}

func TestListFilesUsesCache(t *testing.T) {
	env := newTestEnv(t, Config{})
	lib := createLibrary(t, env)
	ctx := context.Background()

	uploadFile(t, env, lib.ID, nil, "a.txt", []byte("content a"), DuplicateAsk)

	files, err := env.svc.ListFiles(ctx, lib.ID, nil)
	if err != nil || len(files) != 1 {
		t.Fatalf("ListFiles: %v %d", err, len(files))
	}
	if _, ok := env.cache.Get(filesKey(lib.ID, "")); !ok {
		t.Error("expected listing cached")
	}

	// A new upload invalidates the cached listing.
	uploadFile(t, env, lib.ID, nil, "b.txt", []byte("content b"), DuplicateAsk)
	files, err = env.svc.ListFiles(ctx, lib.ID, nil)
	if err != nil || len(files) != 2 {
		t.Errorf("expected fresh listing of 2, got %d (%v)", len(files), err)
	}
}

func TestTrashRestoreAndPurge(t *testing.T) {
	env := newTestEnv(t, Config{})
	lib := createLibrary(t, env)
	ctx := context.Background()

	file := uploadFile(t, env, lib.ID, nil, "doomed.txt", []byte("not long for this world"), DuplicateAsk)
	if err := env.svc.DeleteFile(ctx, file.ID, "owner-1"); err != nil {
		t.Fatalf("DeleteFile failed: %v", err)
	}

	items, err := env.svc.ListTrash(ctx, lib.ID)
	if err != nil || len(items) != 1 {
		t.Fatalf("expected 1 trash item, got %d (%v)", len(items), err)
	}
	if items[0].ItemType != TrashItemFile || items[0].ExpiresAt.Before(items[0].DeletedAt) {
		t.Errorf("bad trash item: %+v", items[0])
	}

	t.Run("restore", func(t *testing.T) {
		if err := env.svc.Restore(ctx, RestoreInput{ItemType: TrashItemFile, ItemID: file.ID, ActorID: "owner-1"}); err != nil {
			t.Fatalf("Restore failed: %v", err)
		}
		restored, err := env.svc.GetFile(ctx, file.ID)
		if err != nil || restored.IsDeleted {
			t.Errorf("file not live after restore: %v", err)
		}
	})

	t.Run("purge removes blobs", func(t *testing.T) {
		if err := env.svc.DeleteFile(ctx, file.ID, "owner-1"); err != nil {
			t.Fatal(err)
		}
		if err := env.svc.PermanentDelete(ctx, TrashItemFile, file.ID, "owner-1"); err != nil {
			t.Fatalf("PermanentDelete failed: %v", err)
		}
		if _, ok := env.objects.blob(lib.BucketName, file.StorageKey); ok {
			t.Error("expected blob removed")
		}
		if _, err := env.store.GetAnyFile(ctx, file.ID); !errors.Is(err, models.ErrFileNotFound) {
			t.Errorf("expected row removed, got %v", err)
		}
	})
}

func TestRestoreExpiredRefused(t *testing.T) {
	env := newTestEnv(t, Config{TrashRetention: time.Nanosecond})
	lib := createLibrary(t, env)
	ctx := context.Background()

	file := uploadFile(t, env, lib.ID, nil, "old.txt", []byte("ancient content"), DuplicateAsk)
	if err := env.svc.DeleteFile(ctx, file.ID, "owner-1"); err != nil {
		t.Fatal(err)
	}
	time.Sleep(5 * time.Millisecond)

	err := env.svc.Restore(ctx, RestoreInput{ItemType: TrashItemFile, ItemID: file.ID, ActorID: "owner-1"})
	if !errors.Is(err, models.ErrTrashItemExpired) {
		t.Errorf("expected expiry refusal, got %v", err)
	}
}

func TestRestoreDirectoryFallsBackToRoot(t *testing.T) {
	env := newTestEnv(t, Config{})
	lib := createLibrary(t, env)
	ctx := context.Background()

	parent, err := env.svc.CreateDirectory(ctx, CreateDirectoryInput{LibraryID: lib.ID, Name: "parent", ActorID: "owner-1"})
	if err != nil {
		t.Fatal(err)
	}
	child, err := env.svc.CreateDirectory(ctx, CreateDirectoryInput{LibraryID: lib.ID, ParentID: &parent.ID, Name: "child", ActorID: "owner-1"})
	if err != nil {
		t.Fatal(err)
	}

	// Delete child, then delete its parent separately.
	if err := env.svc.DeleteDirectory(ctx, child.ID, "owner-1"); err != nil {
		t.Fatal(err)
	}
	if err := env.svc.DeleteDirectory(ctx, parent.ID, "owner-1"); err != nil {
		t.Fatal(err)
	}

	if err := env.svc.Restore(ctx, RestoreInput{ItemType: TrashItemDirectory, ItemID: child.ID, ActorID: "owner-1", ToOriginal: true}); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	restored, err := env.svc.GetDirectory(ctx, child.ID)
	if err != nil {
		t.Fatal(err)
	}
	if restored.ParentID != nil || restored.Path != "/" {
		t.Errorf("expected restore to root, got parent=%v path=%q", restored.ParentID, restored.Path)
	}
}

func TestCleanupExpired(t *testing.T) {
	env := newTestEnv(t, Config{TrashRetention: time.Nanosecond})
	lib := createLibrary(t, env)
	ctx := context.Background()

	file := uploadFile(t, env, lib.ID, nil, "sweep.txt", []byte("sweep me away now"), DuplicateAsk)
	if err := env.svc.DeleteFile(ctx, file.ID, "owner-1"); err != nil {
		t.Fatal(err)
	}
	time.Sleep(5 * time.Millisecond)

	purged, err := env.svc.CleanupExpired(ctx)
	if err != nil {
		t.Fatalf("CleanupExpired failed: %v", err)
	}
	if purged != 1 {
		t.Errorf("expected 1 purged, got %d", purged)
	}

	// Second run finds nothing.
	purged, err = env.svc.CleanupExpired(ctx)
	if err != nil || purged != 0 {
		t.Errorf("expected idempotent sweep, got %d (%v)", purged, err)
	}
}

func TestRealtimeEventsEmitted(t *testing.T) {
	env := newTestEnv(t, Config{})
	lib := createLibrary(t, env)

	sub := env.bus.Subscribe(realtime.LibraryChannel(lib.ID))
	defer env.bus.Unsubscribe(sub)

	uploadFile(t, env, lib.ID, nil, "live.txt", []byte("streaming content"), DuplicateAsk)

	select {
	case e := <-sub.Events():
		if e.Type != "file_uploaded" {
			t.Errorf("unexpected event %s", e.Type)
		}
	default:
		t.Error("expected file_uploaded event")
	}
}
