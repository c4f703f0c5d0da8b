package library

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shelfd/shelfd/internal/logger"
	"github.com/shelfd/shelfd/pkg/audit"
	"github.com/shelfd/shelfd/pkg/index/indexer"
	"github.com/shelfd/shelfd/pkg/models"
	"github.com/shelfd/shelfd/pkg/store/object"
)

// Duplicate-filename policies accepted by InitUpload.
const (
	DuplicateAsk       = "ask"
	DuplicateOverwrite = "overwrite"
	DuplicateRename    = "rename"
)

// ErrInvalidFilename rejects empty or oversized filenames.
var ErrInvalidFilename = errors.New("filename must be 1 to 255 characters")

// ErrDuplicateConflict marks an init refused under the ask policy. The
// InitUploadResult carries the conflict details.
var ErrDuplicateConflict = errors.New("filename already exists in destination")

// uploadRecord is the process-local state of one in-flight upload.
// Records do not survive a restart; callers retry from init.
type uploadRecord struct {
	mu sync.Mutex

	id          string
	libraryID   string
	bucket      string
	directoryID *string
	dirPath     string
	filename    string
	contentType string
	sizeBytes   int64
	actorID     string

	// existingFileID is set under the overwrite policy; completion
	// then bumps that file instead of inserting a new one.
	existingFileID string

	// stagingKey is where the blob lives until the metadata commit
	// assigns the version-scoped key. The version number is unknown
	// until commit; staging keeps racing overwrites from writing over
	// each other's blobs.
	stagingKey string

	multipart      bool
	remoteUploadID string
	parts          []object.Part
	buffer         []byte

	createdAt time.Time
}

type uploadRegistry struct {
	mu      sync.Mutex
	records map[string]*uploadRecord
}

func newUploadRegistry() *uploadRegistry {
	return &uploadRegistry{records: make(map[string]*uploadRecord)}
}

func (r *uploadRegistry) put(rec *uploadRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[rec.id] = rec
}

func (r *uploadRegistry) get(id string) (*uploadRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	return rec, ok
}

func (r *uploadRegistry) remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.records, id)
}

func (r *uploadRegistry) stale(cutoff time.Time) []*uploadRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*uploadRecord
	for _, rec := range r.records {
		if rec.createdAt.Before(cutoff) {
			out = append(out, rec)
		}
	}
	return out
}

// InitUploadInput starts an upload.
type InitUploadInput struct {
	LibraryID   string
	DirectoryID *string
	Filename    string
	ContentType string
	SizeBytes   int64
	OnDuplicate string // ask (default), overwrite, rename
	ActorID     string
}

// DuplicateConflict describes an ask-policy refusal.
type DuplicateConflict struct {
	ExistingFile *models.File `json:"existing_file"`
	ProposedName string       `json:"proposed_name"`
}

// InitUploadResult describes the registered upload.
type InitUploadResult struct {
	UploadID    string             `json:"upload_id"`
	Filename    string             `json:"filename"`
	Multipart   bool               `json:"multipart"`
	TotalChunks int                `json:"total_chunks"`
	ChunkSize   int64              `json:"chunk_size"`
	Conflict    *DuplicateConflict `json:"conflict,omitempty"`
}

// InitUpload validates size and duplicate constraints and registers
// the upload. Zero-byte files are legal and take the single-part path.
// Under the ask policy a duplicate returns ErrDuplicateConflict with
// the conflict attached to the result.
func (s *Service) InitUpload(ctx context.Context, in InitUploadInput) (*InitUploadResult, error) {
	if l := len(in.Filename); l < 1 || l > 255 {
		return nil, ErrInvalidFilename
	}
	if in.SizeBytes < 0 {
		return nil, fmt.Errorf("negative size %d", in.SizeBytes)
	}

	lib, err := s.store.GetLibrary(ctx, in.LibraryID)
	if err != nil {
		return nil, err
	}
	if limit := lib.MaxFileSize(s.cfg.MaxFileSizeBytes); in.SizeBytes > limit {
		return nil, fmt.Errorf("%d bytes exceeds limit %d: %w", in.SizeBytes, limit, models.ErrFileTooLarge)
	}

	dirPath := "/"
	if in.DirectoryID != nil {
		dir, err := s.store.GetDirectory(ctx, *in.DirectoryID)
		if err != nil {
			return nil, err
		}
		if dir.LibraryID != in.LibraryID {
			return nil, models.ErrDirectoryNotFound
		}
		dirPath = dir.FullPath()
	}

	filename := in.Filename
	existingFileID := ""

	existing, err := s.store.GetFileByName(ctx, in.LibraryID, in.DirectoryID, filename)
	switch {
	case err == nil:
		switch in.OnDuplicate {
		case DuplicateOverwrite:
			existingFileID = existing.ID
		case DuplicateRename:
			filename = proposeRename(filename, time.Now())
		default:
			return &InitUploadResult{
				Conflict: &DuplicateConflict{
					ExistingFile: existing,
					ProposedName: proposeRename(filename, time.Now()),
				},
			}, ErrDuplicateConflict
		}
	case errors.Is(err, models.ErrFileNotFound):
		// Destination is free.
	default:
		return nil, err
	}

	totalChunks := 1
	if in.SizeBytes > 0 {
		totalChunks = int((in.SizeBytes + s.cfg.ChunkSizeBytes - 1) / s.cfg.ChunkSizeBytes)
	}

	uploadID := uuid.NewString()
	rec := &uploadRecord{
		id:             uploadID,
		libraryID:      in.LibraryID,
		bucket:         lib.BucketName,
		directoryID:    in.DirectoryID,
		dirPath:        dirPath,
		filename:       filename,
		contentType:    in.ContentType,
		sizeBytes:      in.SizeBytes,
		actorID:        in.ActorID,
		existingFileID: existingFileID,
		stagingKey:     object.GenerateStagingKey(in.LibraryID, uploadID),
		multipart:      totalChunks > 1,
		createdAt:      time.Now(),
	}

	if rec.multipart {
		remoteID, err := s.objects.StartMultipartUpload(ctx, rec.bucket, rec.stagingKey, rec.contentType, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to start multipart upload: %w", err)
		}
		rec.remoteUploadID = remoteID
	}

	s.uploads.put(rec)

	return &InitUploadResult{
		UploadID:    rec.id,
		Filename:    filename,
		Multipart:   rec.multipart,
		TotalChunks: totalChunks,
		ChunkSize:   s.cfg.ChunkSizeBytes,
	}, nil
}

// proposeRename builds the `{stem}_{epoch}{.ext}` alternative name.
func proposeRename(filename string, now time.Time) string {
	ext := path.Ext(filename)
	stem := strings.TrimSuffix(filename, ext)
	return fmt.Sprintf("%s_%d%s", stem, now.Unix(), ext)
}

// UploadPart accepts one part. Multipart uploads forward the bytes to
// the object store; single-part uploads buffer them until complete.
func (s *Service) UploadPart(ctx context.Context, uploadID string, partNumber int, data []byte) error {
	if partNumber < 1 || partNumber > 10000 {
		return fmt.Errorf("part %d: %w", partNumber, models.ErrInvalidPartNumber)
	}

	rec, ok := s.uploads.get(uploadID)
	if !ok {
		return models.ErrUploadNotFound
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	if !rec.multipart {
		if partNumber != 1 {
			return fmt.Errorf("single-part upload accepts only part 1: %w", models.ErrInvalidPartNumber)
		}
		rec.buffer = append([]byte(nil), data...)
		return nil
	}

	part, err := s.objects.UploadPart(ctx, rec.bucket, rec.stagingKey, rec.remoteUploadID, partNumber, data)
	if err != nil {
		return err
	}
	rec.parts = append(rec.parts, *part)
	return nil
}

// CompleteUpload finalizes the staged blob, commits the metadata in
// one transaction (which assigns the version number and its storage
// key), promotes the blob to that key, then fans out cache
// invalidation, the realtime event, the audit record and a
// best-effort index job.
//
// clientSHA256 is an optional caller-computed checksum. Single-part
// uploads hash server side and reject a mismatching client value.
// Multipart uploads have no server-side hash; the client value is
// recorded when given, the S3 ETag otherwise.
func (s *Service) CompleteUpload(ctx context.Context, uploadID, clientSHA256 string) (*models.File, error) {
	rec, ok := s.uploads.get(uploadID)
	if !ok {
		return nil, models.ErrUploadNotFound
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	var result *object.UploadResult
	var err error
	if rec.multipart {
		result, err = s.objects.CompleteMultipartUpload(ctx, rec.bucket, rec.stagingKey, rec.remoteUploadID, rec.parts)
	} else {
		result, err = s.objects.UploadFile(ctx, rec.bucket, rec.stagingKey, rec.buffer, rec.contentType, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to store blob: %w", err)
	}

	checksum := result.SHA256
	if clientSHA256 != "" {
		if result.SHA256 != "" && !strings.EqualFold(result.SHA256, clientSHA256) {
			return nil, fmt.Errorf("client checksum %s does not match stored blob %s: %w",
				clientSHA256, result.SHA256, models.ErrChecksumMismatch)
		}
		checksum = strings.ToLower(clientSHA256)
	}
	if checksum == "" {
		checksum = result.ETag
	}

	version := &models.FileVersion{
		ID:             uuid.NewString(),
		SizeBytes:      result.Size,
		ChecksumSHA256: checksum,
		CreatedBy:      rec.actorID,
	}

	var file *models.File
	if rec.existingFileID != "" {
		update := &models.File{
			SizeBytes:      result.Size,
			ChecksumSHA256: checksum,
			ContentType:    rec.contentType,
			ModifiedBy:     rec.actorID,
		}
		file, err = s.store.CommitFileVersion(ctx, rec.existingFileID, update, version)
	} else {
		file = &models.File{
			ID:             uuid.NewString(),
			LibraryID:      rec.libraryID,
			DirectoryID:    rec.directoryID,
			Filename:       rec.filename,
			Path:           rec.dirPath,
			SizeBytes:      result.Size,
			ChecksumSHA256: checksum,
			ContentType:    rec.contentType,
			CreatedBy:      rec.actorID,
			ModifiedBy:     rec.actorID,
		}
		_, err = s.store.CreateFileWithVersion(ctx, file, version)
	}
	if err != nil {
		return nil, err
	}

	if err := s.objects.CopyObject(ctx, rec.bucket, rec.stagingKey, file.StorageKey); err != nil {
		return nil, fmt.Errorf("failed to promote staged blob to %s: %w", file.StorageKey, err)
	}
	if err := s.objects.DeleteObject(ctx, rec.bucket, rec.stagingKey); err != nil {
		logger.WarnCtx(ctx, "failed to remove staged blob", "key", rec.stagingKey, "error", err)
	}

	s.uploads.remove(uploadID)

	s.invalidateListing(rec.libraryID, rec.directoryID)
	s.publish(rec.libraryID, "file_uploaded", file)
	s.record(ctx, audit.Entry{
		ActorID:    rec.actorID,
		Action:     audit.ActionFileUploaded,
		TargetType: "file",
		TargetID:   file.ID,
		LibraryID:  rec.libraryID,
		Details: map[string]any{
			"filename": file.Filename,
			"version":  file.CurrentVersion,
			"size":     file.SizeBytes,
		},
	})
	s.enqueueIndex(ctx, indexer.Job{
		Kind:        indexer.JobIndex,
		LibraryID:   rec.libraryID,
		FileID:      file.ID,
		Path:        fileIndexPath(file),
		Filename:    file.Filename,
		Bucket:      rec.bucket,
		StorageKey:  file.StorageKey,
		ContentType: rec.contentType,
	})
	return file, nil
}

// AbortUpload releases server-side multipart state and forgets the
// registration. Unknown upload ids succeed: abort is idempotent.
func (s *Service) AbortUpload(ctx context.Context, uploadID string) error {
	rec, ok := s.uploads.get(uploadID)
	if !ok {
		return nil
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	if rec.multipart && rec.remoteUploadID != "" {
		if err := s.objects.AbortMultipartUpload(ctx, rec.bucket, rec.stagingKey, rec.remoteUploadID); err != nil {
			return err
		}
	}
	if err := s.objects.DeleteObject(ctx, rec.bucket, rec.stagingKey); err != nil {
		logger.WarnCtx(ctx, "failed to remove staged blob", "key", rec.stagingKey, "error", err)
	}
	s.uploads.remove(uploadID)
	return nil
}

// SweepExpiredUploads aborts registrations idle past the upload
// expiry. Meant to be called periodically.
func (s *Service) SweepExpiredUploads(ctx context.Context) int {
	cutoff := time.Now().Add(-s.cfg.UploadExpiry)
	swept := 0
	for _, rec := range s.uploads.stale(cutoff) {
		if err := s.AbortUpload(ctx, rec.id); err != nil {
			logger.WarnCtx(ctx, "failed to sweep stale upload", "upload_id", rec.id, "error", err)
			continue
		}
		swept++
	}
	return swept
}

// fileIndexPath is the path form stored in chunk metadata: the file's
// full namespace path without the leading slash.
func fileIndexPath(f *models.File) string {
	return strings.TrimPrefix(f.FullPath(), "/")
}
