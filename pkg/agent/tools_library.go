package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/shelfd/shelfd/pkg/library"
	"github.com/shelfd/shelfd/pkg/models"
)

// maxReadBytes caps file.read payloads; larger files are truncated and
// flagged.
const maxReadBytes = 1 << 20

// LibraryService is the slice of the library service the tools need.
// Implemented by *library.Service.
type LibraryService interface {
	ListLibraries(ctx context.Context) ([]*models.Library, error)
	GetLibrary(ctx context.Context, id string) (*models.Library, error)
	ListDirectories(ctx context.Context, libraryID string, parentID *string) ([]*models.Directory, error)
	ListFiles(ctx context.Context, libraryID string, directoryID *string) ([]*models.File, error)
	GetFile(ctx context.Context, id string) (*models.File, error)
	SearchFiles(ctx context.Context, libraryID, query string) ([]*models.File, error)
	InitUpload(ctx context.Context, in library.InitUploadInput) (*library.InitUploadResult, error)
	UploadPart(ctx context.Context, uploadID string, partNumber int, data []byte) error
	CompleteUpload(ctx context.Context, uploadID, clientSHA256 string) (*models.File, error)
}

// ObjectFetcher pulls stored bytes for file.read.
type ObjectFetcher interface {
	DownloadFile(ctx context.Context, bucket, key string) (io.ReadCloser, error)
}

// LibraryTools implements the library-scoped tools.
type LibraryTools struct {
	svc     LibraryService
	objects ObjectFetcher
	policy  *PolicyEngine
}

// NewLibraryTools wires the library tool set.
func NewLibraryTools(svc LibraryService, objects ObjectFetcher, policy *PolicyEngine) *LibraryTools {
	return &LibraryTools{svc: svc, objects: objects, policy: policy}
}

// Register adds the library tools to the registry.
func (t *LibraryTools) Register(reg *Registry) error {
	tools := []Tool{
		{
			Name:        "library.list",
			Description: "List the libraries this agent can read.",
			Handler:     t.list,
		},
		{
			Name:        "library.browse",
			Description: "List the directories and files under a directory.",
			InputSchema: schemaFor(&BrowseArgs{}),
			Handler:     t.browse,
		},
		{
			Name:        "file.read",
			Description: "Read a file's current content as text.",
			InputSchema: schemaFor(&ReadFileArgs{}),
			Handler:     t.readFile,
		},
		{
			Name:        "file.create",
			Description: "Create a new file from text content.",
			InputSchema: schemaFor(&CreateFileArgs{}),
			Handler:     t.createFile,
		},
		{
			Name:        "file.update",
			Description: "Overwrite a file's content, creating a new version.",
			InputSchema: schemaFor(&UpdateFileArgs{}),
			Handler:     t.updateFile,
		},
		{
			Name:        "file.search",
			Description: "Search files by name across readable libraries.",
			InputSchema: schemaFor(&SearchFilesArgs{}),
			Handler:     t.searchFiles,
		},
	}
	for _, tool := range tools {
		if err := reg.Register(tool); err != nil {
			return err
		}
	}
	return nil
}

// LibraryInfo is one listed library.
type LibraryInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Writable    bool   `json:"writable"`
}

func (t *LibraryTools) list(ctx context.Context, agentID string, _ json.RawMessage) (any, error) {
	libs, err := t.svc.ListLibraries(ctx)
	if err != nil {
		return nil, err
	}
	out := []LibraryInfo{}
	for _, lib := range libs {
		if t.policy.CanRead(agentID, lib.ID) != nil {
			continue
		}
		out = append(out, LibraryInfo{
			ID:          lib.ID,
			Name:        lib.Name,
			Description: lib.Description,
			Writable:    t.policy.CanWrite(agentID, lib) == nil,
		})
	}
	return map[string]any{"libraries": out}, nil
}

// BrowseArgs are the library.browse inputs. An empty directory_id
// browses the library root.
type BrowseArgs struct {
	LibraryID   string `json:"library_id" jsonschema:"required"`
	DirectoryID string `json:"directory_id,omitempty"`
}

func (t *LibraryTools) browse(ctx context.Context, agentID string, raw json.RawMessage) (any, error) {
	var args BrowseArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	if args.LibraryID == "" {
		return nil, errors.New("library_id is required")
	}
	if err := t.policy.CanRead(agentID, args.LibraryID); err != nil {
		return nil, err
	}

	var parentID *string
	if args.DirectoryID != "" {
		parentID = &args.DirectoryID
	}
	dirs, err := t.svc.ListDirectories(ctx, args.LibraryID, parentID)
	if err != nil {
		return nil, err
	}
	files, err := t.svc.ListFiles(ctx, args.LibraryID, parentID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"directories": dirs, "files": files}, nil
}

// ReadFileArgs are the file.read inputs.
type ReadFileArgs struct {
	FileID string `json:"file_id" jsonschema:"required"`
}

// ReadFileResult is the file.read output.
type ReadFileResult struct {
	Path        string `json:"path"`
	Content     string `json:"content"`
	ContentType string `json:"content_type"`
	SizeBytes   int64  `json:"size_bytes"`
	Truncated   bool   `json:"truncated"`
}

func (t *LibraryTools) readFile(ctx context.Context, agentID string, raw json.RawMessage) (any, error) {
	var args ReadFileArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}

	file, err := t.svc.GetFile(ctx, args.FileID)
	if err != nil {
		return nil, err
	}
	if err := t.policy.CanRead(agentID, file.LibraryID); err != nil {
		return nil, err
	}
	lib, err := t.svc.GetLibrary(ctx, file.LibraryID)
	if err != nil {
		return nil, err
	}

	body, err := t.objects.DownloadFile(ctx, lib.BucketName, file.StorageKey)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch file content: %w", err)
	}
	defer body.Close()

	data, err := io.ReadAll(io.LimitReader(body, maxReadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read file content: %w", err)
	}
	truncated := false
	if len(data) > maxReadBytes {
		data = data[:maxReadBytes]
		truncated = true
	}

	return &ReadFileResult{
		Path:        file.FullPath(),
		Content:     string(data),
		ContentType: file.ContentType,
		SizeBytes:   file.SizeBytes,
		Truncated:   truncated,
	}, nil
}

// CreateFileArgs are the file.create inputs.
type CreateFileArgs struct {
	LibraryID   string `json:"library_id" jsonschema:"required"`
	DirectoryID string `json:"directory_id,omitempty"`
	Filename    string `json:"filename" jsonschema:"required"`
	Content     string `json:"content" jsonschema:"required"`
	ContentType string `json:"content_type,omitempty"`
}

func (t *LibraryTools) createFile(ctx context.Context, agentID string, raw json.RawMessage) (any, error) {
	var args CreateFileArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}

	lib, err := t.svc.GetLibrary(ctx, args.LibraryID)
	if err != nil {
		return nil, err
	}
	if err := t.policy.CanWrite(agentID, lib); err != nil {
		return nil, err
	}

	var directoryID *string
	if args.DirectoryID != "" {
		directoryID = &args.DirectoryID
	}
	contentType := args.ContentType
	if contentType == "" {
		contentType = "text/plain"
	}

	return t.uploadText(ctx, library.InitUploadInput{
		LibraryID:   args.LibraryID,
		DirectoryID: directoryID,
		Filename:    args.Filename,
		ContentType: contentType,
		SizeBytes:   int64(len(args.Content)),
		OnDuplicate: library.DuplicateAsk,
		ActorID:     agentID,
	}, args.Content)
}

// UpdateFileArgs are the file.update inputs.
type UpdateFileArgs struct {
	FileID  string `json:"file_id" jsonschema:"required"`
	Content string `json:"content" jsonschema:"required"`
}

func (t *LibraryTools) updateFile(ctx context.Context, agentID string, raw json.RawMessage) (any, error) {
	var args UpdateFileArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}

	file, err := t.svc.GetFile(ctx, args.FileID)
	if err != nil {
		return nil, err
	}
	lib, err := t.svc.GetLibrary(ctx, file.LibraryID)
	if err != nil {
		return nil, err
	}
	if err := t.policy.CanWrite(agentID, lib); err != nil {
		return nil, err
	}

	// Overwrite in place: same directory, same filename, next version.
	return t.uploadText(ctx, library.InitUploadInput{
		LibraryID:   file.LibraryID,
		DirectoryID: file.DirectoryID,
		Filename:    file.Filename,
		ContentType: file.ContentType,
		SizeBytes:   int64(len(args.Content)),
		OnDuplicate: library.DuplicateOverwrite,
		ActorID:     agentID,
	}, args.Content)
}

// uploadText runs the whole upload state machine for small text
// payloads produced by tools.
func (t *LibraryTools) uploadText(ctx context.Context, in library.InitUploadInput, content string) (*models.File, error) {
	init, err := t.svc.InitUpload(ctx, in)
	if err != nil {
		return nil, err
	}
	data := []byte(content)
	for i := 0; i < init.TotalChunks; i++ {
		end := (int64(i) + 1) * init.ChunkSize
		if end > int64(len(data)) {
			end = int64(len(data))
		}
		if err := t.svc.UploadPart(ctx, init.UploadID, i+1, data[int64(i)*init.ChunkSize:end]); err != nil {
			return nil, err
		}
	}
	return t.svc.CompleteUpload(ctx, init.UploadID, "")
}

// SearchFilesArgs are the file.search inputs. Without a library_id the
// search spans every readable library.
type SearchFilesArgs struct {
	LibraryID string `json:"library_id,omitempty"`
	Query     string `json:"query" jsonschema:"required"`
}

func (t *LibraryTools) searchFiles(ctx context.Context, agentID string, raw json.RawMessage) (any, error) {
	var args SearchFilesArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	if args.Query == "" {
		return nil, errors.New("query is required")
	}

	var libraryIDs []string
	if args.LibraryID != "" {
		if err := t.policy.CanRead(agentID, args.LibraryID); err != nil {
			return nil, err
		}
		libraryIDs = []string{args.LibraryID}
	} else {
		libs, err := t.svc.ListLibraries(ctx)
		if err != nil {
			return nil, err
		}
		for _, lib := range libs {
			if t.policy.CanRead(agentID, lib.ID) == nil {
				libraryIDs = append(libraryIDs, lib.ID)
			}
		}
	}

	matches := []*models.File{}
	for _, id := range libraryIDs {
		files, err := t.svc.SearchFiles(ctx, id, args.Query)
		if err != nil {
			return nil, err
		}
		matches = append(matches, files...)
	}
	return map[string]any{"files": matches}, nil
}
