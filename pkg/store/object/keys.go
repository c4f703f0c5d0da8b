package object

import (
	"fmt"
	"strings"
)

// GenerateStorageKey builds the object key for one file version.
//
// Format: {library_id}/{dir_path}/{filename}_v{version}, with the
// directory segment omitted for files at the library root. Keys are
// version-scoped: renames and moves change metadata paths only, never
// the key, and a committed version's key is never reused.
func GenerateStorageKey(libraryID, dirPath, filename string, version int) string {
	name := fmt.Sprintf("%s_v%d", filename, version)

	dir := strings.Trim(dirPath, "/")
	if dir == "" {
		return libraryID + "/" + name
	}
	return libraryID + "/" + dir + "/" + name
}

// GenerateStagingKey builds the temporary key an in-flight upload
// writes to before its version number is assigned at commit. Version
// keys always end in "_v{N}", so the ".staging/" segment cannot
// collide with a committed key.
func GenerateStagingKey(libraryID, uploadID string) string {
	return libraryID + "/.staging/" + uploadID
}

// BucketName derives a library's bucket name from its ID.
//
// Format: <prefix>-<first 16 hex of the library UUID without dashes>,
// lowercased. This satisfies S3 naming constraints (lowercase, 3-63
// chars, no underscores) for any reasonable prefix.
func BucketName(prefix, libraryID string) string {
	hex := strings.ReplaceAll(libraryID, "-", "")
	if len(hex) > 16 {
		hex = hex[:16]
	}
	return strings.ToLower(prefix + "-" + hex)
}
