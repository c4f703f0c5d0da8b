package object

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// GeneratePresignedDownloadURL returns a short-lived signed GET URL.
//
// When filename is non-empty the URL forces a Content-Disposition
// attachment carrying the name in both an ASCII fallback form and the
// RFC 5987 UTF-8 form, so non-ASCII filenames survive every browser.
func (s *Store) GeneratePresignedDownloadURL(ctx context.Context, bucket, key string, expiresIn time.Duration, filename string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	input := &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}
	if filename != "" {
		input.ResponseContentDisposition = aws.String(contentDisposition(filename))
	}

	req, err := s.presign.PresignGetObject(ctx, input, s3.WithPresignExpires(expiresIn))
	if err != nil {
		return "", fmt.Errorf("failed to presign download for %s/%s: %w", bucket, key, err)
	}
	return req.URL, nil
}

// GeneratePresignedUploadURL returns a short-lived signed PUT URL.
func (s *Store) GeneratePresignedUploadURL(ctx context.Context, bucket, key string, expiresIn time.Duration, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	input := &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	req, err := s.presign.PresignPutObject(ctx, input, s3.WithPresignExpires(expiresIn))
	if err != nil {
		return "", fmt.Errorf("failed to presign upload for %s/%s: %w", bucket, key, err)
	}
	return req.URL, nil
}

// contentDisposition builds an attachment directive with the filename
// in both ASCII fallback and RFC 5987 UTF-8 forms:
//
//	attachment; filename="report_.pdf"; filename*=UTF-8''report%20%C3%BC.pdf
func contentDisposition(filename string) string {
	return fmt.Sprintf(`attachment; filename="%s"; filename*=UTF-8''%s`,
		asciiFilename(filename), rfc5987Encode(filename))
}

// asciiFilename degrades a filename to the quoted-string subset older
// clients accept: non-ASCII and control bytes become underscores,
// quotes and backslashes are dropped.
func asciiFilename(filename string) string {
	var b strings.Builder
	b.Grow(len(filename))
	for _, r := range filename {
		switch {
		case r == '"' || r == '\\':
			// skip
		case r < 0x20 || r > 0x7e:
			b.WriteByte('_')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// rfc5987Encode percent-encodes a UTF-8 string for the filename*
// parameter, leaving only attr-char bytes unescaped.
func rfc5987Encode(value string) string {
	const hexDigits = "0123456789ABCDEF"
	var b strings.Builder
	b.Grow(len(value))
	for i := 0; i < len(value); i++ {
		c := value[i]
		if isAttrChar(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hexDigits[c>>4])
		b.WriteByte(hexDigits[c&0x0f])
	}
	return b.String()
}

// isAttrChar reports whether c is in the RFC 5987 attr-char set.
func isAttrChar(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	}
	switch c {
	case '!', '#', '$', '&', '+', '-', '.', '^', '_', '`', '|', '~':
		return true
	}
	return false
}
