package handlers

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/procurematch/attestation-pipeline/internal/http/middleware"
)

// savedUpload is the result of persisting a multipart file to disk.
type savedUpload struct {
	Path        string
	ContentType string
}

// saveUpload validates an incoming multipart file against a MIME
// allowlist and size ceiling, then writes it under storageDir with a
// generated name (the original filename is untrusted and never used as a
// path component). Detection is content-sniffed via mimetype rather than
// trusting the client-supplied Content-Type header.
func saveUpload(fh *multipart.FileHeader, storageDir string, maxBytes int64, allowed map[string]bool) (*savedUpload, error) {
	if fh.Size > maxBytes {
		return nil, &middleware.ErrRequestTooLarge{
			Err: fmt.Errorf("file exceeds maximum size of %d bytes", maxBytes),
		}
	}

	src, err := fh.Open()
	if err != nil {
		return nil, &middleware.ErrBadRequest{Err: fmt.Errorf("open upload: %w", err)}
	}
	defer src.Close()

	detected, err := mimetype.DetectReader(src)
	if err != nil {
		return nil, &middleware.ErrBadRequest{Err: fmt.Errorf("sniff upload type: %w", err)}
	}
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return nil, &middleware.ErrBadRequest{Err: fmt.Errorf("rewind upload: %w", err)}
	}

	// Drop parameters such as "; charset=utf-8" so text uploads match the
	// bare media types in the allowlist.
	contentType, _, _ := strings.Cut(detected.String(), ";")
	if len(allowed) > 0 && !allowed[contentType] {
		return nil, &middleware.ErrBadRequest{
			Err: fmt.Errorf("unsupported file type: %s", contentType),
		}
	}

	if err := os.MkdirAll(storageDir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}

	name := uuid.NewString() + filepath.Ext(fh.Filename)
	destPath := filepath.Join(storageDir, name)

	dst, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create upload destination: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		os.Remove(destPath)
		return nil, fmt.Errorf("write upload: %w", err)
	}

	return &savedUpload{Path: destPath, ContentType: contentType}, nil
}
