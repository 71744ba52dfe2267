package gcsuploader

import (
	"context"
)

// StorageService is the storage surface the ingestion pipeline and the CLI
// depend on. Tests replace it with a mock.
type StorageService interface {
	// FetchFromGCS downloads the object named by a gs:// URI.
	FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error)

	// UploadBytes writes data to a gs:// URI with the given content type.
	UploadBytes(ctx context.Context, gcsURI, contentType string, data []byte) error

	// ExtractFilenameFromGCSURI returns the last path element of a gs:// URI.
	ExtractFilenameFromGCSURI(uri string) string
}

// GCSStorageService is the concrete implementation of StorageService
// that interacts with Google Cloud Storage.
type GCSStorageService struct{}

var _ StorageService = (*GCSStorageService)(nil)

// NewGCSStorageService creates a new instance of GCSStorageService.
func NewGCSStorageService() *GCSStorageService {
	return &GCSStorageService{}
}

func (s *GCSStorageService) FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error) {
	return FetchFromGCS(ctx, gcsURI)
}

func (s *GCSStorageService) UploadBytes(ctx context.Context, gcsURI, contentType string, data []byte) error {
	return UploadBytes(ctx, gcsURI, contentType, data)
}

func (s *GCSStorageService) ExtractFilenameFromGCSURI(uri string) string {
	return ExtractFilenameFromGCSURI(uri)
}
