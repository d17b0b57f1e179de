package domain

import (
	"context"
	"io"
)

// MediaStore is the external object-store collaborator for file/image
// messages and group avatars. Failures are best-effort for callers: an
// upload error degrades to a message without an attachment.
type MediaStore interface {
	Upload(ctx context.Context, r io.Reader, size int64, filename, contentType string) (*FileInfo, error)
	Delete(ctx context.Context, publicID string) error
}

// Pagination metadata attached to list responses.
type Pagination struct {
	CurrentPage  int   `json:"currentPage"`
	TotalPages   int   `json:"totalPages"`
	TotalItems   int64 `json:"totalItems"`
	ItemsPerPage int   `json:"itemsPerPage"`
}

// NewPagination fill page metadata
func NewPagination(page, limit int, total int64) Pagination {
	pages := int((total + int64(limit) - 1) / int64(limit))
	return Pagination{
		CurrentPage:  page,
		TotalPages:   pages,
		TotalItems:   total,
		ItemsPerPage: limit,
	}
}
