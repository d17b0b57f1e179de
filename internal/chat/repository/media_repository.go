package repository

import (
	"context"
	"fmt"
	"io"
	"path"
	"time"

	"realtime_chat_service/internal/chat/domain"
	"realtime_chat_service/pkg/database"

	"github.com/google/uuid"
)

// presignExpiry keeps attachment URLs valid long enough for clients to
// re-fetch after reconnects.
const presignExpiry = 7 * 24 * time.Hour

// minioMediaStore implements domain.MediaStore on MinIO. The object key is
// the public id handed back to callers for later deletion.
type minioMediaStore struct {
	client *database.MinIOClient
}

// NewMinioMediaStore create a MediaStore
func NewMinioMediaStore(client *database.MinIOClient) domain.MediaStore {
	return &minioMediaStore{client: client}
}

func (m *minioMediaStore) Upload(ctx context.Context, r io.Reader, size int64, filename, contentType string) (*domain.FileInfo, error) {
	objectName := fmt.Sprintf("attachments/%s%s", uuid.New().String(), path.Ext(filename))

	if err := m.client.PutObject(ctx, objectName, r, size, contentType); err != nil {
		return nil, fmt.Errorf("media upload failed: %w", err)
	}

	url, err := m.client.PresignGetURL(ctx, objectName, presignExpiry)
	if err != nil {
		return nil, fmt.Errorf("media presign failed: %w", err)
	}

	return &domain.FileInfo{
		URL:      url,
		PublicID: objectName,
		Filename: filename,
		Size:     size,
	}, nil
}

func (m *minioMediaStore) Delete(ctx context.Context, publicID string) error {
	return m.client.RemoveObject(ctx, publicID)
}
