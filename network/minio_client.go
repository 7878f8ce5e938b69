package network

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioClient archives collector record files to the beamline object
// store at end of run. Object-level access only; the bucket is
// provisioned outside this service.
type MinioClient struct {
	client *minio.Client
	bucket string
}

func NewMinioClient(endpoint, keyID, secretKey, bucket string, useSSL bool) (*MinioClient, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(keyID, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, err
	}
	return &MinioClient{client: client, bucket: bucket}, nil
}

// ArchiveRecord uploads a record file under records/<series>/.
func (c *MinioClient) ArchiveRecord(ctx context.Context, series int, filePath string) error {
	objectName := fmt.Sprintf("records/%d/%s", series, filepath.Base(filePath))
	_, err := c.client.FPutObject(ctx, c.bucket, objectName, filePath,
		minio.PutObjectOptions{ContentType: "text/plain"})
	if err != nil {
		return fmt.Errorf("cannot archive %s to %s: %v", filePath, objectName, err)
	}
	return nil
}

// StatRecord checks whether a record object exists, mostly for tests
// and for the post-run audit.
func (c *MinioClient) StatRecord(ctx context.Context, series int, fileName string) (minio.ObjectInfo, error) {
	objectName := fmt.Sprintf("records/%d/%s", series, fileName)
	return c.client.StatObject(ctx, c.bucket, objectName, minio.StatObjectOptions{})
}
