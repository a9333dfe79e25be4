package snapshot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	log "github.com/sirupsen/logrus"
)

// Uploader mirrors archive files to an S3 bucket. Credentials and region
// come from the usual AWS environment.
type Uploader struct {
	bucket   string
	uploader *s3manager.Uploader
}

func NewUploader(bucket string) (*Uploader, error) {
	sess, err := session.NewSession()
	if err != nil {
		return nil, fmt.Errorf("snapshot: aws session: %w", err)
	}
	return &Uploader{
		bucket:   bucket,
		uploader: s3manager.NewUploader(sess),
	}, nil
}

// Upload pushes one archive file and returns its S3 location.
func (u *Uploader) Upload(ctx context.Context, path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	out, err := u.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(filepath.Base(path)),
		Body:   file,
	})
	if err != nil {
		return "", fmt.Errorf("snapshot: upload %s: %w", path, err)
	}

	log.WithFields(log.Fields{
		"bucket": u.bucket,
		"key":    filepath.Base(path),
	}).Info("uploaded archive")
	return out.Location, nil
}
