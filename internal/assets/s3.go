package assets

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
)

// S3Store writes assets to a bucket under the same "uploads/" keys that
// LocalStore uses for file names.
type S3Store struct {
	Client   s3iface.S3API
	Bucket   string
	MaxBytes int64
}

// NewS3Session builds a session from the default credential chain. A
// non-empty endpoint switches to path-style addressing (MinIO and friends).
func NewS3Session(region, endpoint string) (*session.Session, error) {
	cfg := aws.NewConfig().WithRegion(region)
	if endpoint != "" {
		cfg = cfg.WithEndpoint(endpoint).WithS3ForcePathStyle(true)
	}
	return session.NewSession(cfg)
}

func NewS3Store(sess *session.Session, bucket string, maxBytes int64) *S3Store {
	return &S3Store{Client: s3.New(sess), Bucket: bucket, MaxBytes: maxBytes}
}

func (s *S3Store) Put(ctx context.Context, up Upload) (string, error) {
	p, err := prepare(up, s.MaxBytes)
	if err != nil {
		return "", err
	}

	key := Prefix + p.name
	_, err = s.Client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.Bucket),
		Key:         aws.String(key),
		Body:        reader(p),
		ContentType: aws.String(p.contentType),
	})
	if err != nil {
		return "", err
	}
	return key, nil
}

func (s *S3Store) Remove(ctx context.Context, ref string) error {
	if nameOf(ref) == "" {
		return nil
	}
	_, err := s.Client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(ref),
	})
	var aerr awserr.Error
	if errors.As(err, &aerr) && aerr.Code() == s3.ErrCodeNoSuchKey {
		return nil
	}
	return err
}
