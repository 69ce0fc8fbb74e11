package asset

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	dErrors "docverify/pkg/domain-errors"
	"docverify/pkg/platform/sentinel"
)

// S3API is the subset of *s3.Client the loader needs.
type S3API interface {
	manager.DownloadAPIClient
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// S3Loader downloads objects referenced as s3://bucket/key.
type S3Loader struct {
	client     S3API
	downloader *manager.Downloader
	maxBytes   int64
}

func NewS3Loader(client S3API, maxBytes int64) *S3Loader {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &S3Loader{
		client: client,
		downloader: manager.NewDownloader(client, func(d *manager.Downloader) {
			d.Concurrency = 1
			d.PartSize = maxBytes
		}),
		maxBytes: maxBytes,
	}
}

func (l *S3Loader) Load(ctx context.Context, ref string) ([]byte, error) {
	bucket, key, err := ParseS3Ref(ref)
	if err != nil {
		return nil, err
	}

	head, err := l.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)})
	if err != nil {
		return nil, classifyS3Error(err)
	}
	if size := aws.ToInt64(head.ContentLength); size > l.maxBytes {
		return nil, dErrors.Wrap(sentinel.ErrTooLarge, dErrors.CodeInvalidInput,
			fmt.Sprintf("image exceeds %d bytes", l.maxBytes))
	}

	buf := manager.NewWriteAtBuffer(make([]byte, 0, aws.ToInt64(head.ContentLength)))
	if _, err := l.downloader.Download(ctx, buf, &s3.GetObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)}); err != nil {
		return nil, classifyS3Error(err)
	}
	return buf.Bytes(), nil
}

func classifyS3Error(err error) error {
	var noKey *types.NoSuchKey
	var notFound *types.NotFound
	var noBucket *types.NoSuchBucket
	if errors.As(err, &noKey) || errors.As(err, &notFound) || errors.As(err, &noBucket) {
		return errImageNotFound(sentinel.ErrNotFound)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "image download interrupted")
	}
	return dErrors.Wrap(errors.Join(sentinel.ErrUnavailable, err), dErrors.CodeUnavailable, "object storage unavailable")
}
