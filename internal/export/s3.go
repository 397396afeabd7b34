package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Options carries optional region and static credentials. Empty fields fall
// back to the AWS default configuration chain.
type S3Options struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
}

type uploadFunc func(ctx context.Context, input *s3.PutObjectInput) error

// S3 uploads the report as a single object.
type S3 struct {
	bucket string
	key    string
	opts   S3Options
	upload uploadFunc
}

func NewS3(bucket, key string, opts S3Options) *S3 {
	d := &S3{bucket: bucket, key: key, opts: opts}
	d.upload = d.managerUpload
	return d
}

// IsS3 reports whether dest is an s3:// URL.
func IsS3(dest string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(dest)), s3Scheme)
}

// ParseS3URL splits s3://bucket/key. An empty key or one ending in "/" gets
// processes.txt appended.
func ParseS3URL(dest string) (bucket, key string, err error) {
	dest = strings.TrimSpace(dest)
	if !IsS3(dest) {
		return "", "", fmt.Errorf("not an s3 url: %q", dest)
	}
	rest := dest[len(s3Scheme):]
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", fmt.Errorf("%w: s3 bucket is required", ErrEmptyDestination)
	}
	if key == "" || strings.HasSuffix(key, "/") {
		key += DefaultFileName
	}
	return bucket, key, nil
}

func (d *S3) Write(ctx context.Context, data []byte) error {
	if d.bucket == "" {
		return errors.New("s3 bucket is required")
	}
	err := d.upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(d.key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("s3 upload to %s: %w", d.String(), err)
	}
	return nil
}

func (d *S3) String() string {
	return s3Scheme + d.bucket + "/" + d.key
}

func (d *S3) managerUpload(ctx context.Context, input *s3.PutObjectInput) error {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if d.opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(d.opts.Region))
	}
	if d.opts.AccessKeyID != "" && d.opts.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(d.opts.AccessKeyID, d.opts.SecretAccessKey, d.opts.SessionToken),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return fmt.Errorf("load aws config: %w", err)
	}

	uploader := manager.NewUploader(s3.NewFromConfig(cfg))
	_, err = uploader.Upload(ctx, input)
	return err
}
