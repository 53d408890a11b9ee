// Package archive keeps a copy of every issued certificate PDF in S3.
package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

var ErrNoBucket = errors.New("archive bucket is not configured")

type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Archive stores PDFs under <prefix><certificate number>.pdf.
type S3Archive struct {
	client s3API
	bucket string
	prefix string
	logger *zap.Logger
}

func NewS3Archive(ctx context.Context, bucket, prefix, region string, logger *zap.Logger) (*S3Archive, error) {
	if bucket == "" {
		return nil, ErrNoBucket
	}
	opts := []func(*awsconfig.LoadOptions) error{}
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return newS3Archive(s3.NewFromConfig(cfg), bucket, prefix, logger), nil
}

func newS3Archive(client s3API, bucket, prefix string, logger *zap.Logger) *S3Archive {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &S3Archive{client: client, bucket: bucket, prefix: prefix, logger: logger.Named("archive")}
}

// Key returns the object key used for a certificate number.
func (a *S3Archive) Key(number string) string {
	name := strings.NewReplacer("/", "_", "\\", "_").Replace(number) + ".pdf"
	if a.prefix == "" {
		return name
	}
	return path.Join(a.prefix, name)
}

func (a *S3Archive) Store(ctx context.Context, number string, pdf []byte) (string, error) {
	key := a.Key(number)
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:             aws.String(a.bucket),
		Key:                aws.String(key),
		Body:               bytes.NewReader(pdf),
		ContentType:        aws.String("application/pdf"),
		ContentLength:      aws.Int64(int64(len(pdf))),
		ContentDisposition: aws.String(fmt.Sprintf("attachment; filename=%q", "certificate-"+number+".pdf")),
		Metadata:           map[string]string{"certificate-number": number},
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	a.logger.Info("Certificate archived",
		zap.String("certificate_number", number),
		zap.String("bucket", a.bucket),
		zap.String("key", key),
		zap.Int("size", len(pdf)))
	return key, nil
}

func (a *S3Archive) Remove(ctx context.Context, number string) error {
	key := a.Key(number)
	if _, err := a.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	}); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	a.logger.Info("Archived certificate removed", zap.String("certificate_number", number), zap.String("key", key))
	return nil
}
