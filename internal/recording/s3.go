// SPDX-FileCopyrightText: 2026 Nextcloud GmbH and Nextcloud contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package recording

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Putter is the part of the S3 API the sink uses; *s3.Client satisfies it.
type S3Putter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Sink uploads recordings to bucket/prefix/<direction folder>/<file>.
type S3Sink struct {
	client S3Putter
	bucket string
	prefix string
	format Format
	logger *slog.Logger
}

func NewS3Sink(client S3Putter, bucket, prefix string, format Format) *S3Sink {
	return &S3Sink{
		client: client,
		bucket: bucket,
		prefix: prefix,
		format: format,
		logger: slog.With("component", "recording_s3", "bucket", bucket),
	}
}

// NewS3Client builds a client from the default AWS credential chain.
func NewS3Client(ctx context.Context, region string) (*s3.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}
	return s3.NewFromConfig(cfg), nil
}

func (s *S3Sink) Save(ctx context.Context, rec Record) (string, error) {
	data, ext, contentType, err := Encode(rec, s.format)
	if err != nil {
		return "", err
	}
	key := path.Join(s.prefix, DirName(rec.Direction), FileName(rec.Time, rec.Language, rec.Text, ext))

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("uploading %s: %w", key, err)
	}
	s.logger.Info("recording uploaded", "key", key, "bytes", len(data))
	return "s3://" + s.bucket + "/" + key, nil
}
