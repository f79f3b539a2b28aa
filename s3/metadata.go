// Package s3 implements imgbed.MetadataService on an S3 bucket, storing one
// JSON object per reference.
package s3

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/dukerupert/imgbed"
)

// Compile-time check that MetadataService implements imgbed.MetadataService.
var _ imgbed.MetadataService = (*MetadataService)(nil)

// Client is the subset of *s3.Client used by MetadataService.
type Client interface {
	PutObject(ctx context.Context, params *awss3.PutObjectInput, optFns ...func(*awss3.Options)) (*awss3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *awss3.GetObjectInput, optFns ...func(*awss3.Options)) (*awss3.GetObjectOutput, error)
}

// MetadataService stores upload metadata as objects in a bucket.
type MetadataService struct {
	client Client
	bucket string
	prefix string
}

// NewMetadataService creates a metadata store writing under prefix in bucket.
func NewMetadataService(client Client, bucket, prefix string) *MetadataService {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &MetadataService{
		client: client,
		bucket: bucket,
		prefix: prefix,
	}
}

// key returns the object key holding the record for ref.
func (s *MetadataService) key(ref imgbed.Reference) string {
	return s.prefix + string(ref) + ".json"
}

// RecordMetadata writes rec unless an object for the reference exists.
func (s *MetadataService) RecordMetadata(ctx context.Context, rec *imgbed.MetadataRecord) error {
	if rec == nil || rec.Reference == "" {
		return imgbed.Invalid("Reference is required")
	}

	stored := *rec
	if stored.UploadedAt.IsZero() {
		stored.UploadedAt = time.Now().UTC()
	}
	body, err := json.Marshal(&stored)
	if err != nil {
		return imgbed.Internal("Failed to encode metadata", err)
	}

	_, err = s.client.PutObject(ctx, &awss3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.key(rec.Reference)),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
		ContentType:   aws.String("application/json"),
		IfNoneMatch:   aws.String("*"),
	})
	if err != nil {
		if isPreconditionFailed(err) {
			return nil
		}
		return imgbed.Internal("Failed to record metadata", fmt.Errorf("put %s: %w", s.key(rec.Reference), err))
	}

	return nil
}

// FindMetadata reads the record for ref.
func (s *MetadataService) FindMetadata(ctx context.Context, ref imgbed.Reference) (*imgbed.MetadataRecord, error) {
	out, err := s.client.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(ref)),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, imgbed.NotFound("Metadata not found")
		}
		return nil, imgbed.Internal("Failed to fetch metadata", fmt.Errorf("get %s: %w", s.key(ref), err))
	}
	defer out.Body.Close()

	body, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, imgbed.Internal("Failed to read metadata", err)
	}

	var rec imgbed.MetadataRecord
	if err := json.Unmarshal(body, &rec); err != nil {
		return nil, imgbed.Internal("Failed to decode metadata", err)
	}
	return &rec, nil
}

// isPreconditionFailed reports whether a conditional write lost to an
// existing object.
func isPreconditionFailed(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode() == "PreconditionFailed"
	}
	return false
}
