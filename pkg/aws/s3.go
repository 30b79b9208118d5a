package aws

import (
	"bytes"
	"context"
	"fmt"
	"time"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ReportUploader stores JSON reports in a bucket and hands back a presigned
// download URL.
type ReportUploader struct {
	client    *s3.Client
	presigner *s3.PresignClient
	bucket    string
	expiry    time.Duration
}

// NewS3Client creates a path-style S3 client so LocalStack buckets resolve.
func NewS3Client(cfg sdkaws.Config) *s3.Client {
	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = true
		if ep := Endpoint("AWS_S3_ENDPOINT"); ep != "" {
			o.BaseEndpoint = sdkaws.String(ep)
		}
	})
}

func NewReportUploader(client *s3.Client, bucket string, expiry time.Duration) *ReportUploader {
	if expiry <= 0 {
		expiry = time.Hour
	}
	return &ReportUploader{
		client:    client,
		presigner: s3.NewPresignClient(client),
		bucket:    bucket,
		expiry:    expiry,
	}
}

// Upload writes body under key and returns a presigned GET URL for it.
func (u *ReportUploader) Upload(ctx context.Context, key string, body []byte) (string, error) {
	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      sdkaws.String(u.bucket),
		Key:         sdkaws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: sdkaws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to put report %s: %w", key, err)
	}

	presigned, err := u.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: sdkaws.String(u.bucket),
		Key:    sdkaws.String(key),
	}, func(o *s3.PresignOptions) {
		o.Expires = u.expiry
	})
	if err != nil {
		return "", fmt.Errorf("failed to presign report %s: %w", key, err)
	}
	return presigned.URL, nil
}
