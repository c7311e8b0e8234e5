package persistent

import (
	"bytes"
	"context"
	"fmt"

	"github.com/andreyxaxa/Webhook-Pipeline/pkg/s3client"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const archiveContentType = "application/json"

type PayloadArchiveRepo struct {
	*s3client.S3Client
	bucket string
}

func NewPayloadArchiveRepo(s3c *s3client.S3Client, bucket string) *PayloadArchiveRepo {
	return &PayloadArchiveRepo{s3c, bucket}
}

func (r *PayloadArchiveRepo) Put(ctx context.Context, key string, data []byte) error {
	_, err := r.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(r.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(archiveContentType),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return fmt.Errorf("PayloadArchiveRepo - Put - r.Client.PutObject: %w", err)
	}

	return nil
}
