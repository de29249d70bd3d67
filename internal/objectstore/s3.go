package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
)

type S3 struct {
	s3     *s3.S3
	bucket string
}

func NewS3(region, bucket string) (*S3, error) {
	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(region),
	})
	if err != nil {
		return nil, err
	}

	return &S3{
		s3:     s3.New(sess),
		bucket: bucket,
	}, nil
}

func (c *S3) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error) {
	if err := validKey(key); err != nil {
		return "", err
	}

	// PutObject needs a seekable body to sign the payload.
	rs, ok := body.(io.ReadSeeker)
	if !ok {
		data, err := io.ReadAll(body)
		if err != nil {
			return "", err
		}
		rs = bytes.NewReader(data)
		size = int64(len(data))
	}

	_, err := c.s3.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(c.bucket),
		Key:           aws.String(key),
		Body:          rs,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}

	return key, nil
}

func (c *S3) Delete(ctx context.Context, ref string) error {
	if err := validKey(ref); err != nil {
		return err
	}

	_, err := c.s3.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(ref),
	})
	if err != nil {
		return fmt.Errorf("delete object %s: %w", ref, err)
	}
	return nil
}

func (c *S3) URL(ref string) string {
	return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", c.bucket, ref)
}
