// Package aws defines functions used to interact with the AWS API
package aws

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/spf13/viper"
)

// Objects above this size go through the multipart manager
const minMultipartSize = 12 << 20

type S3Client struct {
	C         *s3.Client
	BucketVal *string
	BaseURL   string
}

func NewS3() (*S3Client, error) {
	cfg, err := config.LoadDefaultConfig(context.TODO(),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			viper.GetString("aws.access_key"),
			viper.GetString("aws.secret_access_key"),
			"",
		)),
	)
	if err != nil {
		return nil, err
	}

	bucket := aws.String(viper.GetString("aws.bucket"))

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.Region = viper.GetString("aws.region")

		if v := viper.GetString("aws.endpoint"); v != "" {
			o.BaseEndpoint = aws.String(v)
		}
	})

	_, err = client.HeadBucket(context.TODO(), &s3.HeadBucketInput{
		Bucket: bucket,
	})
	if err != nil {
		var apiErr smithy.APIError

		if errors.As(err, &apiErr) {
			if apiErr.ErrorCode() == "NotFound" {
				return nil, fmt.Errorf("bucket '%s' does not exist", viper.GetString("aws.bucket"))
			}
		}

		return nil, fmt.Errorf("failed to check if bucket exists, %w", err)
	}

	return &S3Client{
		C:         client,
		BucketVal: bucket,
		BaseURL:   viper.GetString("aws.public_url"),
	}, nil
}

// Put uploads one object with a public-read ACL. Larger bodies go
// through the multipart manager so a slow link doesn't hold a single
// connection for the whole object.
func (s *S3Client) Put(ctx context.Context, key string, body io.Reader, size int64, contentType, contentDisposition string) error {
	input := &s3.PutObjectInput{
		Bucket:        s.BucketVal,
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType),
		ACL:           types.ObjectCannedACLPublicRead,
	}

	if contentDisposition != "" {
		input.ContentDisposition = aws.String(contentDisposition)
	}

	var err error

	if size > minMultipartSize {
		uploader := manager.NewUploader(s.C, func(u *manager.Uploader) {
			u.Concurrency = 5
			u.PartSize = 6 << 20
		})

		_, err = uploader.Upload(ctx, input)
	} else {
		_, err = s.C.PutObject(ctx, input)
	}

	if err != nil {
		return fmt.Errorf("failed to upload object to s3, %w", err)
	}

	return nil
}

func (s *S3Client) Delete(ctx context.Context, key string) error {
	_, err := s.C.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: s.BucketVal,
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object from s3, %w", err)
	}

	return nil
}

// PublicURL builds the publicly fetchable URL for a stored key
func (s *S3Client) PublicURL(key string) string {
	return fmt.Sprintf("%s/%s", s.BaseURL, key)
}

func (s *S3Client) Bucket() string {
	return *s.BucketVal
}
