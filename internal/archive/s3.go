package archive

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type putObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type S3 struct {
	Client putObjectAPI
	Bucket string
	Prefix string
}

type S3Config struct {
	Region string
	Bucket string
	Prefix string
}

func NewS3(ctx context.Context, cfg S3Config) (*S3, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, err
	}
	return &S3{
		Client: s3.NewFromConfig(awsCfg),
		Bucket: cfg.Bucket,
		Prefix: cfg.Prefix,
	}, nil
}

func (s *S3) Put(ctx context.Context, r io.Reader, in PutInput) (PutResult, error) {
	key := objectKey(s.Prefix, in)
	contentType := in.ContentType
	if contentType == "" {
		contentType = "application/json"
	}

	_, err := s.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &s.Bucket,
		Key:         &key,
		Body:        r,
		ContentType: &contentType,
	})
	if err != nil {
		return PutResult{}, fmt.Errorf("archive put %s: %w", key, err)
	}
	return PutResult{Key: key, Location: "s3://" + s.Bucket + "/" + key}, nil
}

func (s *S3) String() string { return fmt.Sprintf("s3(%s/%s)", s.Bucket, s.Prefix) }
