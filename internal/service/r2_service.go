package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
)

// MediaStorage stores uploaded media and returns its public URL.
type MediaStorage interface {
	Upload(ctx context.Context, key string, file []byte, contentType string) (string, error)
}

type R2Options struct {
	AccountID  string
	AccessKey  string
	SecretKey  string
	BucketName string
	PublicURL  string
}

// R2Service uploads to Cloudflare R2 through its S3 compatible API.
type R2Service struct {
	client    *s3.Client
	bucket    string
	publicURL string
}

func NewR2Service(ctx context.Context, opts R2Options) (*R2Service, error) {
	if opts.AccountID == "" || opts.BucketName == "" {
		return nil, errors.New("R2 account id and bucket name are required")
	}

	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, "")),
		config.WithRegion("auto"),
	)
	if err != nil {
		return nil, fmt.Errorf("load R2 config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(fmt.Sprintf("https://%s.r2.cloudflarestorage.com", opts.AccountID))
	})

	return &R2Service{
		client:    client,
		bucket:    opts.BucketName,
		publicURL: strings.TrimRight(opts.PublicURL, "/"),
	}, nil
}

func (r *R2Service) Upload(ctx context.Context, key string, file []byte, contentType string) (string, error) {
	input := &s3.PutObjectInput{
		Bucket:      aws.String(r.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(file),
		ContentType: aws.String(contentType),
	}

	if _, err := r.client.PutObject(ctx, input); err != nil {
		log.Error().Err(err).Str("key", key).Msg("R2 upload failed")
		return "", err
	}

	return fmt.Sprintf("%s/%s", r.publicURL, key), nil
}
