package staging

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type S3Config struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	Bucket          string
	Prefix          string
}

// S3 stages uploads as objects under Prefix in Bucket.
type S3 struct {
	client *s3.Client
	cfg    S3Config
	log    *zap.Logger
}

func NewS3(ctx context.Context, cfg S3Config, log *zap.Logger) (*S3, error) {
	if log == nil {
		log = zap.NewNop()
	}
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3{client: client, cfg: cfg, log: log}, nil
}

func (s *S3) Stage(ctx context.Context, filename string, content []byte, contentType string) (Handle, error) {
	key := s.cfg.Prefix + uuid.NewString() + safeExt(filename)
	in := &s3.PutObjectInput{
		Bucket:        aws.String(s.cfg.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(content),
		ContentLength: aws.Int64(int64(len(content))),
	}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}
	if _, err := s.client.PutObject(ctx, in); err != nil {
		s.log.Error("staging.s3.put_error", zap.String("key", key), zap.Error(err))
		return nil, fmt.Errorf("put object %s: %w", key, err)
	}
	s.log.Debug("staging.s3.stored", zap.String("key", key), zap.Int("bytes", len(content)))
	return &s3Handle{s: s, key: key}, nil
}

type s3Handle struct {
	s   *S3
	key string
}

func (h *s3Handle) Location() string { return "s3://" + h.s.cfg.Bucket + "/" + h.key }

func (h *s3Handle) Read(ctx context.Context) ([]byte, error) {
	out, err := h.s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(h.s.cfg.Bucket),
		Key:    aws.String(h.key),
	})
	if err != nil {
		return nil, fmt.Errorf("get object %s: %w", h.key, err)
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

func (h *s3Handle) Remove(ctx context.Context) error {
	_, err := h.s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(h.s.cfg.Bucket),
		Key:    aws.String(h.key),
	})
	if err != nil {
		h.s.log.Warn("staging.s3.remove_error", zap.String("key", h.key), zap.Error(err))
		return fmt.Errorf("delete object %s: %w", h.key, err)
	}
	return nil
}
