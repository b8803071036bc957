// Package s3store writes tile pyramids to an S3 compatible bucket (AWS S3 or
// MinIO).
package s3store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/yungbote/indoormap-backend/internal/platform/logger"
	"github.com/yungbote/indoormap-backend/internal/platform/tilestore"
)

type Config struct {
	Bucket    string
	Region    string
	Endpoint  string // optional, e.g. http://minio:9000
	PathStyle bool
	// Static credentials; the default AWS chain is used when empty.
	AccessKeyID     string
	SecretAccessKey string
	// PublicBaseURL overrides the URL objects are served from.
	PublicBaseURL string
}

type Store struct {
	log    *logger.Logger
	client *s3.Client
	cfg    Config
}

var _ tilestore.Store = (*Store)(nil)

func New(ctx context.Context, log *logger.Logger, cfg Config, optFns ...func(*s3.Options)) (*Store, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("missing env var TILE_S3_BUCKET")
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			// S3 compatible servers do not all accept trailing checksums.
			o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
			o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
		}
		for _, fn := range optFns {
			fn(o)
		}
	})
	storeLog := log.With("service", "S3TileStore", "bucket", cfg.Bucket)
	storeLog.Info("Tile storage initialized", "mode", "s3", "endpoint", cfg.Endpoint, "path_style", cfg.PathStyle)
	return &Store{log: storeLog, client: client, cfg: cfg}, nil
}

func (s *Store) Put(ctx context.Context, key string, r io.Reader, contentType string) error {
	// Signing needs a seekable body; tiles are small enough to buffer.
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if contentType == "" {
		contentType = tilestore.ContentTypeForKey(key)
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.Bucket),
		Key:         aws.String(tilestore.CleanKey(key)),
		Body:        bytes.NewReader(b),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

func (s *Store) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(tilestore.CleanKey(key)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, tilestore.ErrNotFound
		}
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return out.Body, nil
}

func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	prefix = tilestore.CleanKey(prefix)
	var keys []string
	var token *string
	for {
		out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.cfg.Bucket),
			Prefix:            aws.String(prefix),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", prefix, err)
		}
		for _, obj := range out.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
		if aws.ToBool(out.IsTruncated) && out.NextContinuationToken != nil {
			token = out.NextContinuationToken
			continue
		}
		break
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(tilestore.CleanKey(key)),
	})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

func (s *Store) DeletePrefix(ctx context.Context, prefix string) error {
	keys, err := s.List(ctx, prefix)
	if err != nil {
		return err
	}
	for _, k := range keys {
		if err := s.Delete(ctx, k); err != nil {
			s.log.Warn("delete tile failed", "key", k, "error", err)
		}
	}
	return nil
}

func (s *Store) PublicURL(key string) string {
	key = tilestore.CleanKey(key)
	if base := strings.TrimSpace(s.cfg.PublicBaseURL); base != "" {
		return tilestore.JoinURL(base, key)
	}
	if s.cfg.Endpoint != "" {
		return tilestore.JoinURL(strings.TrimRight(s.cfg.Endpoint, "/")+"/"+s.cfg.Bucket, key)
	}
	return tilestore.JoinURL(fmt.Sprintf("https://%s.s3.%s.amazonaws.com", s.cfg.Bucket, s.cfg.Region), key)
}

func isNotFound(err error) bool {
	var nsk *s3types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nf *s3types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var status interface{ HTTPStatusCode() int }
	return errors.As(err, &status) && status.HTTPStatusCode() == 404
}
