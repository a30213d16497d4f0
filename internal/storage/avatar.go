// Package storage はアバター画像のオブジェクトストレージ(S3互換)を提供する。
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/hitoshi/memoria/internal/metrics"
	"github.com/hitoshi/memoria/internal/model"
)

// DefaultMaxAvatarBytes はアバター画像の最大サイズ(5MiB)。
const DefaultMaxAvatarBytes int64 = 5 * 1024 * 1024

// allowedTypes は許可するMIMEタイプと既定の拡張子。
var allowedTypes = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/webp": "webp",
}

var allowedExtensions = map[string]bool{
	"jpg":  true,
	"jpeg": true,
	"png":  true,
	"webp": true,
}

// ObjectAPI はAvatarStoreが使うS3クライアントの操作。
type ObjectAPI interface {
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
	PutBucketPolicy(ctx context.Context, params *s3.PutBucketPolicyInput, optFns ...func(*s3.Options)) (*s3.PutBucketPolicyOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// ClientConfig はS3クライアントの接続設定。
type ClientConfig struct {
	Region       string
	Endpoint     string // MinIOなどS3互換エンドポイント。空の場合はAWS
	UsePathStyle bool
}

// NewS3Client は既定の認証情報チェーンでS3クライアントを生成する。
func NewS3Client(ctx context.Context, cfg ClientConfig) (*s3.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS SDK config: %w", err)
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	}), nil
}

// AvatarStore はユーザーごとのアバター画像を保存する。
type AvatarStore struct {
	client     ObjectAPI
	bucket     string
	publicBase string
	maxBytes   int64
	metrics    metrics.MetricsCollector
}

// NewAvatarStore はAvatarStoreの新しいインスタンスを生成する。
// maxBytesが0以下の場合はDefaultMaxAvatarBytesを使う。
func NewAvatarStore(client ObjectAPI, bucket, publicBase string, maxBytes int64, collector metrics.MetricsCollector) *AvatarStore {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxAvatarBytes
	}
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &AvatarStore{
		client:     client,
		bucket:     bucket,
		publicBase: strings.TrimRight(publicBase, "/"),
		maxBytes:   maxBytes,
		metrics:    collector,
	}
}

// MaxBytes はアップロード可能な最大サイズを返す。
func (s *AvatarStore) MaxBytes() int64 {
	return s.maxBytes
}

// EnsureBucket はバケットが存在しなければ作成し、公開読み取りポリシーを設定する。
func (s *AvatarStore) EnsureBucket(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err == nil {
		return nil
	}
	var notFound *types.NotFound
	var noSuchBucket *types.NoSuchBucket
	if !errors.As(err, &notFound) && !errors.As(err, &noSuchBucket) {
		return fmt.Errorf("failed to check bucket %s: %w", s.bucket, err)
	}

	if _, err := s.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(s.bucket)}); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", s.bucket, err)
	}
	policy, err := publicReadPolicy(s.bucket)
	if err != nil {
		return err
	}
	if _, err := s.client.PutBucketPolicy(ctx, &s3.PutBucketPolicyInput{
		Bucket: aws.String(s.bucket),
		Policy: aws.String(policy),
	}); err != nil {
		return fmt.Errorf("failed to set bucket policy: %w", err)
	}

	slog.Info("storage bucket created", slog.String("bucket", s.bucket))
	return nil
}

func publicReadPolicy(bucket string) (string, error) {
	doc := map[string]any{
		"Version": "2012-10-17",
		"Statement": []map[string]any{{
			"Effect":    "Allow",
			"Principal": "*",
			"Action":    []string{"s3:GetObject"},
			"Resource":  []string{fmt.Sprintf("arn:aws:s3:::%s/*", bucket)},
		}},
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("failed to encode bucket policy: %w", err)
	}
	return string(b), nil
}

// ValidateAvatar はアップロード前のサイズとMIMEタイプを検証する。
func (s *AvatarStore) ValidateAvatar(contentType string, size int64) error {
	if size > s.maxBytes {
		return model.NewFileTooLargeError(s.maxBytes)
	}
	if _, ok := allowedTypes[contentType]; !ok {
		return model.NewUnsupportedMediaTypeError(contentType)
	}
	return nil
}

// AvatarKey はユーザーのアバター画像のオブジェクトキーを返す。
// 拡張子はファイル名から取り、使えない場合はMIMEタイプから決める。
func AvatarKey(userID, filename, contentType string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	if !allowedExtensions[ext] {
		ext = allowedTypes[contentType]
	}
	return fmt.Sprintf("%s/profile.%s", userID, ext)
}

// UploadAvatar はアバター画像を保存し、公開URLを返す。同じユーザーの既存画像は上書きする。
func (s *AvatarStore) UploadAvatar(ctx context.Context, userID, filename, contentType string, size int64, body io.Reader) (string, error) {
	if err := s.ValidateAvatar(contentType, size); err != nil {
		s.metrics.RecordAvatarUpload(metrics.ResultFailure)
		return "", err
	}

	key := AvatarKey(userID, filename, contentType)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          io.LimitReader(body, s.maxBytes),
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType),
		CacheControl:  aws.String("max-age=3600"),
	})
	if err != nil {
		s.metrics.RecordAvatarUpload(metrics.ResultFailure)
		return "", fmt.Errorf("failed to upload avatar: %w", err)
	}

	s.metrics.RecordAvatarUpload(metrics.ResultSuccess)
	slog.Info("avatar uploaded", slog.String("user_id", userID), slog.String("key", key))
	return s.PublicURL(key), nil
}

// PublicURL はオブジェクトキーの公開URLを返す。
func (s *AvatarStore) PublicURL(key string) string {
	return fmt.Sprintf("%s/%s/%s", s.publicBase, s.bucket, key)
}
