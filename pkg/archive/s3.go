package archive

import (
	"context"
	"fmt"
	"os"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config - S3 совместимое хранилище (AWS, MinIO, Hetzner)
type S3Config struct {
	Bucket string `yaml:"bucket"`
	Prefix string `yaml:"prefix"`
	Region string `yaml:"region"`

	// Endpoint - адрес не-AWS хранилища, пусто = AWS
	Endpoint string `yaml:"endpoint"`

	// AccessKey/SecretKey - статические ключи. Пусто = стандартная цепочка AWS
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`

	// ForcePathStyle - адресация bucket в пути (нужна MinIO)
	ForcePathStyle bool `yaml:"force_path_style"`
}

// S3Archiver загружает файлы в bucket через s3 manager
type S3Archiver struct {
	uploader *manager.Uploader
	config   S3Config
	now      func() time.Time
}

// NewS3Archiver создает клиента S3 по конфигурации
func NewS3Archiver(ctx context.Context, cfg S3Config) (*S3Archiver, error) {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})

	return NewS3ArchiverWithClient(client, cfg), nil
}

// NewS3ArchiverWithClient использует готовый клиент
func NewS3ArchiverWithClient(client manager.UploadAPIClient, cfg S3Config) *S3Archiver {
	return &S3Archiver{
		uploader: manager.NewUploader(client),
		config:   cfg,
		now:      time.Now,
	}
}

// Key возвращает ключ объекта для файла таблицы
func (a *S3Archiver) Key(filePath, table string) string {
	return path.Join(a.config.Prefix, objectName(filePath, table, a.now()))
}

// Archive загружает файл и возвращает s3://bucket/key
func (a *S3Archiver) Archive(ctx context.Context, filePath, table string) (string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", filePath, err)
	}
	defer f.Close()

	key := a.Key(filePath, table)
	_, err = a.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.config.Bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(contentType(filePath)),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to s3://%s/%s: %w", a.config.Bucket, key, err)
	}

	return fmt.Sprintf("s3://%s/%s", a.config.Bucket, key), nil
}
