// Package s3 хранит изображения в S3-совместимом объектном хранилище (MinIO, AWS S3).
package s3

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/magabrotheeeer/storefront/internal/config"
	"github.com/magabrotheeeer/storefront/internal/media"
)

// ObjectAPI операции S3, используемые хранилищем.
type ObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Host реализует media.Host поверх S3.
type Host struct {
	client        ObjectAPI
	bucket        string
	publicBaseURL string
}

// New создаёт клиента S3 со статическими ключами и собственным endpoint.
func New(ctx context.Context, cfg config.S3) (*Host, error) {
	const op = "media.s3.New"
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	base := cfg.PublicBaseURL
	if base == "" {
		base = cfg.Endpoint
	}
	return NewWithClient(client, cfg.Bucket, base), nil
}

// NewWithClient создаёт Host с готовым клиентом.
func NewWithClient(client ObjectAPI, bucket, publicBaseURL string) *Host {
	return &Host{
		client:        client,
		bucket:        bucket,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
	}
}

// Upload кладёт изображение в <folder>/<uuid>.<ext>; ширина и режим обрезки
// сохраняются в метаданных объекта для обработчика изображений.
func (h *Host) Upload(ctx context.Context, data string, opts media.UploadOptions) (media.Image, error) {
	const op = "media.s3.Upload"
	payload, err := media.Decode(data)
	if err != nil {
		return media.Image{}, fmt.Errorf("%s: %w", op, err)
	}

	key := uuid.NewString() + "." + payload.Extension
	if opts.Folder != "" {
		key = opts.Folder + "/" + key
	}
	metadata := map[string]string{}
	if opts.Width > 0 {
		metadata["width"] = strconv.Itoa(opts.Width)
	}
	if opts.Crop != "" {
		metadata["crop"] = opts.Crop
	}

	_, err = h.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(h.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(payload.Body),
		ContentLength: aws.Int64(int64(len(payload.Body))),
		ContentType:   aws.String(payload.ContentType),
		Metadata:      metadata,
	})
	if err != nil {
		return media.Image{}, fmt.Errorf("%s: %w", op, err)
	}

	return media.Image{
		PublicID:  key,
		SecureURL: h.publicBaseURL + "/" + h.bucket + "/" + key,
	}, nil
}

// Destroy удаляет объект. Пустой идентификатор игнорируется.
func (h *Host) Destroy(ctx context.Context, publicID string) error {
	const op = "media.s3.Destroy"
	if publicID == "" {
		return nil
	}
	_, err := h.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(h.bucket),
		Key:    aws.String(publicID),
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
