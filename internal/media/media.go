// Package media описывает внешнее хранилище изображений (аватары пользователей).
package media

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strings"
)

// Параметры загрузки аватара по умолчанию.
const (
	AvatarFolder = "avatars"
	AvatarWidth  = 150
	AvatarCrop   = "scale"
)

// ErrInvalidData данные изображения не являются data URI / base64.
var ErrInvalidData = errors.New("invalid image data")

// UploadOptions параметры загрузки: каталог и желаемая обработка.
type UploadOptions struct {
	Folder string
	Width  int
	Crop   string
}

// AvatarOptions параметры для аватаров пользователей.
func AvatarOptions() UploadOptions {
	return UploadOptions{Folder: AvatarFolder, Width: AvatarWidth, Crop: AvatarCrop}
}

// Image загруженное изображение.
type Image struct {
	PublicID  string
	SecureURL string
}

// Host внешнее хранилище изображений.
type Host interface {
	// Upload загружает изображение, переданное клиентом (data URI или base64).
	Upload(ctx context.Context, data string, opts UploadOptions) (Image, error)
	// Destroy удаляет изображение по его публичному идентификатору.
	Destroy(ctx context.Context, publicID string) error
}

// Payload декодированное изображение.
type Payload struct {
	ContentType string
	Extension   string
	Body        []byte
}

// Decode разбирает "data:<mime>;base64,<payload>" или голый base64.
func Decode(data string) (Payload, error) {
	const op = "media.Decode"
	data = strings.TrimSpace(data)
	if data == "" {
		return Payload{}, fmt.Errorf("%s: %w", op, ErrInvalidData)
	}

	contentType := ""
	encoded := data
	if strings.HasPrefix(data, "data:") {
		header, body, ok := strings.Cut(data[len("data:"):], ",")
		if !ok || !strings.HasSuffix(header, ";base64") {
			return Payload{}, fmt.Errorf("%s: %w", op, ErrInvalidData)
		}
		contentType = strings.TrimSuffix(header, ";base64")
		encoded = body
	}

	body, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return Payload{}, fmt.Errorf("%s: %w: %v", op, ErrInvalidData, err)
	}
	if len(body) == 0 {
		return Payload{}, fmt.Errorf("%s: %w", op, ErrInvalidData)
	}
	if contentType == "" {
		contentType = http.DetectContentType(body)
	}
	return Payload{
		ContentType: contentType,
		Extension:   extension(contentType),
		Body:        body,
	}, nil
}

func extension(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return "jpg"
	case "image/png":
		return "png"
	case "image/gif":
		return "gif"
	case "image/webp":
		return "webp"
	}
	if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
		return strings.TrimPrefix(exts[0], ".")
	}
	return "bin"
}
