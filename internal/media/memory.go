package media

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// MemoryHost хранит изображения в памяти процесса.
// Используется, когда объектное хранилище не настроено.
type MemoryHost struct {
	mu     sync.Mutex
	images map[string]Payload
}

func NewMemoryHost() *MemoryHost {
	return &MemoryHost{images: make(map[string]Payload)}
}

func (h *MemoryHost) Upload(ctx context.Context, data string, opts UploadOptions) (Image, error) {
	const op = "media.MemoryHost.Upload"
	if err := ctx.Err(); err != nil {
		return Image{}, fmt.Errorf("%s: %w", op, err)
	}
	p, err := Decode(data)
	if err != nil {
		return Image{}, fmt.Errorf("%s: %w", op, err)
	}
	id := opts.Folder + "/" + uuid.NewString()

	h.mu.Lock()
	h.images[id] = p
	h.mu.Unlock()

	return Image{PublicID: id, SecureURL: "memory://" + id + "." + p.Extension}, nil
}

func (h *MemoryHost) Destroy(_ context.Context, publicID string) error {
	h.mu.Lock()
	delete(h.images, publicID)
	h.mu.Unlock()
	return nil
}

// Len количество хранимых изображений.
func (h *MemoryHost) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.images)
}
