package imagefile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"vision-inspector/internal/domain/entity"
	"vision-inspector/internal/domain/port"
	"vision-inspector/internal/vision"
)

var extensions = map[string]struct{}{
	".jpg": {}, ".jpeg": {}, ".png": {}, ".gif": {},
	".bmp": {}, ".tif": {}, ".tiff": {}, ".webp": {},
}

// Supported сообщает, умеем ли мы декодировать файл с таким расширением
func Supported(name string) bool {
	_, ok := extensions[strings.ToLower(filepath.Ext(name))]
	return ok
}

// Load декодирует изображение в RGB-кадр с учётом EXIF-ориентации
func Load(path string) (*entity.Frame, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("image %s: %w", path, entity.ErrNotFound)
		}
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return vision.FrameFromImage(img), nil
}

// Loader загружает эталонные изображения из каталога
type Loader struct {
	root string
}

// NewLoader создаёт загрузчик эталонов с корнем root
func NewLoader(root string) *Loader {
	return &Loader{root: root}
}

// LoadReference загружает эталон по ссылке из программы. Ссылка задаётся относительно корня.
func (l *Loader) LoadReference(ctx context.Context, handle string) (*entity.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := l.resolve(handle)
	if err != nil {
		return nil, err
	}
	if !Supported(path) {
		return nil, fmt.Errorf("%w: unsupported image format %q", entity.ErrInvalidReference, filepath.Ext(path))
	}
	frame, err := Load(path)
	if err != nil {
		if errors.Is(err, entity.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", entity.ErrInvalidReference, err)
	}
	return frame, nil
}

func (l *Loader) resolve(handle string) (string, error) {
	if handle == "" {
		return "", fmt.Errorf("%w: empty reference", entity.ErrInvalidReference)
	}
	if filepath.IsAbs(handle) {
		return handle, nil
	}
	clean := filepath.Clean(handle)
	if clean == ".." || strings.HasPrefix(clean, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("%w: reference %q escapes image root", entity.ErrInvalidReference, handle)
	}
	return filepath.Join(l.root, clean), nil
}

var _ port.ReferenceLoader = (*Loader)(nil)
