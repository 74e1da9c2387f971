package file

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"path"
	"time"

	"github.com/cmlabs-hris/attendance-backend-go/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-backend-go/internal/pkg/storage"
	"github.com/cmlabs-hris/attendance-backend-go/internal/pkg/timeutil"
	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // registers WebP decoding
)

const (
	KindCheckIn  = "check_in"
	KindCheckOut = "check_out"

	// Longest edge of a stored attendance photo
	maxPhotoDimension = 1280
	jpegQuality       = 85
)

// StoredPhoto identifies an uploaded attendance photo
type StoredPhoto struct {
	Path string
	URL  string
}

type FileService interface {
	// UploadAttendancePhoto normalises an attendance photo and stores it
	UploadAttendancePhoto(ctx context.Context, userID string, day time.Time, kind string, file io.Reader) (StoredPhoto, error)

	// DeleteFile removes a stored file
	DeleteFile(ctx context.Context, path string) error
}

type fileServiceImpl struct {
	storage storage.FileStorage
	maxSize int64
}

// UploadAttendancePhoto decodes JPEG, PNG, GIF or WebP input, applies the
// EXIF orientation, downsizes to maxPhotoDimension and stores it as JPEG under
// attendance/<date>/<userID>-<kind>-<uuid>.jpg
func (s *fileServiceImpl) UploadAttendancePhoto(ctx context.Context, userID string, day time.Time, kind string, file io.Reader) (StoredPhoto, error) {
	if file == nil {
		return StoredPhoto{}, attendance.ErrPhotoRequired
	}

	limit := s.maxSize
	if limit <= 0 {
		limit = 5 << 20
	}
	buffer, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		return StoredPhoto{}, fmt.Errorf("failed to read image: %w", err)
	}
	if len(buffer) == 0 {
		return StoredPhoto{}, attendance.ErrPhotoRequired
	}
	if int64(len(buffer)) > limit {
		return StoredPhoto{}, attendance.ErrPhotoTooLarge
	}

	processed, err := normalizeImage(buffer)
	if err != nil {
		return StoredPhoto{}, err
	}

	filename := fmt.Sprintf("%s-%s-%s.jpg", userID, kind, uuid.NewString())
	p := path.Join("attendance", timeutil.FormatDate(day), filename)

	stored, err := s.storage.Upload(ctx, bytes.NewReader(processed), p, "image/jpeg")
	if err != nil {
		return StoredPhoto{}, fmt.Errorf("failed to upload attendance photo: %w", err)
	}

	url, err := s.storage.GetURL(ctx, stored)
	if err != nil {
		return StoredPhoto{}, fmt.Errorf("failed to resolve attendance photo url: %w", err)
	}

	return StoredPhoto{Path: stored, URL: url}, nil
}

// DeleteFile deletes a file
func (s *fileServiceImpl) DeleteFile(ctx context.Context, path string) error {
	return s.storage.Delete(ctx, path)
}

// normalizeImage returns buffer re-encoded as an upright JPEG no larger than
// maxPhotoDimension on its longest edge
func normalizeImage(buffer []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(buffer), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", attendance.ErrInvalidPhoto, err)
	}

	bounds := img.Bounds()
	width, height := fitWithin(bounds.Dx(), bounds.Dy(), maxPhotoDimension)
	if width != bounds.Dx() || height != bounds.Dy() {
		img = resizeImage(img, width, height)
	}

	buf := new(bytes.Buffer)
	if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode JPEG: %w", err)
	}
	return buf.Bytes(), nil
}

// fitWithin scales width x height down so neither edge exceeds max
func fitWithin(width, height, max int) (int, int) {
	if width <= max && height <= max {
		return width, height
	}
	if width >= height {
		h := height * max / width
		if h < 1 {
			h = 1
		}
		return max, h
	}
	w := width * max / height
	if w < 1 {
		w = 1
	}
	return w, max
}

// resizeImage resizes an image to the specified dimensions using high-quality interpolation
func resizeImage(src image.Image, width, height int) image.Image {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)
	return dst
}

func NewFileService(storage storage.FileStorage, maxSize int64) FileService {
	return &fileServiceImpl{
		storage: storage,
		maxSize: maxSize,
	}
}
