package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/dutchcoders/go-clamd"
	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"

	"resumify/internal/storage"
)

const profilePictureField = "profile_pic"

var allowedPictureExts = map[string]bool{
	"png":  true,
	"jpg":  true,
	"jpeg": true,
	"gif":  true,
	"webp": true,
}

var allowedPictureTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/gif":  true,
	"image/webp": true,
}

var (
	errPictureType     = errors.New("unsupported picture type")
	errPictureTooLarge = errors.New("picture too large")
	// ErrInfected 表示病毒扫描未通过。
	ErrInfected = errors.New("malicious file detected")
)

// Scanner 在保存前检查上传内容。
type Scanner interface {
	Scan(ctx context.Context, r io.Reader) error
}

// ClamdScanner 通过 clamd 的 INSTREAM 扫描上传文件。
type ClamdScanner struct {
	addr string
}

// NewClamdScanner 返回指向 addr（如 tcp://clamav:3310）的扫描器。
func NewClamdScanner(addr string) *ClamdScanner {
	return &ClamdScanner{addr: addr}
}

// Scan 实现 Scanner。
func (s *ClamdScanner) Scan(_ context.Context, r io.Reader) error {
	client := clamd.NewClamd(s.addr)
	abortChan := make(chan bool)
	defer close(abortChan)

	scanChan, err := client.ScanStream(r, abortChan)
	if err != nil {
		return fmt.Errorf("scan file: %w", err)
	}
	for result := range scanChan {
		if result.Status != clamd.RES_OK {
			return ErrInfected
		}
	}
	return nil
}

// pictureUploader 校验并保存简历头像。
type pictureUploader struct {
	store    storage.Store
	scanner  Scanner
	maxBytes int64
	now      func() time.Time
}

// save 返回新图片的站内 URL；表单未带文件时返回 nil, nil。
func (u *pictureUploader) save(c *gin.Context) (*string, error) {
	file, err := c.FormFile(profilePictureField)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return nil, nil
		}
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if file.Filename == "" {
		return nil, nil
	}
	return u.saveFile(c.Request.Context(), file)
}

func (u *pictureUploader) saveFile(ctx context.Context, file *multipart.FileHeader) (*string, error) {
	safe := storage.SecureFilename(file.Filename)
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(safe), "."))
	if !allowedPictureExts[ext] {
		return nil, errPictureType
	}
	if file.Size > u.maxBytes {
		return nil, errPictureTooLarge
	}

	f, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	mt, err := mimetype.DetectReader(f)
	if err != nil {
		return nil, fmt.Errorf("detect picture type: %w", err)
	}
	if !allowedPictureTypes[mt.String()] {
		return nil, errPictureType
	}

	if u.scanner != nil {
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return nil, fmt.Errorf("rewind upload: %w", err)
		}
		if err := u.scanner.Scan(ctx, f); err != nil {
			return nil, err
		}
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind upload: %w", err)
	}

	key := storage.PictureKey(u.now(), safe)
	if err := u.store.Save(ctx, key, f, file.Size, mt.String()); err != nil {
		return nil, fmt.Errorf("store picture: %w", err)
	}
	url := storage.URLForKey(key)
	return &url, nil
}

// pictureErrorMessage 把上传错误转换为面向用户的提示。
func pictureErrorMessage(log *slog.Logger, err error) string {
	switch {
	case errors.Is(err, errPictureType):
		return "Invalid file type. Please upload an image (PNG, JPG, JPEG, GIF, WEBP)."
	case errors.Is(err, errPictureTooLarge):
		return "File too large. Maximum size is 5MB."
	case errors.Is(err, ErrInfected):
		log.Warn("rejected infected upload")
		return "The uploaded file was rejected by the virus scanner."
	default:
		log.Error("save picture failed", slog.Any("error", err))
		return "Could not save the picture. Please try again."
	}
}
