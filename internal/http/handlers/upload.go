package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"

	"github.com/yungbote/indoormap-backend/internal/platform/apierr"
)

var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
}

// saveImageUpload copies a multipart image into dir and returns the temp
// path. Only JPEG and PNG are accepted, judged by content rather than the
// client's Content-Type header.
func saveImageUpload(fh *multipart.FileHeader, dir string) (string, error) {
	src, err := fh.Open()
	if err != nil {
		return "", apierr.Validation(fmt.Errorf("open upload: %w", err))
	}
	defer src.Close()

	head := make([]byte, 512)
	n, err := io.ReadFull(src, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", apierr.Validation(fmt.Errorf("read upload: %w", err))
	}
	head = head[:n]
	ext, ok := imageExtensions[http.DetectContentType(head)]
	if !ok {
		return "", apierr.Validation(fmt.Errorf("image must be image/jpeg or image/png"))
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", apierr.Internal(fmt.Errorf("create upload dir: %w", err))
	}
	dst, err := os.CreateTemp(dir, "map-*"+ext)
	if err != nil {
		return "", apierr.Internal(fmt.Errorf("create upload file: %w", err))
	}
	if _, err := dst.Write(head); err == nil {
		_, err = io.Copy(dst, src)
	}
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(dst.Name())
		return "", apierr.Internal(fmt.Errorf("write upload: %w", err))
	}
	return dst.Name(), nil
}

func limitBody(w http.ResponseWriter, r *http.Request, maxBytes int64) {
	if maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	}
}

func multipartError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return apierr.Validation(fmt.Errorf("upload exceeds %d bytes", tooLarge.Limit))
	}
	return apierr.Validation(fmt.Errorf("invalid multipart form: %w", err))
}
