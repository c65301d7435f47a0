package handler

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/go-playground/validator/v10"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"faceemotion/internal/dto"
	"faceemotion/internal/response"
)

var (
	ErrMissingImage     = response.NewError(http.StatusBadRequest, "request has no image")
	ErrInvalidBase64    = response.NewError(http.StatusBadRequest, "image is not valid base64")
	ErrUnsupportedImage = response.NewError(http.StatusUnsupportedMediaType, "unsupported image format")
	ErrUnsupportedBody  = response.NewError(http.StatusUnsupportedMediaType, "unsupported content type")
)

var validate = validator.New()

// readImage extracts the encoded image bytes from a JSON, multipart or raw body.
func readImage(w http.ResponseWriter, r *http.Request, maxBytes int64) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		mediaType = ""
	}

	switch {
	case mediaType == "application/json":
		var req dto.ImageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				return nil, err
			}
			return nil, response.Wrap(http.StatusBadRequest, fmt.Errorf("invalid JSON body: %w", err))
		}
		if err := validate.Struct(req); err != nil {
			return nil, ErrMissingImage
		}
		return decodeBase64(req.Image)

	case mediaType == "multipart/form-data":
		if err := r.ParseMultipartForm(maxBytes); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				return nil, err
			}
			return nil, response.Wrap(http.StatusBadRequest, fmt.Errorf("invalid multipart body: %w", err))
		}
		file, _, err := r.FormFile("image")
		if err != nil {
			return nil, ErrMissingImage
		}
		defer file.Close()
		return io.ReadAll(file)

	case strings.HasPrefix(mediaType, "image/"), mediaType == "application/octet-stream":
		data, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, err
		}
		if len(data) == 0 {
			return nil, ErrMissingImage
		}
		return data, nil

	default:
		return nil, ErrUnsupportedBody
	}
}

// decodeBase64 accepts plain base64 or a data URI such as "data:image/png;base64,...".
func decodeBase64(s string) ([]byte, error) {
	if strings.HasPrefix(s, "data:") {
		i := strings.Index(s, ",")
		if i < 0 || !strings.HasSuffix(s[:i], ";base64") {
			return nil, ErrInvalidBase64
		}
		s = s[i+1:]
	}
	s = strings.TrimSpace(s)

	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
		if err != nil {
			return nil, ErrInvalidBase64
		}
	}
	if len(data) == 0 {
		return nil, ErrMissingImage
	}
	return data, nil
}

// decodeImage decodes any registered format and applies the EXIF orientation.
func decodeImage(data []byte) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return nil, ErrUnsupportedImage
		}
		return nil, response.Wrap(http.StatusBadRequest, fmt.Errorf("failed to decode image: %w", err))
	}
	return img, nil
}

// imageFromRequest reads and decodes the request image.
func imageFromRequest(w http.ResponseWriter, r *http.Request, maxBytes int64) (image.Image, error) {
	data, err := readImage(w, r, maxBytes)
	if err != nil {
		return nil, err
	}
	return decodeImage(data)
}
