package transport

import (
	"errors"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"furniture-catalog/internal/domain"
	"furniture-catalog/internal/storage"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// ImagesField is the multipart field carrying uploaded files
const ImagesField = "images"

// DefaultMaxMemory is used when a handler is built without an upload limit
const DefaultMaxMemory = 32 << 20

func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "multipart/form-data"
}

// parseForm parses multipart and urlencoded bodies alike
func parseForm(r *http.Request, maxMemory int64) error {
	if maxMemory <= 0 {
		maxMemory = DefaultMaxMemory
	}
	if isMultipart(r) {
		if err := r.ParseMultipartForm(maxMemory); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				return domain.Invalid("request body exceeds %d bytes", tooLarge.Limit)
			}
			return domain.Invalid("malformed multipart body")
		}
		return nil
	}
	if err := r.ParseForm(); err != nil {
		return domain.Invalid("malformed form body")
	}
	return nil
}

// formUploads opens every file of the images field. The returned func closes them.
func formUploads(r *http.Request) ([]storage.Upload, func(), error) {
	if r.MultipartForm == nil {
		return nil, func() {}, nil
	}

	headers := r.MultipartForm.File[ImagesField]
	uploads := make([]storage.Upload, 0, len(headers))
	files := make([]multipart.File, 0, len(headers))
	closeAll := func() {
		for _, f := range files {
			f.Close()
		}
	}

	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			closeAll()
			return nil, func() {}, domain.Invalid("unreadable upload %q", fh.Filename)
		}
		files = append(files, f)
		uploads = append(uploads, storage.Upload{Filename: fh.Filename, Content: f})
	}
	return uploads, closeAll, nil
}

// pathID parses a uuid route parameter
func pathID(r *http.Request, param string) (uuid.UUID, error) {
	return parseID(chi.URLParam(r, param), param)
}

func parseID(raw, field string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, domain.Invalid("%s is not a valid id", field)
	}
	return id, nil
}

// optionalID parses an id that may be left empty
func optionalID(raw, field string) (*uuid.UUID, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	id, err := parseID(raw, field)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func optionalBool(raw, field string) (*bool, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return nil, domain.Invalid("%s must be true or false", field)
	}
	return &v, nil
}

// messageResponse is the body of operations that return no entity
type messageResponse struct {
	Message string `json:"message"`
}
