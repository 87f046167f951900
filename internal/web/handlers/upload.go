package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/fingerprint"
)

// uploadForm is a parsed upload request. JSON bodies carry the image as a
// data URL in the same field name a form would use.
type uploadForm struct {
	values map[string]string
	files  map[string][]*multipart.FileHeader
}

func (f *uploadForm) value(key string) string {
	return strings.TrimSpace(f.values[key])
}

// parseUploadForm reads a multipart, urlencoded or JSON body. The whole body is
// capped at maxBody bytes.
func parseUploadForm(w http.ResponseWriter, r *http.Request, maxBody int64) (*uploadForm, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	form := &uploadForm{values: make(map[string]string)}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return nil, fmt.Errorf("%s: %w", bodyError(err), attendance.ErrInvalidInput)
		}
		form.values = body
		return form, nil
	}

	if err := r.ParseMultipartForm(constants.MultipartMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return nil, fmt.Errorf("%s: %w", bodyError(err), attendance.ErrInvalidInput)
	}
	if r.MultipartForm != nil {
		form.files = r.MultipartForm.File
		for k, v := range r.MultipartForm.Value {
			if len(v) > 0 {
				form.values[k] = v[0]
			}
		}
		return form, nil
	}
	if err := r.ParseForm(); err != nil {
		return nil, fmt.Errorf("%s: %w", bodyError(err), attendance.ErrInvalidInput)
	}
	for k := range r.PostForm {
		form.values[k] = r.PostForm.Get(k)
	}
	return form, nil
}

func bodyError(err error) string {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return "request body too large"
	}
	return "invalid request body"
}

// image returns the single image sent either as an uploaded file in fileField
// or as a data URL in dataField.
func (f *uploadForm) image(fileField, dataField string, maxBytes int64) (attendance.Image, error) {
	if files := f.files[fileField]; len(files) > 0 {
		return readFileHeader(files[0], maxBytes)
	}
	if data := f.value(dataField); data != "" {
		raw, err := fingerprint.DecodeDataURL(data)
		if err != nil {
			return attendance.Image{}, fmt.Errorf("field %s: %w", dataField, err)
		}
		img := attendance.Image{Ref: dataField, Data: raw}
		return img, checkImage(img, maxBytes)
	}
	return attendance.Image{}, fmt.Errorf("image is required: %w", attendance.ErrInvalidInput)
}

// images returns every uploaded file in field, in upload order.
func (f *uploadForm) images(field string, maxBytes int64) ([]attendance.Image, error) {
	headers := f.files[field]
	out := make([]attendance.Image, 0, len(headers))
	for _, fh := range headers {
		img, err := readFileHeader(fh, maxBytes)
		if err != nil {
			return nil, err
		}
		out = append(out, img)
	}
	return out, nil
}

func readFileHeader(fh *multipart.FileHeader, maxBytes int64) (attendance.Image, error) {
	ref := sanitizeForLog(fh.Filename)
	if fh.Size > maxBytes {
		return attendance.Image{}, tooLarge(ref, maxBytes)
	}

	file, err := fh.Open()
	if err != nil {
		return attendance.Image{}, fmt.Errorf("failed to open file %s: %w", ref, attendance.ErrInvalidInput)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxBytes+1))
	if err != nil {
		return attendance.Image{}, fmt.Errorf("failed to read file %s: %w", ref, attendance.ErrInvalidInput)
	}

	img := attendance.Image{Ref: ref, Data: data}
	return img, checkImage(img, maxBytes)
}

// checkImage enforces the per-image size ceiling and sniffs the content type.
func checkImage(img attendance.Image, maxBytes int64) error {
	if int64(len(img.Data)) > maxBytes {
		return tooLarge(img.Ref, maxBytes)
	}
	if !strings.HasPrefix(fingerprint.DetectMIMEType(img.Data), "image/") {
		return fmt.Errorf("file %s is not a supported image: %w", img.Ref, attendance.ErrImageDecode)
	}
	return nil
}

func tooLarge(ref string, maxBytes int64) error {
	return fmt.Errorf("file %s exceeds %s: %w", ref, formatBytes(maxBytes), attendance.ErrInvalidInput)
}

func formatBytes(n int64) string {
	if n >= 1<<20 && n%(1<<20) == 0 {
		return fmt.Sprintf("%dMB", n>>20)
	}
	return fmt.Sprintf("%d bytes", n)
}
