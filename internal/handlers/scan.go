package handlers

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/lehigh-university-libraries/shelfscanner/internal/capture"
	"github.com/lehigh-university-libraries/shelfscanner/internal/images"
	"github.com/lehigh-university-libraries/shelfscanner/internal/models"
)

// Scanner runs the detection and capture pipelines
type Scanner interface {
	Detect(ctx context.Context, img image.Image, opts capture.Options) (*models.DetectResult, error)
	Capture(ctx context.Context, img image.Image, opts capture.Options) (*models.CaptureResult, error)
}

// urlScanRequest is the JSON alternative to a multipart upload
type urlScanRequest struct {
	ImageURL         string `json:"image_url" validate:"required,url"`
	MinArea          *int   `json:"minArea"`
	MaxDetections    *int   `json:"maxDetections"`
	MaxLookupResults *int   `json:"maxLookupResults"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// scanInput is a decoded frame plus the options sent with it
type scanInput struct {
	image    image.Image
	filename string
	opts     capture.Options
}

func (h *Handler) HandleDetect(w http.ResponseWriter, r *http.Request) {
	in, ok := h.readScanInput(w, r)
	if !ok {
		return
	}

	result, err := h.scanner.Detect(r.Context(), in.image, in.opts)
	if err != nil {
		h.writePipelineError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) HandleCapture(w http.ResponseWriter, r *http.Request) {
	in, ok := h.readScanInput(w, r)
	if !ok {
		return
	}

	result, err := h.scanner.Capture(r.Context(), in.image, in.opts)
	if err != nil {
		h.writePipelineError(w, err)
		return
	}

	h.sessionStore.Set(&models.CaptureSession{
		ID:        result.ID,
		Filename:  in.filename,
		Result:    result,
		CreatedAt: time.Now(),
	})
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) writePipelineError(w http.ResponseWriter, err error) {
	var unavailable *capture.ModelUnavailableError
	var invalid validator.ValidationErrors
	switch {
	case errors.As(err, &unavailable):
		h.writeError(w, http.StatusServiceUnavailable, "model_unavailable", unavailable.Message())
	case errors.As(err, &invalid):
		h.writeError(w, http.StatusBadRequest, "invalid_options", invalid.Error())
	default:
		h.writeError(w, http.StatusInternalServerError, "scan_failed", err.Error())
	}
}

// readScanInput validates the request before any pipeline stage runs.
// It writes the error response itself and reports false on failure.
func (h *Handler) readScanInput(w http.ResponseWriter, r *http.Request) (*scanInput, bool) {
	if !h.cfg.ScanEnabled {
		h.writeError(w, http.StatusServiceUnavailable, "scan_disabled", "")
		return nil, false
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.Server.MaxUploadBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		return h.readURLInput(w, r)
	}
	return h.readUploadInput(w, r)
}

func (h *Handler) readUploadInput(w http.ResponseWriter, r *http.Request) (*scanInput, bool) {
	if err := r.ParseMultipartForm(h.cfg.Server.MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(w, http.StatusRequestEntityTooLarge, "image_too_large", err.Error())
			return nil, false
		}
		h.writeError(w, http.StatusBadRequest, "missing_image_file", "")
		return nil, false
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		// a part without a filename is parsed as a plain value
		if _, sent := r.MultipartForm.Value["image"]; sent {
			h.writeError(w, http.StatusBadRequest, "empty_image_file", "")
			return nil, false
		}
		h.writeError(w, http.StatusBadRequest, "missing_image_file", "")
		return nil, false
	}
	defer file.Close()

	if header.Filename == "" {
		h.writeError(w, http.StatusBadRequest, "empty_image_file", "")
		return nil, false
	}

	data, err := io.ReadAll(file)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_image:"+err.Error(), "")
		return nil, false
	}
	img, err := images.DecodeBytes(data)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_image:"+err.Error(), "")
		return nil, false
	}

	opts, err := formOptions(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_form_value", err.Error())
		return nil, false
	}

	return &scanInput{image: img, filename: header.Filename, opts: opts}, true
}

func (h *Handler) readURLInput(w http.ResponseWriter, r *http.Request) (*scanInput, bool) {
	var req urlScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return nil, false
	}
	if err := validate.Struct(req); err != nil {
		h.writeError(w, http.StatusBadRequest, "missing_image_url", err.Error())
		return nil, false
	}

	img, err := h.fetcher.Fetch(r.Context(), req.ImageURL)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_image:"+err.Error(), "")
		return nil, false
	}

	opts := capture.DefaultOptions()
	if req.MinArea != nil {
		opts.MinArea = *req.MinArea
	}
	if req.MaxDetections != nil {
		opts.MaxDetections = *req.MaxDetections
	}
	if req.MaxLookupResults != nil {
		opts.MaxLookupResults = *req.MaxLookupResults
	}
	return &scanInput{image: img, filename: req.ImageURL, opts: opts}, true
}

func formOptions(r *http.Request) (capture.Options, error) {
	opts := capture.DefaultOptions()
	fields := []struct {
		name string
		dst  *int
	}{
		{"minArea", &opts.MinArea},
		{"maxDetections", &opts.MaxDetections},
		{"maxLookupResults", &opts.MaxLookupResults},
	}
	for _, f := range fields {
		raw := r.FormValue(f.name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return opts, fmt.Errorf("%s: %w", f.name, err)
		}
		*f.dst = n
	}
	return opts, nil
}
