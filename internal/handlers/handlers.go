package handlers

import (
	"bytes"
	"embed"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"image"
	"image/png"
	"io"
	"log/slog"
	"net/http"

	"github.com/Brownie44l1/eye-diagnosis/internal/diagnosis"
	"github.com/Brownie44l1/eye-diagnosis/internal/preprocess"
	"github.com/Brownie44l1/eye-diagnosis/internal/server"
)

// AcceptedTypes is offered to the browser's file picker.
const AcceptedTypes = ".jpg,.jpeg,.png,.bmp,.webp"

const formField = "image"

// multipartOverhead is allowed on top of maxUpload for boundaries and part
// headers, so the cap applies to the file itself.
const multipartOverhead = 64 << 10

//go:embed templates/index.html
var templateFS embed.FS

var pageTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html"))

var errNoImage = errors.New("no image file provided. Use 'image' as the form field name")

type Handler struct {
	diagnoser *diagnosis.Diagnoser
	inputLen  int
	maxUpload int64
	logger    *slog.Logger
}

// NewHandler wires the HTTP surface to a diagnoser. inputLen is the size of a
// raw preprocessed tensor accepted by Predict.
func NewHandler(d *diagnosis.Diagnoser, inputLen int, maxUpload int64, logger *slog.Logger) *Handler {
	return &Handler{
		diagnoser: d,
		inputLen:  inputLen,
		maxUpload: maxUpload,
		logger:    logger,
	}
}

type pageData struct {
	Accept   string
	Error    string
	Result   *diagnosis.PredictionResult
	ImageURI template.URL
}

type predictRequest struct {
	Image []float32 `json:"image"`
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
}

// Page renders the empty upload page.
func (h *Handler) Page(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, pageData{Accept: AcceptedTypes})
}

// Upload handles the page form: it diagnoses the uploaded image and renders
// the result, or the page again with an error message.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	data, status, err := h.readUpload(w, r)
	if err != nil {
		h.render(w, r, status, pageData{Accept: AcceptedTypes, Error: err.Error()})
		return
	}

	result, fitted, err := h.diagnoser.Diagnose(r.Context(), data)
	if err != nil {
		status, msg := h.classifyError(r, err)
		h.render(w, r, status, pageData{Accept: AcceptedTypes, Error: msg})
		return
	}

	uri, err := dataURI(fitted)
	if err != nil {
		h.logger.Error("failed to encode preview", "err", err, "request_id", server.GetRequestID(r.Context()))
	}
	h.render(w, r, http.StatusOK, pageData{Accept: AcceptedTypes, Result: result, ImageURI: uri})
}

// PredictFromImage is the JSON variant of Upload.
func (h *Handler) PredictFromImage(w http.ResponseWriter, r *http.Request) {
	data, status, err := h.readUpload(w, r)
	if err != nil {
		jsonError(w, err.Error(), status)
		return
	}

	result, _, err := h.diagnoser.Diagnose(r.Context(), data)
	if err != nil {
		status, msg := h.classifyError(r, err)
		jsonError(w, msg, status)
		return
	}
	writeJSON(w, result)
}

// Predict scores a tensor that the caller already preprocessed.
func (h *Handler) Predict(w http.ResponseWriter, r *http.Request) {
	var req predictRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.maxUpload)).Decode(&req); err != nil {
		jsonError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if len(req.Image) != h.inputLen {
		jsonError(w, fmt.Sprintf("Expected %d values, got %d", h.inputLen, len(req.Image)), http.StatusBadRequest)
		return
	}

	result, err := h.diagnoser.Classify(r.Context(), req.Image)
	if err != nil {
		status, msg := h.classifyError(r, err)
		jsonError(w, msg, status)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) readUpload(w http.ResponseWriter, r *http.Request) ([]byte, int, error) {
	tooLarge := fmt.Errorf("image too large (max %d bytes)", h.maxUpload)

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+multipartOverhead)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, http.StatusRequestEntityTooLarge, tooLarge
		}
		return nil, http.StatusBadRequest, errors.New("failed to parse form")
	}

	file, header, err := r.FormFile(formField)
	if err != nil {
		return nil, http.StatusBadRequest, errNoImage
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.maxUpload+1))
	if err != nil {
		return nil, http.StatusBadRequest, errors.New("failed to read image")
	}
	if int64(len(data)) > h.maxUpload {
		return nil, http.StatusRequestEntityTooLarge, tooLarge
	}

	h.logger.Debug("received file",
		"filename", header.Filename,
		"size", header.Size,
		"request_id", server.GetRequestID(r.Context()),
	)
	return data, http.StatusOK, nil
}

// classifyError maps a diagnosis failure to a status and a user-facing
// message. Only decode failures are the user's fault.
func (h *Handler) classifyError(r *http.Request, err error) (int, string) {
	if errors.Is(err, preprocess.ErrDecode) {
		return http.StatusBadRequest, "Invalid image format. Supported: JPEG, PNG, BMP, WebP"
	}
	h.logger.Error("prediction failed", "err", err, "request_id", server.GetRequestID(r.Context()))
	return http.StatusInternalServerError, "Prediction failed"
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, data pageData) {
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, data); err != nil {
		h.logger.Error("failed to render page", "err", err, "request_id", server.GetRequestID(r.Context()))
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

func dataURI(img image.Image) (template.URL, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", err
	}
	return template.URL("data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())), nil
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
