package httpx

import (
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	apperrors "github.com/target/eligibility-api/internal/errors"
	"github.com/target/eligibility-api/internal/service"
)

const csvUploadHint = "upload a CSV with headers: naics,title,basis,threshold,unit,effective_fy"

// AdminHandlers serves operator-only routes.
type AdminHandlers struct {
	SizeStandards *service.SizeStandardService
	// MaxUploadBytes bounds the in-memory part of a multipart upload.
	MaxUploadBytes int64
	Logger         *slog.Logger
}

type importResponse struct {
	Imported int `json:"imported"`
}

// ImportSizeStandards handles POST /v1/admin/size-standards/import.
// The CSV arrives either as the multipart field "file" or as a text/csv body.
func (h *AdminHandlers) ImportSizeStandards(w http.ResponseWriter, r *http.Request) {
	body, closeFn, err := h.csvBody(r)
	if err != nil {
		WriteServiceError(w, r, h.Logger, err)
		return
	}
	defer closeFn()

	n, err := h.SizeStandards.ImportCSV(r.Context(), body)
	if err != nil {
		WriteServiceError(w, r, h.Logger, err)
		return
	}

	WriteJSON(w, http.StatusOK, importResponse{Imported: n})
}

func (h *AdminHandlers) csvBody(r *http.Request) (io.Reader, func(), error) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return nil, nil, apperrors.Validation(csvUploadHint)
	}

	switch {
	case mediaType == "multipart/form-data":
		maxMem := h.MaxUploadBytes
		if maxMem <= 0 {
			maxMem = 10 << 20
		}
		if err := r.ParseMultipartForm(maxMem); err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				return nil, nil, apperrors.Validation("upload too large")
			}
			return nil, nil, apperrors.Validation(csvUploadHint)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			return nil, nil, apperrors.ValidationField("file", csvUploadHint)
		}
		if !strings.HasSuffix(strings.ToLower(header.Filename), ".csv") {
			_ = file.Close()
			return nil, nil, apperrors.ValidationField("file", csvUploadHint)
		}
		return file, func() {
			_ = file.Close()
			if r.MultipartForm != nil {
				_ = r.MultipartForm.RemoveAll()
			}
		}, nil
	case mediaType == "text/csv":
		return r.Body, func() {}, nil
	default:
		return nil, nil, apperrors.Validation(csvUploadHint)
	}
}
