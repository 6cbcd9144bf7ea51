package batch

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	batchservice "github.com/zhouzirui/callsight/backend/internal/service/batch"
	"github.com/zhouzirui/callsight/backend/pkg/utils"
)

// maxUploadBytes caps one recording upload.
const maxUploadBytes = 32 << 20

// Handler exposes the request/response transcription flow over HTTP.
type Handler struct {
	svc *batchservice.Service
}

// New creates the batch transcription handler.
func New(svc *batchservice.Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the upload and polling endpoints.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/transcriptions", func(tr chi.Router) {
		tr.Post("/", h.handleSubmit)
		tr.Get("/{jobID}", h.handleLookup)
	})
}

// handleSubmit accepts a multipart audio upload and returns the pollable job.
func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "failed to parse multipart form: "+err.Error())
		return
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "audio file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "failed to read audio file")
		return
	}
	if len(data) == 0 {
		utils.RespondError(w, http.StatusBadRequest, "audio file is empty")
		return
	}
	if len(data) > maxUploadBytes {
		utils.RespondError(w, http.StatusRequestEntityTooLarge, "audio file too large")
		return
	}

	job, err := h.svc.Submit(header.Filename, data)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to queue transcription job")
		return
	}

	utils.RespondJSON(w, http.StatusAccepted, job)
}

// handleLookup returns the current state of one transcription job.
func (h *Handler) handleLookup(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	if jobID == "" {
		utils.RespondError(w, http.StatusBadRequest, "jobID is required")
		return
	}

	job, ok := h.svc.Lookup(jobID)
	if !ok {
		utils.RespondError(w, http.StatusNotFound, "transcription job not found")
		return
	}

	utils.RespondJSON(w, http.StatusOK, job)
}
