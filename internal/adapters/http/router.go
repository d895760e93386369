package httpadapter

import (
	"encoding/json"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/mkessler/zettelwerk/internal/core/domain"
	"github.com/mkessler/zettelwerk/internal/core/ports"
)

// Router exposes the thin REST surface: upload, job and document lookup,
// and review answering. All heavy lifting happens in the worker.
type Router struct {
	intake    ports.DocumentIntake
	jobs      ports.JobRepository
	docs      ports.DocumentRepository
	responder ports.ReviewResponder
	maxBytes  int64
}

func NewRouter(
	intake ports.DocumentIntake,
	jobs ports.JobRepository,
	docs ports.DocumentRepository,
	responder ports.ReviewResponder,
	maxUploadBytes int64,
) *Router {
	return &Router{
		intake:    intake,
		jobs:      jobs,
		docs:      docs,
		responder: responder,
		maxBytes:  maxUploadBytes,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/documents", rt.uploadDocument)
	mux.HandleFunc("/v1/documents/", rt.getDocumentByID)
	mux.HandleFunc("/v1/jobs/", rt.getJobByID)
	mux.HandleFunc("/v1/reviews/", rt.answerReview)
	return requestIDMiddleware(accessLogMiddleware(mux))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, rt.maxBytes+1<<20)
	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	// Spool to a temp file; intake copies it into working storage.
	tmp, err := os.CreateTemp("", "zettelwerk-upload-")
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "temp storage unavailable"})
		return
	}
	defer os.Remove(tmp.Name())

	size, err := io.Copy(tmp, file)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "reading upload failed"})
		return
	}

	job, err := rt.intake.Submit(r.Context(), tmp.Name(), fileHeader.Filename, size, domain.SourceUpload)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

func (rt *Router) getJobByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/jobs/")
	if id == "" || strings.Contains(id, "/") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "job id is required"})
		return
	}

	job, err := rt.jobs.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (rt *Router) getDocumentByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/documents/")
	if id == "" || strings.Contains(id, "/") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "document id is required"})
		return
	}

	doc, err := rt.docs.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// answerReview handles POST /v1/reviews/{id}/answer.
func (rt *Router) answerReview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/v1/reviews/")
	id, action, found := strings.Cut(rest, "/")
	if !found || id == "" || action != "answer" {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown review endpoint"})
		return
	}

	var req struct {
		Answer string `json:"answer"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	doc, err := rt.responder.AnswerQuestion(r.Context(), id, req.Answer)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
}
