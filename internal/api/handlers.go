package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/crawlersvc/internal/crawler"
	"github.com/JakeFAU/crawlersvc/internal/results"
)

// MaxBatchURLs is the largest accepted /submit batch.
const MaxBatchURLs = 100

const maxBodyBytes = 1 << 20

// decodeBody reads exactly one JSON value from the request body.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("unexpected data after JSON value")
	}
	return nil
}

type submitURLRequest struct {
	URL string `json:"url"`
}

func (s *Server) submitURL(w http.ResponseWriter, r *http.Request) {
	var req submitURLRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON object.")
		return
	}
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "URL is required.")
		return
	}
	if !crawler.HasHTTPPrefix(req.URL) {
		writeError(w, http.StatusBadRequest, "URL must start with http:// or https://.")
		return
	}
	if s.ledger.Check(r.Context(), req.URL) == crawler.VerdictRecent {
		writeError(w, http.StatusBadRequest, "URL was recently crawled. Duplicate submission.")
		return
	}

	jobID, err := s.submitter.Submit(req.URL)
	if err != nil {
		s.logger.Error("submit url failed", zap.String("url", req.URL), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal server error.")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "URL submitted for crawling.",
		"job_id":  jobID,
	})
}

func (s *Server) submitBatch(w http.ResponseWriter, r *http.Request) {
	var payload any
	if err := decodeBody(w, r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON object.")
		return
	}
	obj, ok := payload.(map[string]any)
	if !ok {
		writeError(w, http.StatusBadRequest, "Payload must be a JSON object.")
		return
	}
	raw, ok := obj["urls"]
	if !ok {
		writeError(w, http.StatusBadRequest, "Missing 'urls' key in payload.")
		return
	}
	list, ok := raw.([]any)
	if !ok {
		writeError(w, http.StatusBadRequest, "'urls' must be a list.")
		return
	}
	if len(list) > MaxBatchURLs {
		writeError(w, http.StatusBadRequest, "Maximum 100 URLs allowed.")
		return
	}

	urls := validBatchURLs(list)
	if len(urls) == 0 {
		writeError(w, http.StatusBadRequest, "No valid URLs provided")
		return
	}

	jobID, err := s.submitter.SubmitBatch(urls)
	if err != nil {
		s.logger.Error("submit batch failed", zap.Int("urls", len(urls)), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal server error.")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"job_id": jobID,
		"status": "Crawling jobs initiated",
	})
}

// validBatchURLs keeps string entries with an http(s) prefix, first occurrence wins.
func validBatchURLs(list []any) []string {
	seen := make(map[string]struct{}, len(list))
	urls := make([]string, 0, len(list))
	for _, item := range list {
		url, ok := item.(string)
		if !ok || !crawler.HasHTTPPrefix(url) {
			continue
		}
		if _, dup := seen[url]; dup {
			continue
		}
		seen[url] = struct{}{}
		urls = append(urls, url)
	}
	return urls
}

func (s *Server) getResults(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	page := 1
	if raw := r.URL.Query().Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusUnprocessableEntity, "page must be an integer greater than 0")
			return
		}
		page = n
	}

	result, err := s.results.List(r.Context(), jobID, page)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, result)
	case errors.Is(err, results.ErrInvalidJobID):
		writeError(w, http.StatusBadRequest, "job_id must be a non-empty string")
	case errors.Is(err, results.ErrInvalidPage):
		writeError(w, http.StatusUnprocessableEntity, "page must be an integer greater than 0")
	case errors.Is(err, results.ErrJobNotFound):
		writeError(w, http.StatusNotFound, "Job results not found")
	case errors.Is(err, results.ErrPageOutOfRange):
		writeError(w, http.StatusBadRequest, "Page number out of range")
	default:
		s.logger.Error("list results failed", zap.String("job_id", jobID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Error reading job directory")
	}
}
