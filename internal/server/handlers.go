package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/ternarybob/crawlkit/internal/crawler"
	"github.com/ternarybob/crawlkit/internal/models"
)

// apiResponse is the envelope every §6 endpoint responds with.
type apiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, apiResponse{Success: false, Error: message})
}

// decodeStrict decodes the request body into dst, rejecting unknown fields
// anywhere in the payload (including nested objects like "options") per
// §9's closed-set contract for ScrapeOptions/CrawlOptions.
func decodeStrict(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// statusForKind maps a classified models.ErrorKind onto the HTTP status the
// client sees, per §6's external interface.
func statusForKind(kind models.ErrorKind) int {
	switch kind {
	case models.ErrBadRequest:
		return http.StatusBadRequest
	case models.ErrUnauthorized:
		return http.StatusUnauthorized
	case models.ErrNotFound:
		return http.StatusNotFound
	case models.ErrRateLimited:
		return http.StatusTooManyRequests
	case models.ErrTimeout:
		return http.StatusGatewayTimeout
	case models.ErrFetchBlocked, models.ErrFetchFailed, models.ErrTransformFailed, models.ErrExtractFailed:
		return http.StatusUnprocessableEntity
	case models.ErrCancelled:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// scrapeRequest is the decoded body of POST /v1/scrape.
type scrapeRequest struct {
	URL     string               `json:"url" validate:"required,url"`
	Options *models.ScrapeOptions `json:"options,omitempty"`
}

// handleScrape submits a single URL as a scrape job and holds the
// connection open until the job completes or the request's context is
// cancelled, matching §6's synchronous scrape contract.
func (s *Server) handleScrape(w http.ResponseWriter, r *http.Request) {
	var req scrapeRequest
	if err := decodeStrict(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	opts := models.DefaultScrapeOptions()
	if req.Options != nil {
		opts = *req.Options
		if err := s.validate.Struct(opts); err != nil {
			writeError(w, http.StatusBadRequest, "invalid options: "+err.Error())
			return
		}
	}

	job := models.NewJob(models.JobKindScrape, models.JobPayload{
		URL:           req.URL,
		ScrapeOptions: opts,
	}, models.PriorityScrape)

	ch, unsubscribe := s.app.Events.Subscribe(job.ID)
	defer unsubscribe()

	if err := s.app.JobQueue.Enqueue(r.Context(), job); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to enqueue scrape: "+err.Error())
		return
	}

	timeout := 30 * time.Second
	if opts.Timeout > 0 {
		timeout = time.Duration(opts.Timeout) * time.Millisecond
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-r.Context().Done():
		writeError(w, http.StatusRequestTimeout, "request cancelled")
		return
	case <-timer.C:
		writeError(w, http.StatusGatewayTimeout, "scrape timed out")
		return
	case event, ok := <-ch:
		if !ok {
			writeError(w, http.StatusInternalServerError, "scrape aborted")
			return
		}
		doc, err := s.app.Docs.Get(event.DocumentID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "scrape completed but its document was lost: "+err.Error())
			return
		}
		if doc.Error != nil {
			writeJSON(w, statusForKind(doc.Error.Kind), apiResponse{Success: false, Error: doc.Error.Error(), Data: doc})
			return
		}
		writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: doc})
	}
}

// crawlSubmitRequest is the decoded body of POST /v1/crawl.
type crawlSubmitRequest struct {
	URL      string               `json:"url" validate:"required,url"`
	TenantID string               `json:"tenantId,omitempty"`
	Options  *models.CrawlOptions `json:"options,omitempty"`
}

// handleCrawlSubmit starts a crawl and immediately returns its ID and
// status URL; crawl progress is observed through handleCrawlStatus.
func (s *Server) handleCrawlSubmit(w http.ResponseWriter, r *http.Request) {
	var req crawlSubmitRequest
	if err := decodeStrict(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	opts := models.DefaultCrawlOptions()
	if req.Options != nil {
		opts = *req.Options
		if err := s.validate.Struct(opts); err != nil {
			writeError(w, http.StatusBadRequest, "invalid options: "+err.Error())
			return
		}
	}

	state, err := s.app.Controller.StartCrawl(r.Context(), req.TenantID, req.URL, opts)
	if err != nil {
		if classified, ok := err.(*models.Error); ok {
			writeJSON(w, statusForKind(classified.Kind), apiResponse{Success: false, Error: classified.Error()})
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: map[string]string{
		"id":  state.ID,
		"url": "/v1/crawl/" + state.ID,
	}})
}

// crawlStatusResponse is the §6 crawl status payload.
type crawlStatusResponse struct {
	ID        string             `json:"id"`
	Status    models.CrawlStatus `json:"status"`
	Total     int                `json:"total"`
	Completed int                `json:"completed"`
	Failed    int                `json:"failed"`
	Data      []*models.Document `json:"data,omitempty"`
}

// handleCrawlStatus reports a crawl's state-machine position and the
// documents collected so far.
func (s *Server) handleCrawlStatus(w http.ResponseWriter, r *http.Request) {
	crawlID := strings.TrimPrefix(r.URL.Path, "/v1/crawl/")
	if crawlID == "" {
		writeError(w, http.StatusBadRequest, "missing crawl id")
		return
	}

	state, err := s.app.Controller.Status(crawlID)
	if err != nil {
		if err == crawler.ErrCrawlNotFound {
			writeError(w, http.StatusNotFound, "crawl not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	completed, failed, _ := state.Counts()
	docs := s.app.Docs.GetMany(state.DocumentIDs())

	writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: crawlStatusResponse{
		ID:        state.ID,
		Status:    state.GetStatus(),
		Total:     completed + failed,
		Completed: completed,
		Failed:    failed,
		Data:      docs,
	}})
}

// handleCrawlCancel moves a crawl to cancelled; page jobs delivered after
// that are dropped, while a page already being processed finishes and is
// recorded.
func (s *Server) handleCrawlCancel(w http.ResponseWriter, r *http.Request) {
	crawlID := strings.TrimPrefix(r.URL.Path, "/v1/crawl/")
	if crawlID == "" {
		writeError(w, http.StatusBadRequest, "missing crawl id")
		return
	}

	if err := s.app.Controller.Cancel(crawlID); err != nil {
		if err == crawler.ErrCrawlNotFound {
			writeError(w, http.StatusNotFound, "crawl not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: map[string]string{"status": "cancelled"}})
}
