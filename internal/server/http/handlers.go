package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kshitijsachan/papers/internal/codeurl"
	"github.com/kshitijsachan/papers/internal/domain"
	"github.com/kshitijsachan/papers/internal/repository"
)

// Validation constants.
const (
	maxRequestBodySize = 1 << 20 // 1 MB limit for request bodies
	maxBatchCodeURLs   = 200
	dateLayout         = "2006-01-02"
)

// createPaperRequest is the JSON request body for saving a paper.
type createPaperRequest struct {
	Title         string  `json:"title" validate:"required"`
	Authors       string  `json:"authors,omitempty"`
	Abstract      string  `json:"abstract,omitempty"`
	URL           string  `json:"url,omitempty" validate:"omitempty,url"`
	ArxivURL      string  `json:"arxiv_url,omitempty" validate:"omitempty,url"`
	PublishedDate *string `json:"published_date,omitempty"`
}

// updatePaperRequest is the JSON request body for patching a paper.
// Absent fields are left unchanged.
type updatePaperRequest struct {
	ReadStatus    *bool   `json:"read_status,omitempty"`
	Starred       *bool   `json:"starred,omitempty"`
	PublishedDate *string `json:"published_date,omitempty"`
}

// notesRequest is the JSON request body for updating notes.
type notesRequest struct {
	Notes       *string `json:"notes,omitempty"`
	Experiments *string `json:"experiments,omitempty"`
}

// createTagRequest is the JSON request body for creating a tag.
type createTagRequest struct {
	Name  string `json:"name" validate:"required"`
	Color string `json:"color,omitempty" validate:"omitempty,hexcolor"`
}

// setTagsRequest is the JSON request body for replacing a paper's tag set.
type setTagsRequest struct {
	Tags []string `json:"tags"`
}

// listPapers handles GET /papers.
func (s *Server) listPapers(w http.ResponseWriter, r *http.Request) {
	filter := repository.PaperFilter{
		Query: strings.TrimSpace(r.URL.Query().Get("q")),
		Sort:  r.URL.Query().Get("sort"),
		Order: r.URL.Query().Get("order"),
	}

	papers, err := s.papers.List(r.Context(), filter)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list papers")
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, domainPapersToResponse(papers))
}

// createPaper handles POST /papers.
func (s *Server) createPaper(w http.ResponseWriter, r *http.Request) {
	var req createPaperRequest
	if !decodeBody(w, r, &req) {
		return
	}

	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	if err := s.validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request payload: "+err.Error())
		return
	}

	published, ok := parseDate(w, req.PublishedDate)
	if !ok {
		return
	}

	paper := &domain.Paper{
		Title:         req.Title,
		Authors:       req.Authors,
		Abstract:      req.Abstract,
		URL:           req.URL,
		ArxivURL:      req.ArxivURL,
		PublishedDate: published,
	}

	created, err := s.papers.Create(r.Context(), paper)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to create paper")
		writeDomainError(w, err)
		return
	}

	s.metrics.RecordPaperCreated()
	s.backups.Trigger()
	writeJSON(w, http.StatusCreated, domainPaperToResponse(created))
}

// getPaper handles GET /papers/{paperID}.
func (s *Server) getPaper(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUID(w, chi.URLParam(r, "paperID"), "paper ID")
	if !ok {
		return
	}

	paper, err := s.papers.GetByID(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, domainPaperToResponse(paper))
}

// updatePaper handles PATCH /papers/{paperID}.
func (s *Server) updatePaper(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUID(w, chi.URLParam(r, "paperID"), "paper ID")
	if !ok {
		return
	}

	var req updatePaperRequest
	if !decodeBody(w, r, &req) {
		return
	}

	published, ok := parseDate(w, req.PublishedDate)
	if !ok {
		return
	}

	update := repository.PaperUpdate{
		ReadStatus:    req.ReadStatus,
		Starred:       req.Starred,
		PublishedDate: published,
	}

	paper, err := s.papers.Update(r.Context(), id, update)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	s.backups.Trigger()
	writeJSON(w, http.StatusOK, domainPaperToResponse(paper))
}

// deletePaper handles DELETE /papers/{paperID}.
func (s *Server) deletePaper(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUID(w, chi.URLParam(r, "paperID"), "paper ID")
	if !ok {
		return
	}

	if err := s.papers.Delete(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}

	s.metrics.RecordPaperDeleted()
	s.backups.Trigger()
	w.WriteHeader(http.StatusNoContent)
}

// getNotes handles GET /papers/{paperID}/notes.
func (s *Server) getNotes(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUID(w, chi.URLParam(r, "paperID"), "paper ID")
	if !ok {
		return
	}

	paper, err := s.papers.GetByID(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, notesResponse{Notes: paper.Notes, Experiments: paper.Experiments})
}

// updateNotes handles PUT /papers/{paperID}/notes.
func (s *Server) updateNotes(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUID(w, chi.URLParam(r, "paperID"), "paper ID")
	if !ok {
		return
	}

	var req notesRequest
	if !decodeBody(w, r, &req) {
		return
	}

	paper, err := s.papers.UpdateNotes(r.Context(), id, repository.NotesUpdate{
		Notes:       req.Notes,
		Experiments: req.Experiments,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	s.backups.Trigger()
	writeJSON(w, http.StatusOK, notesResponse{Notes: paper.Notes, Experiments: paper.Experiments})
}

// getCodeURL handles GET /papers/{paperID}/code-url.
func (s *Server) getCodeURL(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUID(w, chi.URLParam(r, "paperID"), "paper ID")
	if !ok {
		return
	}

	paper, err := s.papers.GetByID(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	var resp codeURLResponse
	if url, found := codeurl.Extract(paper.Abstract); found {
		resp.CodeURL = &url
	}
	writeJSON(w, http.StatusOK, resp)
}

// batchCodeURLs handles POST /papers/code-urls. The body is a JSON array of
// paper IDs; the response maps each ID to its code URL, null when the paper
// is missing or its abstract mentions no repository.
func (s *Server) batchCodeURLs(w http.ResponseWriter, r *http.Request) {
	var ids []string
	if !decodeBody(w, r, &ids) {
		return
	}
	if len(ids) > maxBatchCodeURLs {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("at most %d paper IDs per request", maxBatchCodeURLs))
		return
	}

	results := make(map[string]*string, len(ids))
	for _, raw := range ids {
		id, err := uuid.Parse(raw)
		if err != nil {
			results[raw] = nil
			continue
		}

		paper, err := s.papers.GetByID(r.Context(), id)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				results[raw] = nil
				continue
			}
			writeDomainError(w, err)
			return
		}

		if url, found := codeurl.Extract(paper.Abstract); found {
			results[raw] = &url
		} else {
			results[raw] = nil
		}
	}

	writeJSON(w, http.StatusOK, results)
}

// listTags handles GET /tags.
func (s *Server) listTags(w http.ResponseWriter, r *http.Request) {
	tags, err := s.tags.List(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list tags")
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, domainTagsToResponse(tags))
}

// createTag handles POST /tags.
func (s *Server) createTag(w http.ResponseWriter, r *http.Request) {
	var req createTagRequest
	if !decodeBody(w, r, &req) {
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if err := s.validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request payload: "+err.Error())
		return
	}

	tag, err := s.tags.Create(r.Context(), req.Name, req.Color)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, domainTagToResponse(tag))
}

// setPaperTags handles PUT /papers/{paperID}/tags.
func (s *Server) setPaperTags(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUID(w, chi.URLParam(r, "paperID"), "paper ID")
	if !ok {
		return
	}

	var req setTagsRequest
	if !decodeBody(w, r, &req) {
		return
	}

	tags, err := s.tags.SetPaperTags(r.Context(), id, req.Tags)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	s.backups.Trigger()
	writeJSON(w, http.StatusOK, domainTagsToResponse(tags))
}

// searchPapers handles GET /search.
func (s *Server) searchPapers(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("query"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	results, err := s.searcher.Search(r.Context(), query, 0)
	if err != nil {
		s.metrics.RecordSearchFailed()
		s.logger.Error().Err(err).Str("query", query).Msg("search failed")

		// Surface the upstream status code when the index itself rejected us.
		var apiErr *domain.ExternalAPIError
		if errors.As(err, &apiErr) && apiErr.StatusCode >= 400 {
			writeError(w, apiErr.StatusCode, "failed to search arXiv")
			return
		}
		writeDomainError(w, err)
		return
	}

	s.metrics.RecordSearch()
	writeJSON(w, http.StatusOK, candidatesToSearchResults(results))
}

// getRecommendations handles GET /recommendations.
func (s *Server) getRecommendations(w http.ResponseWriter, r *http.Request) {
	forceRefresh := false
	if raw := r.URL.Query().Get("refresh"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "refresh must be a boolean")
			return
		}
		forceRefresh = parsed
	}

	result, err := s.recommender.Get(r.Context(), forceRefresh)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to build recommendations")
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// syncStatus handles GET /sync-status.
func (s *Server) syncStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.backups.SyncStatus())
}

// decodeBody reads and unmarshals a JSON request body, writing a 400 error
// response on failure. Returns true on success.
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodySize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return false
	}

	if err := json.Unmarshal(body, v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return false
	}
	return true
}

// parseDate parses an optional YYYY-MM-DD date string, writing a 400 error
// response if malformed. Returns nil and true when the input is nil.
func parseDate(w http.ResponseWriter, raw *string) (*time.Time, bool) {
	if raw == nil || *raw == "" {
		return nil, true
	}
	parsed, err := time.Parse(dateLayout, *raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "published_date must be in YYYY-MM-DD format")
		return nil, false
	}
	return &parsed, true
}

// writeDomainError maps domain errors to appropriate HTTP status codes and
// writes a JSON error response. Internal error details are not leaked to clients.
func writeDomainError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "resource not found")
	case errors.Is(err, domain.ErrInvalidInput):
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			writeError(w, http.StatusBadRequest, ve.Error())
		} else {
			writeError(w, http.StatusBadRequest, "invalid input")
		}
	case errors.Is(err, domain.ErrAlreadyExists):
		writeError(w, http.StatusConflict, "resource already exists")
	case errors.Is(err, domain.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "rate limited")
	case errors.Is(err, domain.ErrServiceUnavailable):
		writeError(w, http.StatusServiceUnavailable, "service unavailable")
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// parseUUID parses a UUID from a string, writing a 400 error response if invalid.
// The parse error details are not included to avoid echoing potentially malicious input.
func parseUUID(w http.ResponseWriter, s, fieldName string) (uuid.UUID, bool) {
	id, err := uuid.Parse(s)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("%s must be a valid UUID", fieldName))
		return uuid.Nil, false
	}
	return id, true
}
