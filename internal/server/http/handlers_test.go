package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kshitijsachan/papers/internal/backup"
	"github.com/kshitijsachan/papers/internal/domain"
	"github.com/kshitijsachan/papers/internal/observability"
	"github.com/kshitijsachan/papers/internal/repository"
)

// Shared across tests; promauto panics on duplicate metric registration.
var testMetrics = observability.NewMetrics("httpserver_test")

// ---------------------------------------------------------------------------
// Mock implementations
// ---------------------------------------------------------------------------

// mockPaperRepo implements repository.PaperRepository for HTTP handler tests.
type mockPaperRepo struct {
	createFn      func(ctx context.Context, paper *domain.Paper) (*domain.Paper, error)
	getByIDFn     func(ctx context.Context, id uuid.UUID) (*domain.Paper, error)
	listFn        func(ctx context.Context, filter repository.PaperFilter) ([]*domain.Paper, error)
	updateFn      func(ctx context.Context, id uuid.UUID, update repository.PaperUpdate) (*domain.Paper, error)
	updateNotesFn func(ctx context.Context, id uuid.UUID, update repository.NotesUpdate) (*domain.Paper, error)
	deleteFn      func(ctx context.Context, id uuid.UUID) error
}

func (m *mockPaperRepo) Create(ctx context.Context, paper *domain.Paper) (*domain.Paper, error) {
	if m.createFn != nil {
		return m.createFn(ctx, paper)
	}
	return paper, nil
}

func (m *mockPaperRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Paper, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (m *mockPaperRepo) List(ctx context.Context, filter repository.PaperFilter) ([]*domain.Paper, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	if m.listFn != nil {
		return m.listFn(ctx, filter)
	}
	return nil, nil
}

func (m *mockPaperRepo) ListPapers(ctx context.Context) ([]*domain.Paper, error) {
	return m.List(ctx, repository.PaperFilter{})
}

func (m *mockPaperRepo) Update(ctx context.Context, id uuid.UUID, update repository.PaperUpdate) (*domain.Paper, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, id, update)
	}
	return nil, domain.ErrNotFound
}

func (m *mockPaperRepo) UpdateNotes(ctx context.Context, id uuid.UUID, update repository.NotesUpdate) (*domain.Paper, error) {
	if m.updateNotesFn != nil {
		return m.updateNotesFn(ctx, id, update)
	}
	return nil, domain.ErrNotFound
}

func (m *mockPaperRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return domain.ErrNotFound
}

// mockTagRepo implements repository.TagRepository for HTTP handler tests.
type mockTagRepo struct {
	listFn         func(ctx context.Context) ([]*domain.Tag, error)
	createFn       func(ctx context.Context, name, color string) (*domain.Tag, error)
	setPaperTagsFn func(ctx context.Context, paperID uuid.UUID, names []string) ([]*domain.Tag, error)
}

func (m *mockTagRepo) List(ctx context.Context) ([]*domain.Tag, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}

func (m *mockTagRepo) Create(ctx context.Context, name, color string) (*domain.Tag, error) {
	if m.createFn != nil {
		return m.createFn(ctx, name, color)
	}
	return &domain.Tag{ID: uuid.New(), Name: name, Color: color}, nil
}

func (m *mockTagRepo) ListForPaper(_ context.Context, _ uuid.UUID) ([]*domain.Tag, error) {
	return nil, nil
}

func (m *mockTagRepo) ForPapers(_ context.Context, _ []uuid.UUID) (map[uuid.UUID][]*domain.Tag, error) {
	return map[uuid.UUID][]*domain.Tag{}, nil
}

func (m *mockTagRepo) SetPaperTags(ctx context.Context, paperID uuid.UUID, names []string) ([]*domain.Tag, error) {
	if m.setPaperTagsFn != nil {
		return m.setPaperTagsFn(ctx, paperID, names)
	}
	return nil, nil
}

// mockRecommender implements Recommender for HTTP handler tests.
type mockRecommender struct {
	getFn func(ctx context.Context, forceRefresh bool) (*domain.RecommendationResult, error)
}

func (m *mockRecommender) Get(ctx context.Context, forceRefresh bool) (*domain.RecommendationResult, error) {
	if m.getFn != nil {
		return m.getFn(ctx, forceRefresh)
	}
	return &domain.RecommendationResult{GeneratedAt: time.Now()}, nil
}

// mockSearcher implements Searcher for HTTP handler tests.
type mockSearcher struct {
	searchFn func(ctx context.Context, query string, maxResults int) ([]domain.CandidatePaper, error)
}

func (m *mockSearcher) Search(ctx context.Context, query string, maxResults int) ([]domain.CandidatePaper, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, query, maxResults)
	}
	return nil, nil
}

// mockBackup implements BackupService for HTTP handler tests.
type mockBackup struct {
	triggers atomic.Int64
	status   backup.SyncStatus
}

func (m *mockBackup) Trigger() {
	m.triggers.Add(1)
}

func (m *mockBackup) SyncStatus() backup.SyncStatus {
	return m.status
}

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

type serverDeps struct {
	papers      repository.PaperRepository
	tags        repository.TagRepository
	recommender Recommender
	searcher    Searcher
	backups     BackupService
}

// newTestServer creates a Server configured for testing with mocked dependencies.
func newTestServer(deps serverDeps) *Server {
	if deps.papers == nil {
		deps.papers = &mockPaperRepo{}
	}
	if deps.tags == nil {
		deps.tags = &mockTagRepo{}
	}
	if deps.recommender == nil {
		deps.recommender = &mockRecommender{}
	}
	if deps.searcher == nil {
		deps.searcher = &mockSearcher{}
	}
	if deps.backups == nil {
		deps.backups = &mockBackup{}
	}

	s := &Server{
		papers:      deps.papers,
		tags:        deps.tags,
		recommender: deps.recommender,
		searcher:    deps.searcher,
		backups:     deps.backups,
		validate:    validator.New(),
		logger:      zerolog.Nop(),
		metrics:     testMetrics,
	}
	s.router = s.buildRouter()
	return s
}

// serveHTTP dispatches a request through the test server's router and returns the recorder.
func serveHTTP(s *Server, r *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, r)
	return rr
}

// decodeJSON decodes a JSON response body into the given target.
func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder, target interface{}) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(target); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
}

func samplePaper(id uuid.UUID) *domain.Paper {
	published := time.Date(2024, 5, 17, 0, 0, 0, 0, time.UTC)
	return &domain.Paper{
		ID:            id,
		Title:         "Attention Is All You Need",
		Authors:       "Ashish Vaswani, Noam Shazeer",
		Abstract:      "We propose the Transformer.",
		URL:           "https://arxiv.org/abs/1706.03762",
		ArxivURL:      "https://arxiv.org/abs/1706.03762",
		PublishedDate: &published,
		Notes:         "seminal",
		Tags: []*domain.Tag{
			{ID: uuid.New(), Name: "transformers", Color: "#6366f1"},
		},
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
}

// ---------------------------------------------------------------------------
// Tests: papers
// ---------------------------------------------------------------------------

func TestListPapers_Success(t *testing.T) {
	id := uuid.New()
	var capturedFilter repository.PaperFilter

	papers := &mockPaperRepo{
		listFn: func(_ context.Context, filter repository.PaperFilter) ([]*domain.Paper, error) {
			capturedFilter = filter
			return []*domain.Paper{samplePaper(id)}, nil
		},
	}

	srv := newTestServer(serverDeps{papers: papers})
	req := httptest.NewRequest(http.MethodGet, "/papers?q=attention&sort=title&order=asc", nil)

	rr := serveHTTP(srv, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	if capturedFilter.Query != "attention" {
		t.Errorf("expected query 'attention', got %q", capturedFilter.Query)
	}
	if capturedFilter.Sort != repository.SortTitle {
		t.Errorf("expected sort title, got %q", capturedFilter.Sort)
	}
	if capturedFilter.Order != "asc" {
		t.Errorf("expected order asc, got %q", capturedFilter.Order)
	}

	var resp []paperResponse
	decodeJSON(t, rr, &resp)
	if len(resp) != 1 {
		t.Fatalf("expected 1 paper, got %d", len(resp))
	}
	if resp[0].ID != id.String() {
		t.Errorf("expected id %s, got %s", id, resp[0].ID)
	}
	if resp[0].PublishedDate == nil || *resp[0].PublishedDate != "2024-05-17" {
		t.Errorf("expected published_date 2024-05-17, got %v", resp[0].PublishedDate)
	}
	if len(resp[0].Tags) != 1 || resp[0].Tags[0].Name != "transformers" {
		t.Errorf("expected transformers tag, got %+v", resp[0].Tags)
	}
}

func TestListPapers_InvalidSort(t *testing.T) {
	srv := newTestServer(serverDeps{})
	req := httptest.NewRequest(http.MethodGet, "/papers?sort=updated_at", nil)

	rr := serveHTTP(srv, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestCreatePaper_Success(t *testing.T) {
	var createdPaper *domain.Paper
	papers := &mockPaperRepo{
		createFn: func(_ context.Context, paper *domain.Paper) (*domain.Paper, error) {
			paper.ID = uuid.New()
			paper.CreatedAt = time.Now().UTC()
			paper.UpdatedAt = paper.CreatedAt
			paper.Tags = []*domain.Tag{}
			createdPaper = paper
			return paper, nil
		},
	}
	backups := &mockBackup{}

	srv := newTestServer(serverDeps{papers: papers, backups: backups})

	body := `{"title":"  Scaling Laws  ","authors":"Kaplan et al.","arxiv_url":"https://arxiv.org/abs/2001.08361","published_date":"2020-01-23"}`
	req := httptest.NewRequest(http.MethodPost, "/papers", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")

	rr := serveHTTP(srv, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}

	if createdPaper == nil {
		t.Fatal("expected createFn to be called")
	}
	if createdPaper.Title != "Scaling Laws" {
		t.Errorf("expected trimmed title, got %q", createdPaper.Title)
	}
	if createdPaper.PublishedDate == nil || createdPaper.PublishedDate.Format("2006-01-02") != "2020-01-23" {
		t.Errorf("expected published date 2020-01-23, got %v", createdPaper.PublishedDate)
	}

	if got := backups.triggers.Load(); got != 1 {
		t.Errorf("expected 1 backup trigger, got %d", got)
	}

	var resp paperResponse
	decodeJSON(t, rr, &resp)
	if resp.ID == "" {
		t.Error("expected id to be set")
	}
}

func TestCreatePaper_MissingTitle(t *testing.T) {
	backups := &mockBackup{}
	srv := newTestServer(serverDeps{backups: backups})

	req := httptest.NewRequest(http.MethodPost, "/papers", bytes.NewBufferString(`{"title":"   "}`))
	rr := serveHTTP(srv, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp map[string]string
	decodeJSON(t, rr, &resp)
	if resp["error"] != "title is required" {
		t.Errorf("expected error 'title is required', got %q", resp["error"])
	}
	if got := backups.triggers.Load(); got != 0 {
		t.Errorf("expected no backup trigger, got %d", got)
	}
}

func TestCreatePaper_InvalidURL(t *testing.T) {
	srv := newTestServer(serverDeps{})

	body := `{"title":"Some Paper","url":"not a url"}`
	req := httptest.NewRequest(http.MethodPost, "/papers", bytes.NewBufferString(body))
	rr := serveHTTP(srv, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestCreatePaper_InvalidDate(t *testing.T) {
	srv := newTestServer(serverDeps{})

	body := `{"title":"Some Paper","published_date":"17-05-2024"}`
	req := httptest.NewRequest(http.MethodPost, "/papers", bytes.NewBufferString(body))
	rr := serveHTTP(srv, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestCreatePaper_InvalidJSON(t *testing.T) {
	srv := newTestServer(serverDeps{})

	req := httptest.NewRequest(http.MethodPost, "/papers", bytes.NewBufferString(`{not json`))
	rr := serveHTTP(srv, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestGetPaper_NotFound(t *testing.T) {
	srv := newTestServer(serverDeps{})

	req := httptest.NewRequest(http.MethodGet, "/papers/"+uuid.NewString(), nil)
	rr := serveHTTP(srv, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestGetPaper_InvalidUUID(t *testing.T) {
	srv := newTestServer(serverDeps{})

	req := httptest.NewRequest(http.MethodGet, "/papers/not-a-uuid", nil)
	rr := serveHTTP(srv, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestUpdatePaper_Success(t *testing.T) {
	id := uuid.New()
	var capturedUpdate repository.PaperUpdate

	papers := &mockPaperRepo{
		updateFn: func(_ context.Context, gotID uuid.UUID, update repository.PaperUpdate) (*domain.Paper, error) {
			if gotID != id {
				t.Errorf("expected id %s, got %s", id, gotID)
			}
			capturedUpdate = update
			p := samplePaper(id)
			p.ReadStatus = true
			return p, nil
		},
	}
	backups := &mockBackup{}

	srv := newTestServer(serverDeps{papers: papers, backups: backups})

	body := `{"read_status":true,"starred":false}`
	req := httptest.NewRequest(http.MethodPatch, "/papers/"+id.String(), bytes.NewBufferString(body))
	rr := serveHTTP(srv, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	if capturedUpdate.ReadStatus == nil || !*capturedUpdate.ReadStatus {
		t.Error("expected read_status true in update")
	}
	if capturedUpdate.Starred == nil || *capturedUpdate.Starred {
		t.Error("expected starred false in update")
	}
	if capturedUpdate.PublishedDate != nil {
		t.Error("expected published date to be unchanged")
	}
	if got := backups.triggers.Load(); got != 1 {
		t.Errorf("expected 1 backup trigger, got %d", got)
	}
}

func TestDeletePaper(t *testing.T) {
	id := uuid.New()

	t.Run("success", func(t *testing.T) {
		papers := &mockPaperRepo{
			deleteFn: func(_ context.Context, gotID uuid.UUID) error {
				if gotID != id {
					t.Errorf("expected id %s, got %s", id, gotID)
				}
				return nil
			},
		}
		backups := &mockBackup{}
		srv := newTestServer(serverDeps{papers: papers, backups: backups})

		req := httptest.NewRequest(http.MethodDelete, "/papers/"+id.String(), nil)
		rr := serveHTTP(srv, req)

		if rr.Code != http.StatusNoContent {
			t.Fatalf("expected status 204, got %d: %s", rr.Code, rr.Body.String())
		}
		if got := backups.triggers.Load(); got != 1 {
			t.Errorf("expected 1 backup trigger, got %d", got)
		}
	})

	t.Run("not found", func(t *testing.T) {
		backups := &mockBackup{}
		srv := newTestServer(serverDeps{backups: backups})

		req := httptest.NewRequest(http.MethodDelete, "/papers/"+uuid.NewString(), nil)
		rr := serveHTTP(srv, req)

		if rr.Code != http.StatusNotFound {
			t.Fatalf("expected status 404, got %d: %s", rr.Code, rr.Body.String())
		}
		if got := backups.triggers.Load(); got != 0 {
			t.Errorf("expected no backup trigger, got %d", got)
		}
	})
}

// ---------------------------------------------------------------------------
// Tests: notes
// ---------------------------------------------------------------------------

func TestGetNotes(t *testing.T) {
	id := uuid.New()
	papers := &mockPaperRepo{
		getByIDFn: func(_ context.Context, _ uuid.UUID) (*domain.Paper, error) {
			p := samplePaper(id)
			p.Notes = "read twice"
			p.Experiments = "try smaller heads"
			return p, nil
		},
	}

	srv := newTestServer(serverDeps{papers: papers})
	req := httptest.NewRequest(http.MethodGet, "/papers/"+id.String()+"/notes", nil)
	rr := serveHTTP(srv, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp notesResponse
	decodeJSON(t, rr, &resp)
	if resp.Notes != "read twice" {
		t.Errorf("expected notes 'read twice', got %q", resp.Notes)
	}
	if resp.Experiments != "try smaller heads" {
		t.Errorf("expected experiments 'try smaller heads', got %q", resp.Experiments)
	}
}

func TestUpdateNotes(t *testing.T) {
	id := uuid.New()
	var capturedUpdate repository.NotesUpdate

	papers := &mockPaperRepo{
		updateNotesFn: func(_ context.Context, _ uuid.UUID, update repository.NotesUpdate) (*domain.Paper, error) {
			capturedUpdate = update
			p := samplePaper(id)
			p.Notes = *update.Notes
			return p, nil
		},
	}
	backups := &mockBackup{}

	srv := newTestServer(serverDeps{papers: papers, backups: backups})

	body := `{"notes":"updated notes"}`
	req := httptest.NewRequest(http.MethodPut, "/papers/"+id.String()+"/notes", bytes.NewBufferString(body))
	rr := serveHTTP(srv, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	if capturedUpdate.Notes == nil || *capturedUpdate.Notes != "updated notes" {
		t.Errorf("expected notes update, got %+v", capturedUpdate)
	}
	if capturedUpdate.Experiments != nil {
		t.Error("expected experiments to be unchanged")
	}
	if got := backups.triggers.Load(); got != 1 {
		t.Errorf("expected 1 backup trigger, got %d", got)
	}
}

// ---------------------------------------------------------------------------
// Tests: code URLs
// ---------------------------------------------------------------------------

func TestGetCodeURL(t *testing.T) {
	id := uuid.New()

	t.Run("found in abstract", func(t *testing.T) {
		papers := &mockPaperRepo{
			getByIDFn: func(_ context.Context, _ uuid.UUID) (*domain.Paper, error) {
				p := samplePaper(id)
				p.Abstract = "Code is available at https://github.com/example/repo."
				return p, nil
			},
		}
		srv := newTestServer(serverDeps{papers: papers})

		req := httptest.NewRequest(http.MethodGet, "/papers/"+id.String()+"/code-url", nil)
		rr := serveHTTP(srv, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var resp codeURLResponse
		decodeJSON(t, rr, &resp)
		if resp.CodeURL == nil || *resp.CodeURL != "https://github.com/example/repo" {
			t.Errorf("expected github URL, got %v", resp.CodeURL)
		}
	})

	t.Run("no repository mentioned", func(t *testing.T) {
		papers := &mockPaperRepo{
			getByIDFn: func(_ context.Context, _ uuid.UUID) (*domain.Paper, error) {
				return samplePaper(id), nil
			},
		}
		srv := newTestServer(serverDeps{papers: papers})

		req := httptest.NewRequest(http.MethodGet, "/papers/"+id.String()+"/code-url", nil)
		rr := serveHTTP(srv, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var resp map[string]interface{}
		decodeJSON(t, rr, &resp)
		if resp["code_url"] != nil {
			t.Errorf("expected null code_url, got %v", resp["code_url"])
		}
	})
}

func TestBatchCodeURLs(t *testing.T) {
	withCode := uuid.New()
	withoutCode := uuid.New()
	missing := uuid.New()

	papers := &mockPaperRepo{
		getByIDFn: func(_ context.Context, id uuid.UUID) (*domain.Paper, error) {
			switch id {
			case withCode:
				p := samplePaper(id)
				p.Abstract = "See https://github.com/example/code for the implementation."
				return p, nil
			case withoutCode:
				return samplePaper(id), nil
			default:
				return nil, domain.NewNotFoundError("paper", id.String())
			}
		},
	}

	srv := newTestServer(serverDeps{papers: papers})

	body, _ := json.Marshal([]string{withCode.String(), withoutCode.String(), missing.String(), "not-a-uuid"})
	req := httptest.NewRequest(http.MethodPost, "/papers/code-urls", bytes.NewBuffer(body))
	rr := serveHTTP(srv, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp map[string]*string
	decodeJSON(t, rr, &resp)

	if len(resp) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(resp))
	}
	if resp[withCode.String()] == nil || *resp[withCode.String()] != "https://github.com/example/code" {
		t.Errorf("expected github URL for %s, got %v", withCode, resp[withCode.String()])
	}
	if resp[withoutCode.String()] != nil {
		t.Errorf("expected null for paper without code, got %v", resp[withoutCode.String()])
	}
	if resp[missing.String()] != nil {
		t.Errorf("expected null for missing paper, got %v", resp[missing.String()])
	}
	if resp["not-a-uuid"] != nil {
		t.Errorf("expected null for malformed ID, got %v", resp["not-a-uuid"])
	}
}

// ---------------------------------------------------------------------------
// Tests: tags
// ---------------------------------------------------------------------------

func TestListTags(t *testing.T) {
	tags := &mockTagRepo{
		listFn: func(_ context.Context) ([]*domain.Tag, error) {
			return []*domain.Tag{
				{ID: uuid.New(), Name: "rl", Color: "#ff0000"},
				{ID: uuid.New(), Name: "transformers", Color: domain.DefaultTagColor},
			}, nil
		},
	}

	srv := newTestServer(serverDeps{tags: tags})
	req := httptest.NewRequest(http.MethodGet, "/tags", nil)
	rr := serveHTTP(srv, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp []tagResponse
	decodeJSON(t, rr, &resp)
	if len(resp) != 2 {
		t.Fatalf("expected 2 tags, got %d", len(resp))
	}
	if resp[0].Name != "rl" || resp[1].Name != "transformers" {
		t.Errorf("unexpected tag names: %+v", resp)
	}
}

func TestCreateTag(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		srv := newTestServer(serverDeps{})

		body := `{"name":"quantization","color":"#00ff00"}`
		req := httptest.NewRequest(http.MethodPost, "/tags", bytes.NewBufferString(body))
		rr := serveHTTP(srv, req)

		if rr.Code != http.StatusCreated {
			t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
		}

		var resp tagResponse
		decodeJSON(t, rr, &resp)
		if resp.Name != "quantization" {
			t.Errorf("expected name quantization, got %q", resp.Name)
		}
		if resp.Color != "#00ff00" {
			t.Errorf("expected color #00ff00, got %q", resp.Color)
		}
	})

	t.Run("missing name", func(t *testing.T) {
		srv := newTestServer(serverDeps{})

		req := httptest.NewRequest(http.MethodPost, "/tags", bytes.NewBufferString(`{"color":"#00ff00"}`))
		rr := serveHTTP(srv, req)

		if rr.Code != http.StatusBadRequest {
			t.Fatalf("expected status 400, got %d: %s", rr.Code, rr.Body.String())
		}
	})

	t.Run("malformed color", func(t *testing.T) {
		srv := newTestServer(serverDeps{})

		req := httptest.NewRequest(http.MethodPost, "/tags", bytes.NewBufferString(`{"name":"rl","color":"bright red"}`))
		rr := serveHTTP(srv, req)

		if rr.Code != http.StatusBadRequest {
			t.Fatalf("expected status 400, got %d: %s", rr.Code, rr.Body.String())
		}
	})

	t.Run("duplicate name", func(t *testing.T) {
		tags := &mockTagRepo{
			createFn: func(_ context.Context, name, _ string) (*domain.Tag, error) {
				return nil, domain.ErrAlreadyExists
			},
		}
		srv := newTestServer(serverDeps{tags: tags})

		req := httptest.NewRequest(http.MethodPost, "/tags", bytes.NewBufferString(`{"name":"rl"}`))
		rr := serveHTTP(srv, req)

		if rr.Code != http.StatusConflict {
			t.Fatalf("expected status 409, got %d: %s", rr.Code, rr.Body.String())
		}
	})
}

func TestSetPaperTags(t *testing.T) {
	id := uuid.New()
	var capturedNames []string

	tags := &mockTagRepo{
		setPaperTagsFn: func(_ context.Context, paperID uuid.UUID, names []string) ([]*domain.Tag, error) {
			if paperID != id {
				t.Errorf("expected paper id %s, got %s", id, paperID)
			}
			capturedNames = names
			out := make([]*domain.Tag, 0, len(names))
			for _, name := range names {
				out = append(out, &domain.Tag{ID: uuid.New(), Name: name, Color: domain.DefaultTagColor})
			}
			return out, nil
		},
	}
	backups := &mockBackup{}

	srv := newTestServer(serverDeps{tags: tags, backups: backups})

	body := `{"tags":["rl","safety"]}`
	req := httptest.NewRequest(http.MethodPut, "/papers/"+id.String()+"/tags", bytes.NewBufferString(body))
	rr := serveHTTP(srv, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	if len(capturedNames) != 2 || capturedNames[0] != "rl" || capturedNames[1] != "safety" {
		t.Errorf("unexpected tag names: %v", capturedNames)
	}
	if got := backups.triggers.Load(); got != 1 {
		t.Errorf("expected 1 backup trigger, got %d", got)
	}
}

// ---------------------------------------------------------------------------
// Tests: search
// ---------------------------------------------------------------------------

func TestSearchPapers(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		var capturedQuery string
		searcher := &mockSearcher{
			searchFn: func(_ context.Context, query string, _ int) ([]domain.CandidatePaper, error) {
				capturedQuery = query
				return []domain.CandidatePaper{
					{
						Title:         "Deep Reinforcement Learning",
						Authors:       "Jane Doe",
						ArxivID:       "2301.12345",
						URL:           "https://arxiv.org/abs/2301.12345",
						PublishedDate: "2023-01-30",
					},
				}, nil
			},
		}

		srv := newTestServer(serverDeps{searcher: searcher})
		req := httptest.NewRequest(http.MethodGet, "/search?query=deep+rl", nil)
		rr := serveHTTP(srv, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}
		if capturedQuery != "deep rl" {
			t.Errorf("expected query 'deep rl', got %q", capturedQuery)
		}

		var resp []searchResultResponse
		decodeJSON(t, rr, &resp)
		if len(resp) != 1 {
			t.Fatalf("expected 1 result, got %d", len(resp))
		}
		if resp[0].ArxivID != "2301.12345" {
			t.Errorf("expected arxiv_id 2301.12345, got %q", resp[0].ArxivID)
		}
	})

	t.Run("missing query", func(t *testing.T) {
		srv := newTestServer(serverDeps{})
		req := httptest.NewRequest(http.MethodGet, "/search", nil)
		rr := serveHTTP(srv, req)

		if rr.Code != http.StatusBadRequest {
			t.Fatalf("expected status 400, got %d: %s", rr.Code, rr.Body.String())
		}
	})

	t.Run("upstream status propagated", func(t *testing.T) {
		searcher := &mockSearcher{
			searchFn: func(_ context.Context, _ string, _ int) ([]domain.CandidatePaper, error) {
				return nil, domain.NewExternalAPIError("arxiv", http.StatusBadGateway, "bad gateway", nil)
			},
		}

		srv := newTestServer(serverDeps{searcher: searcher})
		req := httptest.NewRequest(http.MethodGet, "/search?query=anything", nil)
		rr := serveHTTP(srv, req)

		if rr.Code != http.StatusBadGateway {
			t.Fatalf("expected status 502, got %d: %s", rr.Code, rr.Body.String())
		}
	})
}

// ---------------------------------------------------------------------------
// Tests: recommendations and sync status
// ---------------------------------------------------------------------------

func TestGetRecommendations(t *testing.T) {
	t.Run("default serves cached", func(t *testing.T) {
		var capturedRefresh bool
		recommender := &mockRecommender{
			getFn: func(_ context.Context, forceRefresh bool) (*domain.RecommendationResult, error) {
				capturedRefresh = forceRefresh
				return &domain.RecommendationResult{
					NewPapers: []domain.RecommendedPaper{
						{Title: "Fresh Paper", RelevanceScore: 8.0, Source: domain.SourceArxivDaily},
					},
					RelatedPapers: []domain.RecommendedPaper{},
					GeneratedAt:   time.Now().UTC(),
				}, nil
			},
		}

		srv := newTestServer(serverDeps{recommender: recommender})
		req := httptest.NewRequest(http.MethodGet, "/recommendations", nil)
		rr := serveHTTP(srv, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}
		if capturedRefresh {
			t.Error("expected forceRefresh false by default")
		}

		var resp domain.RecommendationResult
		decodeJSON(t, rr, &resp)
		if len(resp.NewPapers) != 1 || resp.NewPapers[0].Title != "Fresh Paper" {
			t.Errorf("unexpected new papers: %+v", resp.NewPapers)
		}
	})

	t.Run("refresh=true forces rebuild", func(t *testing.T) {
		var capturedRefresh bool
		recommender := &mockRecommender{
			getFn: func(_ context.Context, forceRefresh bool) (*domain.RecommendationResult, error) {
				capturedRefresh = forceRefresh
				return &domain.RecommendationResult{GeneratedAt: time.Now().UTC()}, nil
			},
		}

		srv := newTestServer(serverDeps{recommender: recommender})
		req := httptest.NewRequest(http.MethodGet, "/recommendations?refresh=true", nil)
		rr := serveHTTP(srv, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}
		if !capturedRefresh {
			t.Error("expected forceRefresh true")
		}
	})

	t.Run("invalid refresh value", func(t *testing.T) {
		srv := newTestServer(serverDeps{})
		req := httptest.NewRequest(http.MethodGet, "/recommendations?refresh=maybe", nil)
		rr := serveHTTP(srv, req)

		if rr.Code != http.StatusBadRequest {
			t.Fatalf("expected status 400, got %d: %s", rr.Code, rr.Body.String())
		}
	})

	t.Run("rate limited upstream", func(t *testing.T) {
		recommender := &mockRecommender{
			getFn: func(_ context.Context, _ bool) (*domain.RecommendationResult, error) {
				return nil, domain.NewRateLimitError("semantic_scholar", time.Second)
			},
		}

		srv := newTestServer(serverDeps{recommender: recommender})
		req := httptest.NewRequest(http.MethodGet, "/recommendations", nil)
		rr := serveHTTP(srv, req)

		if rr.Code != http.StatusTooManyRequests {
			t.Fatalf("expected status 429, got %d: %s", rr.Code, rr.Body.String())
		}
	})
}

func TestSyncStatus(t *testing.T) {
	backups := &mockBackup{
		status: backup.SyncStatus{Synced: true, LastBackup: true},
	}

	srv := newTestServer(serverDeps{backups: backups})
	req := httptest.NewRequest(http.MethodGet, "/sync-status", nil)
	rr := serveHTTP(srv, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp backup.SyncStatus
	decodeJSON(t, rr, &resp)
	if !resp.Synced || !resp.LastBackup {
		t.Errorf("unexpected sync status: %+v", resp)
	}
}
