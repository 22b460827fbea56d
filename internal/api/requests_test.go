package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/colplan/colplan/internal/auth"
	"github.com/colplan/colplan/internal/requests"
)

type memoryRegistry struct {
	nextID int64
	items  map[int64]requests.Request
}

func newMemoryRegistry() *memoryRegistry {
	return &memoryRegistry{nextID: 1, items: map[int64]requests.Request{}}
}

func (m *memoryRegistry) Create(_ context.Context, in requests.CreateInput) (requests.Request, error) {
	if err := in.Validate(); err != nil {
		return requests.Request{}, err
	}
	request := requests.Request{
		ID:               m.nextID,
		TableName:        in.TableName,
		Requirement:      in.Requirement,
		TechnicalSummary: in.TechnicalSummary,
		RequiredColumns:  in.RequiredColumns,
		MissingColumns:   in.MissingColumns,
		AvailableColumns: in.AvailableColumns,
		Reason:           in.Reason,
		RequestedBy:      in.RequestedBy,
		Status:           requests.StatusPending,
		CreatedAt:        time.Now(),
	}
	m.items[m.nextID] = request
	m.nextID++
	return request, nil
}

func (m *memoryRegistry) List(_ context.Context, status string) ([]requests.Request, error) {
	if status != "" && !requests.ValidStatus(status) {
		return nil, requests.ErrInvalidStatus
	}
	listed := make([]requests.Request, 0, len(m.items))
	for _, request := range m.items {
		if status == "" || request.Status == status {
			listed = append(listed, request)
		}
	}
	return listed, nil
}

func (m *memoryRegistry) Get(_ context.Context, id int64) (requests.Request, error) {
	request, ok := m.items[id]
	if !ok {
		return requests.Request{}, requests.ErrNotFound
	}
	return request, nil
}

func (m *memoryRegistry) Review(_ context.Context, id int64, in requests.ReviewInput) (requests.Request, error) {
	if !requests.ValidStatus(in.Status) || in.Status == requests.StatusPending {
		return requests.Request{}, requests.ErrInvalidStatus
	}
	request, ok := m.items[id]
	if !ok {
		return requests.Request{}, requests.ErrNotFound
	}
	now := time.Now()
	request.Status = in.Status
	request.ReviewNote = in.ReviewNote
	request.ReviewedAt = &now
	m.items[id] = request
	return request, nil
}

func TestCreateRequestUsesAuthenticatedSubject(t *testing.T) {
	cfg := testConfig(t, map[string]string{"COLPLAN_AUTH_REQUIRED": "true"})
	validator, err := auth.NewStaticAPIKeyValidator("k1:alice:analyst")
	if err != nil {
		t.Fatalf("validator setup failed: %v", err)
	}
	registry := newMemoryRegistry()
	h := NewHandler(cfg, Dependencies{
		AuthMiddleware: auth.Middleware(nil, validator),
		Requests:       registry,
	})

	req := httptest.NewRequest(http.MethodPost, "/v1/requests",
		jsonBody(`{"table_name": "crm_customers", "requirement": "average customer age", "reason": "date_of_birth missing"}`))
	req.Header.Set("X-API-Key", "k1")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var created requests.Request
	if err := json.Unmarshal(rr.Body.Bytes(), &created); err != nil {
		t.Fatalf("json decode failed: %v", err)
	}
	if created.RequestedBy != "alice" {
		t.Fatalf("requested_by = %q", created.RequestedBy)
	}
	if created.Status != requests.StatusPending {
		t.Fatalf("status = %q", created.Status)
	}
}

func TestCreateRequestKeepsPlanContext(t *testing.T) {
	registry := newMemoryRegistry()
	h := NewHandler(testConfig(t, nil), Dependencies{Requests: registry})

	rr := postJSON(h, "/v1/requests", `{
		"table_name": "crm_customers",
		"requirement": "average customer age",
		"technical_summary": "Average of a date_of_birth-derived age across all customers.",
		"required_columns": ["date_of_birth", "company_name"],
		"missing_columns": ["date_of_birth"],
		"available_columns": ["company_name"],
		"reason": "date_of_birth missing"
	}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}

	stored, err := registry.Get(context.Background(), 1)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if stored.TechnicalSummary == "" {
		t.Fatal("technical summary not stored")
	}
	if len(stored.RequiredColumns) != 2 || stored.RequiredColumns[0] != "date_of_birth" {
		t.Fatalf("required columns = %v", stored.RequiredColumns)
	}
	if len(stored.MissingColumns) != 1 || stored.MissingColumns[0] != "date_of_birth" {
		t.Fatalf("missing columns = %v", stored.MissingColumns)
	}
	if len(stored.AvailableColumns) != 1 || stored.AvailableColumns[0] != "company_name" {
		t.Fatalf("available columns = %v", stored.AvailableColumns)
	}
}

func TestCreateRequestValidation(t *testing.T) {
	h := NewHandler(testConfig(t, nil), Dependencies{Requests: newMemoryRegistry()})

	rr := postJSON(h, "/v1/requests", `{"table_name": "crm_customers"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestListRequestsRequiresAdminRole(t *testing.T) {
	cfg := testConfig(t, map[string]string{"COLPLAN_AUTH_REQUIRED": "true"})
	validator, err := auth.NewStaticAPIKeyValidator("k1:alice:analyst,k2:bob:admin")
	if err != nil {
		t.Fatalf("validator setup failed: %v", err)
	}
	h := NewHandler(cfg, Dependencies{
		AuthMiddleware: auth.Middleware(nil, validator),
		Requests:       newMemoryRegistry(),
	})

	analystReq := httptest.NewRequest(http.MethodGet, "/v1/requests", nil)
	analystReq.Header.Set("X-API-Key", "k1")
	analystResp := httptest.NewRecorder()
	h.ServeHTTP(analystResp, analystReq)
	if analystResp.Code != http.StatusForbidden {
		t.Fatalf("analyst status = %d", analystResp.Code)
	}

	adminReq := httptest.NewRequest(http.MethodGet, "/v1/requests", nil)
	adminReq.Header.Set("X-API-Key", "k2")
	adminResp := httptest.NewRecorder()
	h.ServeHTTP(adminResp, adminReq)
	if adminResp.Code != http.StatusOK {
		t.Fatalf("admin status = %d", adminResp.Code)
	}
}

func TestListRequestsRejectsUnknownStatus(t *testing.T) {
	h := NewHandler(testConfig(t, nil), Dependencies{Requests: newMemoryRegistry()})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/requests?status=archived", nil))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestReviewRequestTransitionsStatus(t *testing.T) {
	registry := newMemoryRegistry()
	if _, err := registry.Create(context.Background(), requests.CreateInput{
		TableName:   "crm_customers",
		Requirement: "average customer age",
		RequestedBy: "alice",
	}); err != nil {
		t.Fatalf("seed request: %v", err)
	}
	h := NewHandler(testConfig(t, nil), Dependencies{Requests: registry})

	rr := postJSON(h, "/v1/requests/1/review", `{"status": "reviewed", "review_note": "added to backlog"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}

	var reviewed requests.Request
	if err := json.Unmarshal(rr.Body.Bytes(), &reviewed); err != nil {
		t.Fatalf("json decode failed: %v", err)
	}
	if reviewed.Status != requests.StatusReviewed || reviewed.ReviewedAt == nil {
		t.Fatalf("reviewed = %+v", reviewed)
	}
}

func TestReviewRequestNotFound(t *testing.T) {
	h := NewHandler(testConfig(t, nil), Dependencies{Requests: newMemoryRegistry()})

	rr := postJSON(h, "/v1/requests/99/review", `{"status": "reviewed"}`)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestRequestIDValidation(t *testing.T) {
	h := NewHandler(testConfig(t, nil), Dependencies{Requests: newMemoryRegistry()})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/requests/abc", nil))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
}
