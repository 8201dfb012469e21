package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/hupe1980/caremesh/internal/testutil"
	"github.com/hupe1980/caremesh/orchestrator"
)

func newTestOrchestrator() *orchestrator.Orchestrator {
	search, validation, synthesis := testutil.Collaborators()
	return orchestrator.New(search, validation, synthesis)
}

func postJSON(t *testing.T, h echo.HandlerFunc, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, target, bytes.NewBufferString(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	if err := h(e.NewContext(req, rec)); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	return rec
}

func TestCreateProcedureValidation(t *testing.T) {
	h := NewHandler(newTestOrchestrator())

	rec := postJSON(t, h.CreateProcedure, "/procedures", `{"setting":"Hospital"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing user_text, got %d", rec.Code)
	}

	rec = postJSON(t, h.CreateProcedure, "/procedures", `{"user_text":"Wound Care","setting":"Spaceship"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid setting, got %d", rec.Code)
	}
}

func TestCreateProcedureAndPoll(t *testing.T) {
	orch := newTestOrchestrator()
	h := NewHandler(orch)

	rec := postJSON(t, h.CreateProcedure, "/procedures", `{"user_text":"Wound Care","setting":"Hospital"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var created ProcedureResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if created.SessionID == "" {
		t.Fatal("expected a session id")
	}
	if created.Status != "processing" {
		t.Fatalf("expected processing status, got %q", created.Status)
	}

	orch.Wait()

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/sessions/"+created.SessionID, nil)
	pollRec := httptest.NewRecorder()
	c := e.NewContext(req, pollRec)
	c.SetParamNames("session_id")
	c.SetParamValues(created.SessionID)
	if err := h.GetSession(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}

	var status SessionStatusResponse
	if err := json.Unmarshal(pollRec.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if status.Status != "completed" {
		t.Fatalf("expected completed, got %q", status.Status)
	}
	if details, _ := status.Result["procedure_details"].(string); details == "" {
		t.Fatal("expected procedure details in result")
	}
}

func TestGetSessionNotFound(t *testing.T) {
	h := NewHandler(newTestOrchestrator())

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/sessions/unknown", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("session_id")
	c.SetParamValues("unknown")

	if err := h.GetSession(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestPauseWithoutRunningTask(t *testing.T) {
	orch := newTestOrchestrator()
	h := NewHandler(orch)
	sessionID := orch.CreateSession()

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/sessions/"+sessionID+"/pause", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("session_id")
	c.SetParamValues(sessionID)

	if err := h.PauseSession(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for pause without running task, got %d", rec.Code)
	}
}

func TestResumeWithoutPausedEntry(t *testing.T) {
	orch := newTestOrchestrator()
	h := NewHandler(orch)
	sessionID := orch.CreateSession()

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/sessions/"+sessionID+"/resume", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("session_id")
	c.SetParamValues(sessionID)

	if err := h.ResumeSession(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for resume without paused entry, got %d", rec.Code)
	}
}

func TestGetMessages(t *testing.T) {
	orch := newTestOrchestrator()
	h := NewHandler(orch)

	id := orch.CreateSession()
	if err := orch.ProcessServiceRequest(context.Background(), id, "Wound Care", "hospital"); err != nil {
		t.Fatalf("workflow error: %v", err)
	}

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/messages?agent_id=search_agent", nil)
	rec := httptest.NewRecorder()
	if err := h.GetMessages(e.NewContext(req, rec)); err != nil {
		t.Fatalf("handler error: %v", err)
	}

	var resp struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Count != 2 {
		t.Fatalf("expected request and response for search_agent, got %d", resp.Count)
	}

	req = httptest.NewRequest(http.MethodGet, "/messages?limit=abc", nil)
	rec = httptest.NewRecorder()
	if err := h.GetMessages(e.NewContext(req, rec)); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid limit, got %d", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	h := NewHandler(newTestOrchestrator())

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	if err := h.Health(e.NewContext(req, rec)); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
