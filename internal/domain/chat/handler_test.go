package chat

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func newTestServer(t *testing.T, stub *stubCompleter) *echo.Echo {
	t.Helper()
	e := echo.New()
	NewHandler(NewService(stub)).RegisterRoutes(e.Group("/api"))
	return e
}

func postJSON(e *echo.Echo, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestChatEndpoint_Success(t *testing.T) {
	e := newTestServer(t, &stubCompleter{reply: "Your readings look stable.", configured: true})

	rec := postJSON(e, "/api/chat",
		`{"summary": "Stable vitals.", "messages": [{"role": "user", "content": "How am I doing?"}]}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["reply"] != "Your readings look stable." {
		t.Errorf("reply = %q", body["reply"])
	}
}

func TestChatEndpoint_MissingSummary(t *testing.T) {
	e := newTestServer(t, &stubCompleter{configured: true})

	rec := postJSON(e, "/api/chat", `{"messages": []}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	var body map[string]string
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body["error"] != "summary is required" {
		t.Errorf("error = %q", body["error"])
	}
}

func TestChatEndpoint_MessagesNotArray(t *testing.T) {
	e := newTestServer(t, &stubCompleter{configured: true})

	rec := postJSON(e, "/api/chat", `{"summary": "s", "messages": "not an array"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	var body map[string]string
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body["error"] != "messages must be an array" {
		t.Errorf("error = %q", body["error"])
	}
}

func TestChatEndpoint_MalformedBody(t *testing.T) {
	e := newTestServer(t, &stubCompleter{configured: true})

	// A body that is not JSON at all, or whose other fields are the wrong
	// type, is not a messages-shape problem.
	for _, body := range []string{"not json", `{"summary": 5, "messages": []}`} {
		rec := postJSON(e, "/api/chat", body)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("body %q: status = %d, want 400", body, rec.Code)
		}
		var resp map[string]string
		json.Unmarshal(rec.Body.Bytes(), &resp)
		if resp["error"] != "invalid request body" {
			t.Errorf("body %q: error = %q, want generic body error", body, resp["error"])
		}
	}
}

func TestChatEndpoint_NotConfigured(t *testing.T) {
	e := newTestServer(t, &stubCompleter{configured: false})

	rec := postJSON(e, "/api/chat", `{"summary": "s", "messages": []}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	var body map[string]string
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body["error"] != "OPENAI_API_KEY not configured on server" {
		t.Errorf("error = %q", body["error"])
	}
}

func TestChatEndpoint_CompletionFailure(t *testing.T) {
	e := newTestServer(t, &stubCompleter{err: errors.New("timeout"), configured: true})

	rec := postJSON(e, "/api/chat", `{"summary": "s", "messages": [{"role": "user", "content": "hi"}]}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	var body map[string]string
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body["error"] != "Failed to get chat response" {
		t.Errorf("error = %q", body["error"])
	}
}

func TestInsightEndpoint_Success(t *testing.T) {
	e := newTestServer(t, &stubCompleter{reply: "Hydration and sleep strongly influence your readings.", configured: true})

	rec := postJSON(e, "/api/chat/insight", `{"summary": "s", "question": "what matters most?"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["insight"] == "" {
		t.Error("expected non-empty insight")
	}
}

func TestInsightEndpoint_Validation(t *testing.T) {
	e := newTestServer(t, &stubCompleter{configured: true})

	rec := postJSON(e, "/api/chat/insight", `{"question": "q"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing summary: status = %d", rec.Code)
	}

	rec = postJSON(e, "/api/chat/insight", `{"summary": "s"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing question: status = %d", rec.Code)
	}
}
