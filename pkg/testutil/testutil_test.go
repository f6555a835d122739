package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

// ---------------------------------------------------------------------------
// Helper: create a test server with typical endpoints
// ---------------------------------------------------------------------------

func newTestServer() *httptest.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/state", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"totalPoints": 0})
	})

	mux.HandleFunc("POST /v1/points", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(body)
	})

	mux.HandleFunc("PUT /v1/offers", func(w http.ResponseWriter, r *http.Request) {
		var body []map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]int{"count": len(body)})
	})

	mux.HandleFunc("POST /v1/raw", func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"contentType": r.Header.Get("Content-Type"),
			"body":        string(data),
		})
	})

	mux.HandleFunc("POST /v1/upload", func(w http.ResponseWriter, r *http.Request) {
		f, hdr, err := r.FormFile("image")
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer f.Close()
		data, _ := io.ReadAll(f)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"filename": hdr.Filename, "size": len(data)})
	})

	mux.HandleFunc("GET /echo-headers", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		headers := map[string]string{}
		for k := range r.Header {
			headers[k] = r.Header.Get(k)
		}
		json.NewEncoder(w).Encode(headers)
	})

	// Admin-like endpoints
	admin := func(status string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]string{"status": status, "path": r.URL.Path})
		}
	}
	mux.HandleFunc("GET /admin/health", admin("ok"))
	mux.HandleFunc("POST /admin/reset", admin("reset"))
	mux.HandleFunc("GET /admin/state", admin("state"))
	mux.HandleFunc("POST /admin/state", admin("loaded"))
	mux.HandleFunc("GET /admin/requests", admin("requests"))
	mux.HandleFunc("POST /admin/catalog/reload", admin("reloaded"))
	mux.HandleFunc("POST /admin/time/advance", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "advanced", "duration": body["duration"]})
	})

	return httptest.NewServer(mux)
}

// ---------------------------------------------------------------------------
// AppClient
// ---------------------------------------------------------------------------

func TestAppClientGet(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()

	c := NewAppClient(t, srv)
	resp := c.Get("/v1/state").AssertStatus(http.StatusOK)
	if resp.JSONMap()["totalPoints"] != float64(0) {
		t.Errorf("unexpected body: %s", resp.Body)
	}
	if resp.Headers.Get("Content-Type") != "application/json" {
		t.Errorf("expected JSON content type, got %q", resp.Headers.Get("Content-Type"))
	}
}

func TestAppClientPost(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()

	c := NewAppClient(t, srv)
	resp := c.Post("/v1/points", map[string]int{"points": 25}).AssertStatus(http.StatusCreated)
	var body struct {
		Points int `json:"points"`
	}
	resp.JSON(&body)
	if body.Points != 25 {
		t.Errorf("expected echoed points, got %d", body.Points)
	}
}

func TestAppClientPut(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()

	c := NewAppClient(t, srv)
	resp := c.Put("/v1/offers", []map[string]any{{"id": "1"}, {"id": "2"}})
	resp.AssertStatus(http.StatusOK).AssertBodyContains(`"count":2`)
}

func TestAppClientPostRaw(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()

	c := NewAppClient(t, srv)
	m := c.PostRaw("/v1/raw", "text/plain", "{not json").JSONMap()
	if m["contentType"] != "text/plain" || m["body"] != "{not json" {
		t.Errorf("unexpected echo: %+v", m)
	}
}

func TestAppClientPostMultipart(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()

	c := NewAppClient(t, srv)
	m := c.PostMultipart("/v1/upload", "image", "shirt.jpg", []byte("abcdef")).
		AssertStatus(http.StatusOK).JSONMap()
	if m["filename"] != "shirt.jpg" || m["size"] != float64(6) {
		t.Errorf("unexpected upload echo: %+v", m)
	}
}

func TestAppClientDoWithHeaders(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()

	c := NewAppClient(t, srv)
	m := c.DoWithHeaders(http.MethodGet, "/echo-headers", nil, map[string]string{"X-Request-Id": "abc"}).JSONMap()
	if m["X-Request-Id"] != "abc" {
		t.Errorf("expected header echoed, got %+v", m)
	}
}

func TestNewAppClientURLTrimsSlash(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()

	c := NewAppClientURL(t, srv.URL+"/")
	if c.BaseURL != srv.URL {
		t.Errorf("expected trailing slash trimmed, got %q", c.BaseURL)
	}
	c.Get("/v1/state").AssertStatus(http.StatusOK)
}

// ---------------------------------------------------------------------------
// AdminClient
// ---------------------------------------------------------------------------

func TestAdminClient(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()

	ac := NewAdminClient(NewAppClient(t, srv))

	tests := []struct {
		name   string
		call   func() *Response
		status string
	}{
		{"health", ac.Health, "ok"},
		{"reset", ac.Reset, "reset"},
		{"get state", ac.GetState, "state"},
		{"load state", func() *Response { return ac.LoadState(map[string]int{"totalPoints": 5}) }, "loaded"},
		{"requests", ac.GetRequests, "requests"},
		{"reload catalog", ac.ReloadCatalog, "reloaded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := tt.call().AssertStatus(http.StatusOK).JSONMap()
			if m["status"] != tt.status {
				t.Errorf("expected status %q, got %+v", tt.status, m)
			}
		})
	}
}

func TestAdminClientAdvanceTime(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()

	ac := NewAdminClient(NewAppClient(t, srv))
	m := ac.AdvanceTime("90m").JSONMap()
	if m["duration"] != "90m" {
		t.Errorf("expected duration forwarded, got %+v", m)
	}
}
