package httpc

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestGetJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	var out struct{ Status string }
	if err := GetJSON(srv.URL, &out); err != nil {
		t.Fatalf("GetJSON: %v", err)
	}
	if out.Status != "ok" {
		t.Errorf("Status: got %q, want %q", out.Status, "ok")
	}
}

func TestPostJSONError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type: got %q", ct)
		}
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"duplicate"}`))
	}))
	defer srv.Close()

	err := PostJSON(srv.URL, map[string]int{"leftId": 1, "rightId": 1}, nil)
	if err == nil || !strings.Contains(err.Error(), "duplicate") {
		t.Errorf("PostJSON: got %v, want error containing %q", err, "duplicate")
	}
}
