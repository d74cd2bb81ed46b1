package bitable

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func newTestServer(t *testing.T, tokenCalls *int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/auth/v3/tenant_access_token/internal/", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(tokenCalls, 1)
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode token body: %v", err)
		}
		if body["app_id"] != "app-id" || body["app_secret"] != "app-secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"code":                0,
			"tenant_access_token": "tok-123",
			"expire":              7200,
		})
	})

	mux.HandleFunc("/bitable/v1/apps/app-token/tables/tbl-1/records", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok-123" {
			w.WriteHeader(http.StatusForbidden)
			return
		}

		switch r.URL.Query().Get("page_token") {
		case "":
			json.NewEncoder(w).Encode(map[string]any{
				"code": 0,
				"data": map[string]any{
					"has_more":   true,
					"page_token": "page2",
					"items": []map[string]any{
						{"record_id": "r1", "fields": map[string]any{"名称": "one"}},
						{"record_id": "r2", "fields": map[string]any{"名称": "two"}},
					},
				},
			})
		case "page2":
			json.NewEncoder(w).Encode(map[string]any{
				"code": 0,
				"data": map[string]any{
					"has_more": false,
					"items": []map[string]any{
						{"record_id": "r3", "fields": map[string]any{"名称": "three"}},
					},
				},
			})
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	})

	return httptest.NewServer(mux)
}

func newTestClient(baseURL string) *Client {
	return NewClient(Options{
		BaseURL:   baseURL,
		AppID:     "app-id",
		AppSecret: "app-secret",
		AppToken:  "app-token",
		TableID:   "tbl-1",
		QPS:       100,
	})
}

func TestRecordsFollowsPagination(t *testing.T) {
	var tokenCalls int32
	server := newTestServer(t, &tokenCalls)
	defer server.Close()

	client := newTestClient(server.URL)
	records, err := client.Records(context.Background())
	if err != nil {
		t.Fatalf("Records: %v", err)
	}

	if len(records) != 3 {
		t.Fatalf("expected 3 records across pages, got %d", len(records))
	}
	for i, want := range []string{"r1", "r2", "r3"} {
		if records[i].RecordID != want {
			t.Errorf("record %d = %q, want %q", i, records[i].RecordID, want)
		}
	}
}

func TestTokenIsCachedAcrossFetches(t *testing.T) {
	var tokenCalls int32
	server := newTestServer(t, &tokenCalls)
	defer server.Close()

	client := newTestClient(server.URL)
	for i := 0; i < 3; i++ {
		if _, err := client.Records(context.Background()); err != nil {
			t.Fatalf("Records %d: %v", i, err)
		}
	}

	if got := atomic.LoadInt32(&tokenCalls); got != 1 {
		t.Fatalf("token endpoint called %d times, want 1", got)
	}
}

func TestRecordsPageErrorFailsFetch(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/v3/tenant_access_token/internal/", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"code": 0, "tenant_access_token": "tok-123", "expire": 7200,
		})
	})
	mux.HandleFunc("/bitable/v1/apps/app-token/tables/tbl-1/records", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page_token") == "" {
			json.NewEncoder(w).Encode(map[string]any{
				"code": 0,
				"data": map[string]any{
					"has_more":   true,
					"page_token": "page2",
					"items":      []map[string]any{{"record_id": "r1"}},
				},
			})
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := newTestClient(server.URL)
	if _, err := client.Records(context.Background()); err == nil {
		t.Fatal("a failed page must fail the whole fetch")
	}
}

func TestTokenRejectionSurfacesAPIError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/v3/tenant_access_token/internal/", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"code": 99991663, "msg": "app not found"})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := newTestClient(server.URL)
	if _, err := client.Records(context.Background()); err == nil {
		t.Fatal("API-level token rejection should surface as an error")
	}
}
