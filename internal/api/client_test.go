package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hyperjump/pdfbuddy/internal/models"
)

func TestNewClient(t *testing.T) {
	t.Run("default base URL", func(t *testing.T) {
		c := NewClient("")
		if c.BaseURL() != DefaultBaseURL {
			t.Errorf("BaseURL() = %q, want %q", c.BaseURL(), DefaultBaseURL)
		}
		if c.httpClient.Timeout != 0 {
			t.Errorf("timeout = %v, want none", c.httpClient.Timeout)
		}
	})

	t.Run("trailing slash trimmed", func(t *testing.T) {
		c := NewClient("http://example.com/api/")
		if c.BaseURL() != "http://example.com/api" {
			t.Errorf("BaseURL() = %q", c.BaseURL())
		}
	})

	t.Run("with custom HTTP client and timeout", func(t *testing.T) {
		custom := &http.Client{}
		c := NewClient("http://x", WithHTTPClient(custom), WithTimeout(5*time.Second))
		if c.httpClient != custom {
			t.Error("custom HTTP client not set")
		}
		if custom.Timeout != 5*time.Second {
			t.Errorf("timeout = %v", custom.Timeout)
		}
	})
}

func TestClient_IndexPDF(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost || r.URL.Path != "/index-pdf" {
				t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
			}
			if got := r.URL.Query().Get("starting_page"); got != "2" {
				t.Errorf("starting_page = %q", got)
			}
			if got := r.URL.Query().Get("ending_page"); got != "4" {
				t.Errorf("ending_page = %q", got)
			}
			file, header, err := r.FormFile("file")
			if err != nil {
				t.Fatalf("FormFile: %v", err)
			}
			defer file.Close()
			data, _ := io.ReadAll(file)
			if string(data) != "%PDF-1.4 body" {
				t.Errorf("file data = %q", data)
			}
			if header.Filename != "report.pdf" {
				t.Errorf("filename = %q", header.Filename)
			}
			if header.Header.Get("Content-Type") != "application/pdf" {
				t.Errorf("part content type = %q", header.Header.Get("Content-Type"))
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]interface{}{
				"message": "PDF processed successfully", "filename": "report.pdf",
				"page_count": 10, "status": "indexed", "file_id": "abc123",
			})
		}))
		defer server.Close()

		var sent int32
		c := NewClient(server.URL)
		res, err := c.IndexPDF(context.Background(), &models.Upload{
			Name: "report.pdf", ContentType: "application/pdf", Data: []byte("%PDF-1.4 body"),
			PageRange: &models.PageRange{Start: 2, End: 4},
		}, func() { atomic.AddInt32(&sent, 1) })
		if err != nil {
			t.Fatalf("IndexPDF: %v", err)
		}
		if res.PageCount != 10 || res.RemoteID() != "abc123" {
			t.Errorf("result = %+v", res)
		}
		if atomic.LoadInt32(&sent) != 1 {
			t.Errorf("onSent called %d times, want 1", sent)
		}
	})

	t.Run("server error carries body text", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.Copy(io.Discard, r.Body)
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"detail":"Error processing PDF: bad xref"}`))
		}))
		defer server.Close()

		c := NewClient(server.URL)
		_, err := c.IndexPDF(context.Background(), &models.Upload{Name: "a.pdf", Data: []byte("x")}, nil)
		var apiErr *Error
		if !errors.As(err, &apiErr) {
			t.Fatalf("error type = %T (%v)", err, err)
		}
		if apiErr.StatusCode != 500 || apiErr.Op != "upload PDF" {
			t.Errorf("apiErr = %+v", apiErr)
		}
		if got := Detail(err, "generic"); !strings.Contains(got, "bad xref") {
			t.Errorf("Detail() = %q", got)
		}
	})

	t.Run("network failure", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		url := server.URL
		server.Close()

		c := NewClient(url)
		_, err := c.IndexPDF(context.Background(), &models.Upload{Name: "a.pdf", Data: []byte("x")}, nil)
		if err == nil {
			t.Fatal("expected error")
		}
		var apiErr *Error
		if errors.As(err, &apiErr) {
			t.Errorf("network failure should not be an API error: %v", err)
		}
		if !strings.HasPrefix(err.Error(), "upload PDF:") {
			t.Errorf("error = %q", err.Error())
		}
	})
}

func TestClient_GenerateResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/generate-response" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("content type = %q", r.Header.Get("Content-Type"))
		}
		var req models.GenerateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		if len(req.Messages) != 1 || req.Messages[0].Content != "What is the refund policy?" || req.TopSearches != 5 {
			t.Errorf("request = %+v", req)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"response":        "30 days.",
			"retrievedVerses": []map[string]string{{"content": "Refunds within 30 days", "reference": "p.4"}},
		})
	}))
	defer server.Close()

	c := NewClient(server.URL)
	resp, err := c.GenerateResponse(context.Background(), &models.GenerateRequest{
		Messages:    []models.Message{{Role: models.RoleUser, Content: "What is the refund policy?"}},
		TopSearches: 5,
	})
	if err != nil {
		t.Fatalf("GenerateResponse: %v", err)
	}
	if resp.Response != "30 days." {
		t.Errorf("response = %q", resp.Response)
	}
	refs := resp.References()
	if len(refs) != 1 || refs[0].Label != "p.4" {
		t.Errorf("references = %+v", refs)
	}
}

func TestClient_FindReferences(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("query") != "refund policy" || q.Get("top_searches") != "5" {
			t.Errorf("query = %v", q)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"results": []map[string]string{{"content": "c", "reference": "p.1"}},
		})
	}))
	defer server.Close()

	c := NewClient(server.URL)
	resp, err := c.FindReferences(context.Background(), "refund policy", 0)
	if err != nil {
		t.Fatalf("FindReferences: %v", err)
	}
	if refs := resp.References(); len(refs) != 1 || refs[0].Label != "p.1" {
		t.Errorf("references = %+v", refs)
	}
}

func TestClient_Preview(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/preview-pdf/missing" {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF-1.4"))
	}))
	defer server.Close()

	c := NewClient(server.URL)
	if got := c.PreviewURL("a b"); got != server.URL+"/preview-pdf/a%20b" {
		t.Errorf("PreviewURL = %q", got)
	}

	body, ct, err := c.FetchPreview(context.Background(), "abc")
	if err != nil {
		t.Fatalf("FetchPreview: %v", err)
	}
	defer body.Close()
	data, _ := io.ReadAll(body)
	if string(data) != "%PDF-1.4" || ct != "application/pdf" {
		t.Errorf("data = %q, ct = %q", data, ct)
	}

	_, _, err = c.FetchPreview(context.Background(), "missing")
	if !IsNotFound(err) {
		t.Errorf("IsNotFound(%v) = false", err)
	}
}

func TestError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{"with op", &Error{Op: "generate response", StatusCode: 500, Message: "boom"}, "generate response: 500 boom"},
		{"without op", &Error{StatusCode: 404, Message: "Not Found"}, "404 Not Found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDetail(t *testing.T) {
	if got := Detail(nil, "generic"); got != "generic" {
		t.Errorf("nil: %q", got)
	}
	if got := Detail(&Error{StatusCode: 500}, "generic"); got != "generic" {
		t.Errorf("empty body: %q, want fallback", got)
	}
	if got := Detail(wrapError(&Error{StatusCode: 502}, "upload PDF"), "generic"); got != "generic" {
		t.Errorf("empty body with op: %q, want fallback", got)
	}
	if got := Detail(fmt.Errorf("send: %w", &Error{StatusCode: 400, Message: "bad page"}), "generic"); got != "bad page" {
		t.Errorf("wrapped body: %q", got)
	}
	if got := Detail(errors.New("dial tcp: refused"), "generic"); got != "dial tcp: refused" {
		t.Errorf("plain error: %q", got)
	}
}
