package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hyperjump/pdfbuddy/internal/api"
	"github.com/hyperjump/pdfbuddy/internal/chat"
	"github.com/hyperjump/pdfbuddy/internal/config"
	"github.com/hyperjump/pdfbuddy/internal/models"
	"github.com/hyperjump/pdfbuddy/internal/notify"
	"github.com/hyperjump/pdfbuddy/internal/tracker"
	"go.uber.org/zap"
)

type stubIndexer struct {
	gate chan struct{} // when set, uploads wait on it
}

func (s *stubIndexer) IndexPDF(ctx context.Context, upload *models.Upload, onSent func()) (*models.IndexResult, error) {
	onSent()
	if s.gate != nil {
		<-s.gate
	}
	return &models.IndexResult{PageCount: 10, FileID: "remote-" + upload.Name}, nil
}

type stubGenerator struct {
	err error
}

func (g *stubGenerator) GenerateResponse(ctx context.Context, req *models.GenerateRequest) (*models.GenerateResponse, error) {
	if g.err != nil {
		return nil, g.err
	}
	return &models.GenerateResponse{
		Response:        "Refunds are accepted within 30 days.",
		RetrievedVerses: []models.RetrievedVerse{{Content: "Refunds within 30 days", Reference: "p.4"}},
	}, nil
}

type stubPreviewer struct{}

func (stubPreviewer) FetchPreview(ctx context.Context, remoteID string) (io.ReadCloser, string, error) {
	if remoteID == "remote-missing.pdf" {
		return nil, "", &api.Error{StatusCode: http.StatusNotFound, Message: "not found"}
	}
	return io.NopCloser(strings.NewReader("%PDF-1.4 " + remoteID)), "application/pdf", nil
}

type mockWatchService struct {
	dirs []string
}

func (m *mockWatchService) Directories() []string {
	return append([]string(nil), m.dirs...)
}

func (m *mockWatchService) AddDirectory(path string, _ bool) error {
	for _, d := range m.dirs {
		if d == path {
			return nil
		}
	}
	m.dirs = append(m.dirs, path)
	return nil
}

func (m *mockWatchService) RemoveDirectory(path string) error {
	for i, d := range m.dirs {
		if d == path {
			m.dirs = append(m.dirs[:i], m.dirs[i+1:]...)
			return nil
		}
	}
	return nil
}

type fixture struct {
	tracker *tracker.Tracker
	chat    *chat.Controller
	gen     *stubGenerator
	idx     *stubIndexer
	notes   *notify.Recorder
	url     string
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	notes := notify.NewRecorder(0)
	idx := &stubIndexer{}
	tr := tracker.New(idx, tracker.WithNotifier(notes))
	t.Cleanup(tr.Close)
	gen := &stubGenerator{}
	ctl := chat.New(gen, tr, chat.WithNotifier(notes))
	srv := NewServer(tr, ctl, stubPreviewer{}, notes, &config.ServerConfig{Port: 8090}, zap.NewNop(), opts...)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &fixture{tracker: tr, chat: ctl, gen: gen, idx: idx, notes: notes, url: ts.URL}
}

func multipartUpload(t *testing.T, name, contentType string, data []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if name != "" {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="file"; filename="`+name+`"`)
		h.Set("Content-Type", contentType)
		part, err := mw.CreatePart(h)
		if err != nil {
			t.Fatal(err)
		}
		part.Write(data)
	}
	mw.Close()
	return &body, mw.FormDataContentType()
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode: %v", err)
	}
}

func waitIndexed(t *testing.T, tr *tracker.Tracker, n int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for tr.IndexedCount() < n {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d indexed documents: %+v", n, tr.Documents())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func (f *fixture) upload(t *testing.T, name, contentType string, fields map[string]string) *http.Response {
	t.Helper()
	body, ct := multipartUpload(t, name, contentType, []byte("%PDF-1.4 test"), fields)
	resp, err := http.Post(f.url+"/api/v1/files", ct, body)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	resp, err := http.Get(f.url + "/health")
	if err != nil {
		t.Fatal(err)
	}
	var out map[string]string
	decode(t, resp, &out)
	if resp.StatusCode != http.StatusOK || out["status"] != "ok" {
		t.Errorf("health = %d %v", resp.StatusCode, out)
	}
}

func TestUploadAndListFiles(t *testing.T) {
	f := newFixture(t)
	resp := f.upload(t, "report.pdf", "application/pdf", map[string]string{"start_page": "1", "end_page": "5"})
	var doc models.Document
	decode(t, resp, &doc)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if doc.Name != "report.pdf" || doc.Status != models.StatusUploading || doc.StartPage != 1 || doc.EndPage != 5 {
		t.Errorf("doc = %+v", doc)
	}
	waitIndexed(t, f.tracker, 1)

	resp, err := http.Get(f.url + "/api/v1/files/" + doc.ID)
	if err != nil {
		t.Fatal(err)
	}
	var got models.Document
	decode(t, resp, &got)
	if got.Status != models.StatusIndexed || got.Pages != 10 || got.Progress != 100 {
		t.Errorf("doc = %+v", got)
	}

	resp, err = http.Get(f.url + "/api/v1/files")
	if err != nil {
		t.Fatal(err)
	}
	var list struct {
		Files   []models.Document `json:"files"`
		Indexed int               `json:"indexed"`
		Busy    bool              `json:"busy"`
	}
	decode(t, resp, &list)
	if len(list.Files) != 1 || list.Indexed != 1 || list.Busy {
		t.Errorf("list = %+v", list)
	}
}

func TestUpload_rejections(t *testing.T) {
	tests := []struct {
		name        string
		file        string
		contentType string
		fields      map[string]string
		wantError   string
	}{
		{"not a pdf", "notes.txt", "text/plain", nil, "Invalid file format"},
		{"no file", "", "", nil, "No file selected"},
		{"reversed range", "a.pdf", "application/pdf", map[string]string{"start_page": "5", "end_page": "2"}, "Invalid page range"},
		{"half range", "a.pdf", "application/pdf", map[string]string{"start_page": "5"}, "start_page and end_page must be given together"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			resp := f.upload(t, tt.file, tt.contentType, tt.fields)
			var out map[string]string
			decode(t, resp, &out)
			if resp.StatusCode != http.StatusBadRequest || out["error"] != tt.wantError {
				t.Errorf("got %d %v", resp.StatusCode, out)
			}
			if len(f.tracker.Documents()) != 0 {
				t.Error("rejected upload created a document")
			}
		})
	}
}

func TestUpload_conflictWhileBusy(t *testing.T) {
	f := newFixture(t)
	f.idx.gate = make(chan struct{})
	resp := f.upload(t, "a.pdf", "application/pdf", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("first upload = %d", resp.StatusCode)
	}
	resp = f.upload(t, "b.pdf", "application/pdf", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("second upload = %d, want 409", resp.StatusCode)
	}
	close(f.idx.gate)
	waitIndexed(t, f.tracker, 1)
}

func TestUpload_concurrentPostsAcceptOne(t *testing.T) {
	f := newFixture(t)
	f.idx.gate = make(chan struct{})
	data := append([]byte("%PDF-1.4\n"), bytes.Repeat([]byte("x"), 1<<20)...)

	const posts = 8
	codes := make(chan int, posts)
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < posts; i++ {
		body, ct := multipartUpload(t, fmt.Sprintf("%d.pdf", i), "application/pdf", data, nil)
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			resp, err := http.Post(f.url+"/api/v1/files", ct, body)
			if err != nil {
				t.Error(err)
				return
			}
			resp.Body.Close()
			codes <- resp.StatusCode
		}()
	}
	close(start)
	wg.Wait()
	close(codes)

	accepted, conflicts := 0, 0
	for code := range codes {
		switch code {
		case http.StatusAccepted:
			accepted++
		case http.StatusConflict:
			conflicts++
		default:
			t.Errorf("unexpected status %d", code)
		}
	}
	if accepted != 1 || conflicts != posts-1 {
		t.Errorf("accepted = %d, conflicts = %d", accepted, conflicts)
	}
	if n := len(f.tracker.Documents()); n != 1 {
		t.Errorf("documents = %d, want 1", n)
	}
	close(f.idx.gate)
	waitIndexed(t, f.tracker, 1)
}

func TestPreview(t *testing.T) {
	f := newFixture(t)
	f.idx.gate = make(chan struct{})
	resp := f.upload(t, "report.pdf", "application/pdf", nil)
	var doc models.Document
	decode(t, resp, &doc)

	resp, err := http.Get(f.url + "/api/v1/files/" + doc.ID + "/preview")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("preview before indexed = %d, want 409", resp.StatusCode)
	}

	close(f.idx.gate)
	waitIndexed(t, f.tracker, 1)
	resp, err = http.Get(f.url + "/api/v1/files/" + doc.ID + "/preview")
	if err != nil {
		t.Fatal(err)
	}
	data, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != "application/pdf" {
		t.Errorf("preview = %d %q", resp.StatusCode, resp.Header.Get("Content-Type"))
	}
	if string(data) != "%PDF-1.4 remote-report.pdf" {
		t.Errorf("preview body = %q", data)
	}

	resp, err = http.Get(f.url + "/api/v1/files/unknown/preview")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown document = %d", resp.StatusCode)
	}
}

func postJSON(t *testing.T, url string, body interface{}) *http.Response {
	t.Helper()
	data, _ := json.Marshal(body)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func TestChat_requiresIndexedDocument(t *testing.T) {
	f := newFixture(t)
	resp := postJSON(t, f.url+"/api/v1/chat", sendRequest{Text: "hello"})
	var out map[string]string
	decode(t, resp, &out)
	if resp.StatusCode != http.StatusBadRequest || out["error"] != "No indexed files" {
		t.Errorf("got %d %v", resp.StatusCode, out)
	}
	if len(f.chat.Turns()) != 0 {
		t.Error("rejected send appended turns")
	}
}

func TestChat_sendAndReferences(t *testing.T) {
	f := newFixture(t)
	f.upload(t, "report.pdf", "application/pdf", nil).Body.Close()
	waitIndexed(t, f.tracker, 1)

	resp := postJSON(t, f.url+"/api/v1/chat", sendRequest{Text: "What is the refund policy?"})
	var sent struct {
		Reply      models.ChatTurn    `json:"reply"`
		References []models.Reference `json:"references"`
		Error      string             `json:"error"`
	}
	decode(t, resp, &sent)
	if resp.StatusCode != http.StatusOK || sent.Error != "" || len(sent.References) != 1 || sent.References[0].Label != "p.4" {
		t.Errorf("send = %d %+v", resp.StatusCode, sent)
	}

	type state struct {
		Turns []struct {
			Role       models.Role        `json:"role"`
			References []models.Reference `json:"references"`
		} `json:"turns"`
		ReferencesVisible bool `json:"references_visible"`
	}
	getState := func(method, path string) state {
		req, _ := http.NewRequest(method, f.url+path, nil)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		var s state
		decode(t, resp, &s)
		return s
	}

	s := getState(http.MethodGet, "/api/v1/chat")
	if len(s.Turns) != 2 || s.ReferencesVisible || s.Turns[1].References != nil {
		t.Errorf("hidden state = %+v", s)
	}
	s = getState(http.MethodPost, "/api/v1/chat/references/show")
	if !s.ReferencesVisible || len(s.Turns[1].References) != 1 || s.Turns[0].References != nil {
		t.Errorf("shown state = %+v", s)
	}
	s = getState(http.MethodPost, "/api/v1/chat/references/hide")
	if s.ReferencesVisible || s.Turns[1].References != nil {
		t.Errorf("hidden again = %+v", s)
	}
}

func TestChat_failureIsInline(t *testing.T) {
	f := newFixture(t)
	f.upload(t, "a.pdf", "application/pdf", nil).Body.Close()
	waitIndexed(t, f.tracker, 1)
	f.gen.err = &api.Error{Op: "generate response", StatusCode: 500, Message: "model overloaded"}

	resp := postJSON(t, f.url+"/api/v1/chat", sendRequest{Text: "hello"})
	var out struct {
		Reply models.ChatTurn `json:"reply"`
		Error string          `json:"error"`
	}
	decode(t, resp, &out)
	if resp.StatusCode != http.StatusOK || out.Reply.Content != chat.ApologyMessage || out.Error != "model overloaded" {
		t.Errorf("got %d %+v", resp.StatusCode, out)
	}

	resp, err := http.Get(f.url + "/api/v1/notifications")
	if err != nil {
		t.Fatal(err)
	}
	var notes struct {
		Notifications []notify.Notification `json:"notifications"`
	}
	decode(t, resp, &notes)
	last := notes.Notifications[len(notes.Notifications)-1]
	if last.Level != notify.LevelError || last.Detail != "model overloaded" {
		t.Errorf("last notification = %+v", last)
	}
}

func TestDisclaimer(t *testing.T) {
	f := newFixture(t)
	resp, err := http.Get(f.url + "/api/v1/disclaimer")
	if err != nil {
		t.Fatal(err)
	}
	var out struct {
		Title  string   `json:"title"`
		Points []string `json:"points"`
	}
	decode(t, resp, &out)
	if out.Title != "Disclaimer" || len(out.Points) != 3 {
		t.Errorf("disclaimer = %+v", out)
	}
}

func TestWatchDirectories(t *testing.T) {
	t.Run("not enabled", func(t *testing.T) {
		f := newFixture(t)
		resp, err := http.Get(f.url + "/api/v1/watch/directories")
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusNotImplemented {
			t.Errorf("status = %d", resp.StatusCode)
		}
	})

	t.Run("add and remove persist config", func(t *testing.T) {
		dir := t.TempDir()
		inbox := filepath.Join(dir, "inbox")
		if err := os.Mkdir(inbox, 0755); err != nil {
			t.Fatal(err)
		}
		cfgPath := filepath.Join(dir, "config.yaml")
		cfg := config.Default()
		mock := &mockWatchService{}
		f := newFixture(t, WithWatch(mock, cfgPath, cfg))

		resp := postJSON(t, f.url+"/api/v1/watch/directories", watchAddRequest{Path: inbox})
		resp.Body.Close()
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("add = %d", resp.StatusCode)
		}
		saved, err := config.Load(cfgPath)
		if err != nil {
			t.Fatal(err)
		}
		if len(saved.Watch.Directories) != 1 || saved.Watch.Directories[0] != inbox {
			t.Errorf("saved directories = %v", saved.Watch.Directories)
		}

		resp = postJSON(t, f.url+"/api/v1/watch/directories", watchAddRequest{Path: filepath.Join(dir, "missing")})
		resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("missing directory = %d", resp.StatusCode)
		}

		req, _ := http.NewRequest(http.MethodDelete, f.url+"/api/v1/watch/directories?path="+inbox, nil)
		resp, err = http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK || len(mock.dirs) != 0 {
			t.Errorf("remove = %d, dirs = %v", resp.StatusCode, mock.dirs)
		}
	})

	t.Run("environment and flag overrides are not written", func(t *testing.T) {
		dir := t.TempDir()
		inbox := filepath.Join(dir, "inbox")
		if err := os.Mkdir(inbox, 0755); err != nil {
			t.Fatal(err)
		}
		cfgPath := filepath.Join(dir, "config.yaml")
		if err := os.WriteFile(cfgPath, []byte("server:\n  port: 9100\n"), 0600); err != nil {
			t.Fatal(err)
		}
		cfg, err := config.Load(cfgPath)
		if err != nil {
			t.Fatal(err)
		}
		t.Setenv(config.EnvAPIURL, "http://from-env:9999")
		if err := config.ApplyEnv(cfg, ""); err != nil {
			t.Fatal(err)
		}
		cfg.Debug = true
		cfg.Server.Port = 7777

		f := newFixture(t, WithWatch(&mockWatchService{}, cfgPath, cfg))
		resp := postJSON(t, f.url+"/api/v1/watch/directories", watchAddRequest{Path: inbox})
		resp.Body.Close()
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("add = %d", resp.StatusCode)
		}

		raw, err := os.ReadFile(cfgPath)
		if err != nil {
			t.Fatal(err)
		}
		if strings.Contains(string(raw), "from-env") {
			t.Errorf("environment value written to config:\n%s", raw)
		}
		saved, err := config.Load(cfgPath)
		if err != nil {
			t.Fatal(err)
		}
		if saved.Server.Port != 9100 || saved.Debug {
			t.Errorf("file settings changed: port = %d, debug = %v", saved.Server.Port, saved.Debug)
		}
		if saved.API.BaseURL != config.DefaultAPIURL {
			t.Errorf("base url = %q", saved.API.BaseURL)
		}
		if len(saved.Watch.Directories) != 1 || saved.Watch.Directories[0] != inbox {
			t.Errorf("saved directories = %v", saved.Watch.Directories)
		}
		if got := cfg.Watch.Directories; len(got) != 1 || got[0] != inbox {
			t.Errorf("in-memory directories = %v", got)
		}
	})
}
