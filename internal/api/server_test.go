package api_test

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"dailycraft/internal/api"
	"dailycraft/internal/diary"
	"dailycraft/internal/events"
	"dailycraft/internal/metrics"
	"dailycraft/internal/services"
	"dailycraft/internal/services/ocr"
	"dailycraft/internal/storage"
	"dailycraft/internal/testsupport"
)

type fakeGenerator struct {
	mu       sync.Mutex
	running  bool
	inputs   []diary.Input
	startErr error
	content  string
	genErr   error
}

func (g *fakeGenerator) Start(input diary.Input) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.startErr != nil {
		return g.startErr
	}
	if g.running {
		return diary.ErrAlreadyRunning
	}
	g.running = true
	g.inputs = append(g.inputs, input)
	return nil
}

func (g *fakeGenerator) Status() diary.Job {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running {
		return diary.Job{ID: "job-1", Status: diary.StatusRunning, SubjectKey: "2026-01-02"}
	}
	return diary.Job{Status: diary.StatusIdle}
}

func (g *fakeGenerator) IsRunning() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.running
}

func (g *fakeGenerator) Generate(_ context.Context, input diary.Input) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.inputs = append(g.inputs, input)
	return g.content, g.genErr
}

type fakeExtractor struct {
	text string
	err  error
}

func (e *fakeExtractor) Extract(context.Context, string) (string, error) { return e.text, e.err }

func (e *fakeExtractor) State() ocr.State { return ocr.StateReady }

type fixture struct {
	gen     *fakeGenerator
	ext     *fakeExtractor
	hub     *events.Hub
	store   *storage.Store
	handler http.Handler
}

func newFixture(t *testing.T, token string) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	f := &fixture{
		gen:   &fakeGenerator{content: "generated"},
		ext:   &fakeExtractor{text: "hello"},
		hub:   events.NewHub(16),
		store: testsupport.MustOpenStore(t, cfg),
	}
	srv := api.NewServer("127.0.0.1:0", api.Deps{
		Generator: f.gen,
		Extractor: f.ext,
		Diaries:   f.store,
		Records:   f.store,
		Events:    f.hub,
		Metrics:   metrics.New().Handler(),
		Token:     token,
	})
	f.handler = srv.Router()
	return f
}

func (f *fixture) do(t *testing.T, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return out
}

func TestHealthIsPublic(t *testing.T) {
	f := newFixture(t, "secret")
	w := f.do(t, http.MethodGet, "/api/health", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	resp := decode[api.HealthResponse](t, w)
	if resp.Status != "ok" || resp.Database != "ok" || resp.OCR != string(ocr.StateReady) {
		t.Fatalf("health = %+v", resp)
	}
}

func TestTokenRequired(t *testing.T) {
	f := newFixture(t, "secret")
	if w := f.do(t, http.MethodGet, "/api/generation", "", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("missing token status = %d", w.Code)
	}
	if w := f.do(t, http.MethodGet, "/api/generation", "", "wrong"); w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong token status = %d", w.Code)
	}
	if w := f.do(t, http.MethodGet, "/api/generation", "", "secret"); w.Code != http.StatusOK {
		t.Fatalf("valid token status = %d", w.Code)
	}
}

func TestGenerationStartAndConflict(t *testing.T) {
	f := newFixture(t, "")

	w := f.do(t, http.MethodPost, "/api/generation", `{"activities_json":{"apps":["editor"]},"prompt":"Summarize"}`, "")
	if w.Code != http.StatusAccepted {
		t.Fatalf("start status = %d body=%s", w.Code, w.Body.String())
	}
	resp := decode[api.GenerationResponse](t, w)
	if !resp.Running || resp.Status != diary.StatusRunning || resp.ID != "job-1" {
		t.Fatalf("start response = %+v", resp)
	}
	if got := f.gen.inputs[0]; got.ActivitiesJSON != `{"apps":["editor"]}` || got.Prompt != "Summarize" {
		t.Fatalf("input = %+v", got)
	}

	w = f.do(t, http.MethodPost, "/api/generation", `{"activities_json":"{}"}`, "")
	if w.Code != http.StatusConflict {
		t.Fatalf("second start status = %d", w.Code)
	}
	if body := decode[api.ErrorResponse](t, w); body.Kind != "concurrency" {
		t.Fatalf("error body = %+v", body)
	}
}

func TestGenerationRejectsBadBodies(t *testing.T) {
	f := newFixture(t, "")
	for _, body := range []string{"", "{not json", `{"prompt":"only"}`, `{"activities_json":"  "}`} {
		if w := f.do(t, http.MethodPost, "/api/generation", body, ""); w.Code != http.StatusBadRequest {
			t.Fatalf("body %q status = %d", body, w.Code)
		}
	}
	if len(f.gen.inputs) != 0 {
		t.Fatalf("generator should not be called, got %d inputs", len(f.gen.inputs))
	}
}

func TestGenerationSync(t *testing.T) {
	f := newFixture(t, "")
	w := f.do(t, http.MethodPost, "/api/generation/sync", `{"activities_json":"{}"}`, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if resp := decode[api.ContentResponse](t, w); resp.Content != "generated" {
		t.Fatalf("content = %q", resp.Content)
	}

	f.gen.genErr = services.Wrap(services.ErrConfiguration, "diary", "load settings", "llm api key is not configured", nil)
	if w := f.do(t, http.MethodPost, "/api/generation/sync", `{"activities_json":"{}"}`, ""); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("config error status = %d", w.Code)
	}
}

func TestExtractStatusMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"ok", nil, http.StatusOK},
		{"missing image", services.Wrap(ocr.ErrImageNotFound, "ocr", "extract", "/tmp/x.png", nil), http.StatusNotFound},
		{"no interpreter", services.Wrap(ocr.ErrWorkerUnavailable, "ocr", "resolve", "python", nil), http.StatusServiceUnavailable},
		{"handshake", services.Wrap(ocr.ErrWorkerStartup, "ocr", "handshake", "boom", nil), http.StatusServiceUnavailable},
		{"broken pipe", services.Wrap(ocr.ErrWorkerIO, "ocr", "extract", "read response", nil), http.StatusBadGateway},
		{"worker error", services.Wrap(ocr.ErrExtraction, "ocr", "extract", "bad image", nil), http.StatusBadGateway},
		{"closed", ocr.ErrClosed, http.StatusServiceUnavailable},
		{"unknown", errors.New("odd"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, "")
			f.ext.err = tc.err
			w := f.do(t, http.MethodPost, "/api/extract", `{"image_path":"/tmp/x.png"}`, "")
			if w.Code != tc.want {
				t.Fatalf("status = %d, want %d (body %s)", w.Code, tc.want, w.Body.String())
			}
			if tc.err == nil {
				if resp := decode[api.ExtractResponse](t, w); resp.Text != "hello" {
					t.Fatalf("text = %q", resp.Text)
				}
			}
		})
	}
}

func TestExtractWorkerErrorKind(t *testing.T) {
	f := newFixture(t, "")
	f.ext.err = services.Wrap(ocr.ErrExtraction, "ocr", "extract", "cannot identify image file", nil)
	w := f.do(t, http.MethodPost, "/api/extract", `{"image_path":"/tmp/x.png"}`, "")
	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d", w.Code)
	}
	if resp := decode[api.ErrorResponse](t, w); resp.Kind != "rejected" {
		t.Fatalf("kind = %q, want rejected (body %s)", resp.Kind, w.Body.String())
	}
}

func TestExtractStoresRecord(t *testing.T) {
	f := newFixture(t, "")
	f.ext.text = "Inbox (3)"
	w := f.do(t, http.MethodPost, "/api/extract", `{"image_path":"/tmp/shot.png","app_name":"Mail"}`, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	resp := decode[api.ExtractResponse](t, w)
	if resp.Text != "Inbox (3)" || resp.RecordID == 0 {
		t.Fatalf("extract = %+v", resp)
	}

	today := time.Now().Format(storage.SubjectKeyLayout)
	w = f.do(t, http.MethodGet, "/api/ocr/"+today, "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d body=%s", w.Code, w.Body.String())
	}
	list := decode[api.OCRRecordListResponse](t, w)
	if list.Date != today || len(list.Items) != 1 {
		t.Fatalf("records = %+v", list)
	}
	rec := list.Items[0]
	if rec.ID != resp.RecordID || rec.ImagePath != "/tmp/shot.png" || rec.AppName != "Mail" || rec.Text != "Inbox (3)" {
		t.Fatalf("record = %+v", rec)
	}

	if w := f.do(t, http.MethodGet, "/api/ocr/today", "", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("bad date status = %d", w.Code)
	}
}

func TestExtractSkipsBlankText(t *testing.T) {
	f := newFixture(t, "")
	f.ext.text = "  \n"
	w := f.do(t, http.MethodPost, "/api/extract", `{"image_path":"/tmp/blank.png"}`, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if resp := decode[api.ExtractResponse](t, w); resp.RecordID != 0 {
		t.Fatalf("blank text was stored: %+v", resp)
	}
	records, err := f.store.ListOCRRecords(context.Background(), time.Now().Format(storage.SubjectKeyLayout))
	if err != nil {
		t.Fatalf("ListOCRRecords: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("records = %+v", records)
	}
}

func TestExtractDisabled(t *testing.T) {
	srv := api.NewServer("127.0.0.1:0", api.Deps{})
	req := httptest.NewRequest(http.MethodPost, "/api/extract", strings.NewReader(`{"image_path":"a.png"}`))
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestEventsBacklog(t *testing.T) {
	f := newFixture(t, "")
	f.hub.Publish(events.Event{Name: events.Chunk, JobID: "j", Payload: "Hel"})
	f.hub.Publish(events.Event{Name: events.Chunk, JobID: "j", Payload: "lo"})
	f.hub.Publish(events.Event{Name: events.Complete, JobID: "j", Payload: "Hello"})

	w := f.do(t, http.MethodGet, "/api/events?since=1&follow=false", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("content type = %q", ct)
	}
	body := w.Body.String()
	if strings.Contains(body, "id: 1\n") {
		t.Fatalf("event before cursor was replayed: %s", body)
	}
	if !strings.Contains(body, "id: 2\nevent: chunk\ndata: ") || !strings.Contains(body, "id: 3\nevent: complete\ndata: ") {
		t.Fatalf("unexpected stream: %s", body)
	}

	if w := f.do(t, http.MethodGet, "/api/events?since=abc", "", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("bad cursor status = %d", w.Code)
	}
}

func TestRecentEvents(t *testing.T) {
	f := newFixture(t, "")
	for _, payload := range []string{"a", "b", "c"} {
		f.hub.Publish(events.Event{Name: events.Chunk, Payload: payload})
	}

	w := f.do(t, http.MethodGet, "/api/events/recent?limit=2", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	resp := decode[api.RecentEventsResponse](t, w)
	if resp.LastSequence != 3 || len(resp.Items) != 2 {
		t.Fatalf("recent = %+v", resp)
	}
	if resp.Items[0].Payload != "b" || resp.Items[1].Payload != "c" {
		t.Fatalf("recent order = %+v", resp.Items)
	}

	if w := f.do(t, http.MethodGet, "/api/events/recent?limit=zero", "", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("bad limit status = %d", w.Code)
	}

	w = f.do(t, http.MethodGet, "/api/health", "", "")
	if health := decode[api.HealthResponse](t, w); health.LastEvent != 3 {
		t.Fatalf("health last event = %d", health.LastEvent)
	}
}

func TestEventsFollow(t *testing.T) {
	f := newFixture(t, "")
	server := httptest.NewServer(f.handler)
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, server.URL+"/api/events", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer resp.Body.Close()

	go func() {
		time.Sleep(20 * time.Millisecond)
		f.hub.Publish(events.Event{Name: events.Chunk, Payload: "a"})
		f.hub.Publish(events.Event{Name: events.Complete, Payload: "a"})
	}()

	var names []string
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if name, ok := strings.CutPrefix(line, "event: "); ok {
			names = append(names, name)
			if name == string(events.Complete) {
				break
			}
		}
	}
	if strings.Join(names, ",") != "chunk,complete" {
		t.Fatalf("events = %v (scan err %v)", names, scanner.Err())
	}
}

func TestDiaryEndpoints(t *testing.T) {
	f := newFixture(t, "")

	w := f.do(t, http.MethodPut, "/api/diaries/2026-01-02", `{"content":"A quiet day."}`, "")
	if w.Code != http.StatusOK {
		t.Fatalf("put status = %d body=%s", w.Code, w.Body.String())
	}

	w = f.do(t, http.MethodGet, "/api/diaries/2026-01-02", "", "")
	if entry := decode[storage.Entry](t, w); entry.Content != "A quiet day." {
		t.Fatalf("entry = %+v", entry)
	}

	w = f.do(t, http.MethodGet, "/api/diaries", "", "")
	if list := decode[api.DiaryListResponse](t, w); len(list.Items) != 1 {
		t.Fatalf("list = %+v", list)
	}

	if w := f.do(t, http.MethodGet, "/api/diaries/2026-01-03", "", ""); w.Code != http.StatusNotFound {
		t.Fatalf("missing status = %d", w.Code)
	}
	if w := f.do(t, http.MethodPut, "/api/diaries/..%2Fescape", `{"content":"x"}`, ""); w.Code != http.StatusBadRequest {
		t.Fatalf("bad key status = %d", w.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t, "secret")
	w := f.do(t, http.MethodGet, "/metrics", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "dailycraft_generation_job_running") {
		t.Fatalf("exposition missing job gauge")
	}
}

func TestServerStartAndClient(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	gen := &fakeGenerator{}
	hub := events.NewHub(4)
	hub.Publish(events.Event{Name: events.Error, Payload: "earlier failure"})
	srv := api.NewServer("127.0.0.1:0", api.Deps{
		Generator: gen,
		Diaries:   testsupport.MustOpenStore(t, cfg),
		Events:    hub,
		Token:     "secret",
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := srv.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer srv.Stop()

	client := api.NewClient(srv.Addr(), "secret")
	health, err := client.Health(ctx)
	if err != nil || health.Status != "ok" || health.LastEvent != 1 {
		t.Fatalf("health = %+v err=%v", health, err)
	}
	recent, err := client.RecentEvents(ctx, 10)
	if err != nil || len(recent.Items) != 1 || recent.Items[0].Name != events.Error {
		t.Fatalf("recent = %+v err=%v", recent, err)
	}

	started, err := client.StartGeneration(ctx, api.NewGenerationRequest(`{"x":1}`, ""))
	if err != nil || !started.Running {
		t.Fatalf("start = %+v err=%v", started, err)
	}
	if got := gen.inputs[0].ActivitiesJSON; got != `{"x":1}` {
		t.Fatalf("activities = %q", got)
	}

	_, err = api.NewClient(srv.Addr(), "").Generation(ctx)
	var remote *api.RemoteError
	if !errors.As(err, &remote) || remote.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unauthenticated err = %v", err)
	}
}
