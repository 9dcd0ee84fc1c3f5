package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/Guilhem-Bonnet/TikTok-Batch-Scheduler/internal/adapters/cookies"
	"github.com/Guilhem-Bonnet/TikTok-Batch-Scheduler/internal/adapters/ledger"
	"github.com/Guilhem-Bonnet/TikTok-Batch-Scheduler/internal/adapters/memorybus"
	"github.com/Guilhem-Bonnet/TikTok-Batch-Scheduler/internal/app"
	"github.com/Guilhem-Bonnet/TikTok-Batch-Scheduler/internal/ports"
)

type okSession struct{}

func (okSession) AttachFile(ctx context.Context, path string) error { return nil }

func (okSession) SetCaption(ctx context.Context, text string) error { return nil }

func (okSession) SetScheduleTime(ctx context.Context, at time.Time) error { return nil }

func (okSession) DetectCopyrightWarning(ctx context.Context) (bool, error) { return false, nil }

func (okSession) Submit(ctx context.Context) (ports.Confirmation, error) {
	return ports.Confirmation{At: time.Now(), Message: "ok"}, nil
}
func (okSession) Reset(ctx context.Context) error { return nil }

func (okSession) Close() error { return nil }

type okAuto struct{}

func (okAuto) OpenUploadSurface(ctx context.Context, account string) (ports.UploadSession, error) {
	return okSession{}, nil
}

func (okAuto) VerifyPublished(ctx context.Context, account, videoID string) (bool, error) {
	return true, nil
}

type testEnv struct {
	srv     *httptest.Server
	cookies string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zerolog.Nop()

	cookiesDir := t.TempDir()
	ledgersDir := t.TempDir()

	sessions, err := cookies.NewStore(cookiesDir, logger)
	if err != nil {
		t.Fatalf("cookies.NewStore: %v", err)
	}
	store, err := ledger.NewStore(ledgersDir, logger)
	if err != nil {
		t.Fatalf("ledger.NewStore: %v", err)
	}

	bus := memorybus.New()
	t.Cleanup(bus.Close)

	slots := app.NewSlotGenerator(logger, 1)
	scanner := app.NewFileScanner(logger)
	orch := app.NewOrchestrator(logger, slots, store, okAuto{}, bus, nil,
		app.OrchestratorOptions{MaxAttempts: 1, RetryInterval: time.Millisecond})
	batches := app.NewBatchService(logger, orch, scanner, nil, bus)

	srv := httptest.NewServer(NewServer(logger, batches, scanner, slots, store, sessions, bus).Router())
	t.Cleanup(srv.Close)

	return &testEnv{srv: srv, cookies: cookiesDir}
}

func (e *testEnv) get(t *testing.T, path string, out any) int {
	t.Helper()
	resp, err := http.Get(e.srv.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
	}
	return resp.StatusCode
}

func (e *testEnv) post(t *testing.T, path string, body, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		t.Fatalf("encode: %v", err)
	}
	resp, err := http.Post(e.srv.URL+path, "application/json", &buf)
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
	}
	return resp.StatusCode
}

func testWindowJSON() map[string]any {
	start := time.Now().Add(48 * time.Hour)
	return map[string]any{
		"rangeStart": start.Format(time.RFC3339),
		"rangeEnd":   start.Add(24 * time.Hour).Format(time.RFC3339),
		"dayStart":   map[string]int{"hour": 9, "minute": 0},
		"dayEnd":     map[string]int{"hour": 17, "minute": 0},
	}
}

func testRuleJSON() map[string]any {
	return map[string]any{
		"minOffsetMinutes": 15,
		"maxOffsetMonths":  1,
		"minuteStep":       5,
		"intervalMinutes":  60,
	}
}

func TestAPI_HealthAndVersion(t *testing.T) {
	env := newTestEnv(t)

	var health map[string]string
	if code := env.get(t, "/api/v1/health", &health); code != http.StatusOK {
		t.Fatalf("health: %d", code)
	}
	if health["status"] != "ok" {
		t.Fatalf("health body: %v", health)
	}

	var version map[string]any
	if code := env.get(t, "/api/v1/version", &version); code != http.StatusOK {
		t.Fatalf("version: %d", code)
	}
	if version["version"] == "" {
		t.Fatalf("version body: %v", version)
	}
}

func TestAPI_Accounts(t *testing.T) {
	env := newTestEnv(t)

	var accounts []string
	if code := env.get(t, "/api/v1/accounts", &accounts); code != http.StatusOK {
		t.Fatalf("accounts: %d", code)
	}
	if len(accounts) != 0 {
		t.Fatalf("want no accounts, got %v", accounts)
	}

	if err := os.WriteFile(filepath.Join(env.cookies, "@user-cookie.json"), []byte("[]"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if code := env.get(t, "/api/v1/accounts", &accounts); code != http.StatusOK {
		t.Fatalf("accounts: %d", code)
	}
	if len(accounts) != 1 || accounts[0] != "user" {
		t.Fatalf("accounts: %v", accounts)
	}
}

func TestAPI_Scan(t *testing.T) {
	env := newTestEnv(t)

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "clip.mp4"), []byte("data"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	var out struct {
		Videos []map[string]any `json:"videos"`
	}
	if code := env.post(t, "/api/v1/scan", map[string]any{"folder": dir}, &out); code != http.StatusOK {
		t.Fatalf("scan: %d", code)
	}
	if len(out.Videos) != 1 {
		t.Fatalf("videos: %v", out.Videos)
	}

	if code := env.post(t, "/api/v1/scan", map[string]any{"folder": filepath.Join(dir, "nope")}, nil); code != http.StatusNotFound {
		t.Fatalf("missing folder: want 404, got %d", code)
	}
	if code := env.post(t, "/api/v1/scan", map[string]any{}, nil); code != http.StatusBadRequest {
		t.Fatalf("missing field: want 400, got %d", code)
	}
}

func TestAPI_SchedulePreview(t *testing.T) {
	env := newTestEnv(t)

	var out struct {
		Slots []map[string]any `json:"slots"`
	}
	code := env.post(t, "/api/v1/schedule/preview", map[string]any{
		"count":  3,
		"rule":   testRuleJSON(),
		"window": testWindowJSON(),
	}, &out)
	if code != http.StatusOK {
		t.Fatalf("preview: %d", code)
	}
	if len(out.Slots) != 3 {
		t.Fatalf("slots: %v", out.Slots)
	}

	bad := testRuleJSON()
	bad["minuteStep"] = 7
	code = env.post(t, "/api/v1/schedule/preview", map[string]any{
		"count": 1, "rule": bad, "window": testWindowJSON(),
	}, nil)
	if code != http.StatusBadRequest {
		t.Fatalf("invalid rule: want 400, got %d", code)
	}
}

func TestAPI_BatchLifecycle(t *testing.T) {
	env := newTestEnv(t)

	dir := t.TempDir()
	for _, name := range []string{"a.mp4", "b.mp4"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("data"), 0o644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}

	var created map[string]any
	code := env.post(t, "/api/v1/batches", map[string]any{
		"account": "user",
		"folder":  dir,
		"rule":    testRuleJSON(),
		"window":  testWindowJSON(),
	}, &created)
	if code != http.StatusCreated {
		t.Fatalf("create batch: %d (%v)", code, created)
	}
	id, _ := created["id"].(string)
	if id == "" {
		t.Fatalf("batch id missing: %v", created)
	}

	deadline := time.Now().Add(5 * time.Second)
	var batch map[string]any
	for {
		if code := env.get(t, "/api/v1/batches/"+id, &batch); code != http.StatusOK {
			t.Fatalf("get batch: %d", code)
		}
		state, _ := batch["state"].(string)
		if state == "completed" || state == "failed" || state == "canceled" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("batch stuck in state %q", state)
		}
		time.Sleep(10 * time.Millisecond)
	}
	if batch["state"] != "completed" {
		t.Fatalf("batch: %v", batch)
	}

	var records []map[string]any
	if code := env.get(t, "/api/v1/ledgers/user/schedules", &records); code != http.StatusOK {
		t.Fatalf("ledgers: %d", code)
	}
	if len(records) != 2 {
		t.Fatalf("want 2 schedule records, got %v", records)
	}

	var list []map[string]any
	if code := env.get(t, "/api/v1/batches", &list); code != http.StatusOK || len(list) != 1 {
		t.Fatalf("list: %d %v", code, list)
	}

	if code := env.get(t, "/api/v1/batches/unknown", nil); code != http.StatusNotFound {
		t.Fatalf("unknown batch: want 404, got %d", code)
	}
}

func TestAPI_BatchValidation(t *testing.T) {
	env := newTestEnv(t)

	if code := env.post(t, "/api/v1/batches", map[string]any{"folder": "/tmp"}, nil); code != http.StatusBadRequest {
		t.Fatalf("missing account: want 400, got %d", code)
	}
	if code := env.post(t, "/api/v1/batches", map[string]any{"account": "u"}, nil); code != http.StatusBadRequest {
		t.Fatalf("missing folder: want 400, got %d", code)
	}

	code := env.post(t, "/api/v1/batches", map[string]any{
		"account": "u",
		"folder":  fmt.Sprintf("%s/nope", t.TempDir()),
		"rule":    testRuleJSON(),
		"window":  testWindowJSON(),
	}, nil)
	if code != http.StatusNotFound {
		t.Fatalf("missing folder on disk: want 404, got %d", code)
	}
}
