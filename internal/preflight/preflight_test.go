package preflight

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"linkrelay/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func telegramServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/botgood-token/getMe" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"ok":false,"error_code":401,"description":"Unauthorized"}`))
			return
		}
		_, _ = w.Write([]byte(`{"ok":true,"result":{"id":1,"is_bot":true,"username":"relay_bot"}}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCheckTelegram_OK(t *testing.T) {
	srv := telegramServer(t)
	result := CheckTelegram(context.Background(), srv.URL, "good-token")
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
	if result.Detail != "authenticated as @relay_bot" {
		t.Fatalf("unexpected detail %q", result.Detail)
	}
}

func TestCheckTelegram_BadToken(t *testing.T) {
	srv := telegramServer(t)
	result := CheckTelegram(context.Background(), srv.URL, "bad-token")
	if result.Passed {
		t.Fatal("expected failure for bad token")
	}
}

func TestCheckTelegram_MissingToken(t *testing.T) {
	result := CheckTelegram(context.Background(), "http://localhost", "")
	if result.Passed {
		t.Fatal("expected failure for missing token")
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	if results := RunAll(context.Background(), nil, true); results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_Offline(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	results := RunAll(context.Background(), cfg, true)
	if len(results) != 3 {
		t.Fatalf("expected 3 directory results, got %d", len(results))
	}
	for _, r := range results {
		if !r.Passed {
			t.Errorf("check %q failed: %s", r.Name, r.Detail)
		}
	}
}

func TestRunAll_IncludesTelegram(t *testing.T) {
	srv := telegramServer(t)
	cfg := testsupport.NewConfig(t)
	cfg.Telegram.APIEndpoint = srv.URL
	cfg.Telegram.BotToken = "good-token"
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	results := RunAll(context.Background(), cfg, false)
	last := results[len(results)-1]
	if last.Name != "Telegram" || !last.Passed {
		t.Fatalf("expected passing Telegram check, got %+v", last)
	}
}
