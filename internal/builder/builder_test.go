package builder

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shouni/go-scene-kit/internal/config"

	sceneconfig "github.com/shouni/go-scene-kit/pkg/config"
	"github.com/shouni/go-scene-kit/pkg/store"
)

func writeScenes(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"a.png", "b.png"} {
		if err := os.WriteFile(filepath.Join(dir, name), buf.Bytes(), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, "broken.png"), []byte("not a png"), 0o644); err != nil {
		t.Fatal(err)
	}

	list := `[{"src":"a.png","cap":"一枚目"},{"src":"b.png"},{"src":"broken.png"}]`
	path := filepath.Join(dir, "scenes.json")
	if err := os.WriteFile(path, []byte(list), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func testConfig(source string) *config.Config {
	return &config.Config{Source: source, LogLevel: "info", Scene: sceneconfig.DefaultConfig()}
}

func TestBuildAppContext(t *testing.T) {
	ctx := context.Background()

	t.Run("シーンリストが相対参照ごと読み込まれる", func(t *testing.T) {
		source := writeScenes(t)
		appCtx, err := BuildAppContext(ctx, testConfig(source), nil)
		if err != nil {
			t.Fatalf("BuildAppContext() error = %v", err)
		}
		if appCtx.Store.Len() != 3 {
			t.Errorf("Len() = %d", appCtx.Store.Len())
		}
		want := filepath.Join(filepath.Dir(source), "a.png")
		if got := appCtx.Store.Get(0).Ref; got != want {
			t.Errorf("Ref = %q, want %q", got, want)
		}
	})

	t.Run("存在しないシーンリストは LoadError", func(t *testing.T) {
		_, err := BuildAppContext(ctx, testConfig(filepath.Join(t.TempDir(), "missing.json")), nil)
		var loadErr *store.LoadError
		if !errors.As(err, &loadErr) {
			t.Errorf("err = %v, want *store.LoadError", err)
		}
	})

	t.Run("不正な設定はエラー", func(t *testing.T) {
		cfg := testConfig(writeScenes(t))
		cfg.Scene.DecodeMode = "bogus"
		if _, err := BuildAppContext(ctx, cfg, nil); err == nil {
			t.Error("エラーになりませんでした")
		}
	})
}

func TestBuildAppContext_RemoteSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/scenes.json" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`[{"src":"a.png"},{"src":"b.png"}]`))
	}))
	defer srv.Close()

	remoteConfig := func(allowPrivate bool) *config.Config {
		cfg := testConfig(srv.URL + "/scenes.json")
		cfg.Scene.FetchAllowPrivate = allowPrivate
		cfg.Scene.FetchMaxRetries = 1
		cfg.Scene.FetchRetryInterval = time.Millisecond
		return cfg
	}

	t.Run("HTTP クライアント経由で読み込まれる", func(t *testing.T) {
		appCtx, err := BuildAppContext(context.Background(), remoteConfig(true), nil)
		if err != nil {
			t.Fatalf("BuildAppContext() error = %v", err)
		}
		if appCtx.HTTPClient() == nil {
			t.Error("HTTPClient() が nil です")
		}
		if appCtx.Store.Len() != 2 {
			t.Fatalf("Len() = %d", appCtx.Store.Len())
		}
		if got, want := appCtx.Store.Get(1).Ref, srv.URL+"/b.png"; got != want {
			t.Errorf("Ref = %q, want %q", got, want)
		}
	})

	t.Run("プライベートアドレスは既定でブロックされる", func(t *testing.T) {
		_, err := BuildAppContext(context.Background(), remoteConfig(false), nil)
		var loadErr *store.LoadError
		if !errors.As(err, &loadErr) {
			t.Errorf("err = %v, want *store.LoadError", err)
		}
	})
}

func TestBuildViewer(t *testing.T) {
	for _, kind := range []string{sceneconfig.SchedulerIdle, sceneconfig.SchedulerTick} {
		t.Run(kind, func(t *testing.T) {
			cfg := testConfig(writeScenes(t))
			cfg.Scene.Scheduler = kind
			appCtx, err := BuildAppContext(context.Background(), cfg, nil)
			if err != nil {
				t.Fatalf("BuildAppContext() error = %v", err)
			}

			v, err := BuildViewer(appCtx, nil, nil)
			if err != nil {
				t.Fatalf("BuildViewer() error = %v", err)
			}
			defer v.Close()

			if (v.Idle != nil) != (kind == sceneconfig.SchedulerIdle) {
				t.Errorf("Idle = %v", v.Idle)
			}
			if v.Sequencer.Len() != 3 {
				t.Errorf("Len() = %d", v.Sequencer.Len())
			}
		})
	}
}

func TestBuildViewer_RunnerWaitsForLastSwapAtEOF(t *testing.T) {
	cfg := testConfig(writeScenes(t))
	cfg.Scene.Scheduler = sceneconfig.SchedulerTick
	appCtx, err := BuildAppContext(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("BuildAppContext() error = %v", err)
	}
	v, err := BuildViewer(appCtx, nil, nil)
	if err != nil {
		t.Fatalf("BuildViewer() error = %v", err)
	}
	defer v.Close()

	v.Sequencer.Start()
	if err := v.Runner.Run(context.Background(), strings.NewReader("n\n")); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if idx, _ := v.Sequencer.Current(); idx != 1 {
		t.Errorf("入力の終わりで最後の要求が確定していません: currentIndex = %d", idx)
	}
}

func TestBuildCheckRunner(t *testing.T) {
	appCtx, err := BuildAppContext(context.Background(), testConfig(writeScenes(t)), nil)
	if err != nil {
		t.Fatalf("BuildAppContext() error = %v", err)
	}
	cr, err := BuildCheckRunner(appCtx)
	if err != nil {
		t.Fatalf("BuildCheckRunner() error = %v", err)
	}

	report, err := cr.Run(context.Background(), appCtx.Store.Scenes())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.Checked != 3 || len(report.Failures) != 1 {
		t.Fatalf("report = %+v", report)
	}
	if filepath.Base(report.Failures[0].Ref) != "broken.png" {
		t.Errorf("Failures[0].Ref = %q", report.Failures[0].Ref)
	}
}
