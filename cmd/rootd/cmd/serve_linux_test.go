//go:build linux

package cmd

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/goleak"

	"github.com/plexsphere/rootd/internal/config"
	"github.com/plexsphere/rootd/internal/rootapi"
)

type recordingRestarter struct {
	mu    sync.Mutex
	names []string
}

func (r *recordingRestarter) RestartService(_ context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names = append(r.names, name)
	return nil
}

func (r *recordingRestarter) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.names...)
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{MetricsEnabled: true}
	cfg.RootAccess.StateDir = filepath.Join(dir, "state")
	cfg.RootAccess.SystemUIDs = []uint32{uint32(os.Getuid())}
	cfg.API.SocketPath = filepath.Join(dir, "rootd.sock")
	cfg.API.ShutdownTimeout = 2 * time.Second
	cfg.Properties.PropertyDir = filepath.Join(dir, "props")
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	return cfg
}

func TestBuildServer_EndToEnd(t *testing.T) {
	defer goleak.VerifyNone(t)

	cfg := testConfig(t)
	if err := os.MkdirAll(cfg.RootAccess.StateDir, 0700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(cfg.RootAccess.StateDir, "enabled"), []byte("1"), 0600); err != nil {
		t.Fatal(err)
	}

	restarter := &recordingRestarter{}
	srv, err := buildServer(cfg, restarter, prometheus.NewRegistry(), setupLogger("error"))
	if err != nil {
		t.Fatalf("buildServer: %v", err)
	}
	srv.SetNotifier(func(string) error { return nil })
	srv.SetListenerSource(nil)
	if err := srv.Listen(); err != nil {
		t.Fatalf("Listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ctx) }()

	client := rootapi.NewClient(cfg.API.SocketPath)
	enabled, err := client.Enabled(ctx)
	if err != nil {
		t.Fatalf("Enabled: %v", err)
	}
	if !enabled {
		t.Fatal("enabled = false, want persisted true")
	}

	if err := client.SetEnabled(ctx, false); err != nil {
		t.Fatalf("SetEnabled(false): %v", err)
	}

	prop, err := os.ReadFile(filepath.Join(cfg.Properties.PropertyDir, cfg.RootAccess.ActiveProperty))
	if err != nil {
		t.Fatalf("read property: %v", err)
	}
	if string(prop) != "0" {
		t.Errorf("property = %q, want %q", prop, "0")
	}
	if names := restarter.Names(); len(names) != 1 || names[0] != cfg.RootAccess.RestartTarget {
		t.Errorf("restarts = %v, want [%s]", names, cfg.RootAccess.RestartTarget)
	}

	cancel()
	if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
		t.Fatalf("Serve: %v", err)
	}
}

func TestServeCommand_RegistrationFailure(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}
	cfgPath := filepath.Join(dir, "config.yaml")
	yaml := "root_access:\n  state_dir: " + filepath.Join(dir, "state") + "\n" +
		"properties:\n  property_dir: " + filepath.Join(dir, "props") + "\n"
	if err := os.WriteFile(cfgPath, []byte(yaml), 0600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		cfgFile = config.DefaultPath
		logLevel = ""
	})

	_, err := runCLI(t, "--config", cfgPath, "--log-level", "error",
		"--socket", filepath.Join(blocker, "rootd.sock"), "serve")
	if err == nil {
		t.Fatal("serve succeeded without a socket")
	}
	if !strings.Contains(err.Error(), "rootd serve") {
		t.Errorf("error = %v, want serve failure", err)
	}
}

func newUnixHTTPClient(socketPath string) *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			DialContext: func(_ context.Context, _, _ string) (net.Conn, error) {
				return net.Dial("unix", socketPath)
			},
			DisableKeepAlives: true,
		},
	}
}

func TestMetricsExposedToSystem(t *testing.T) {
	defer goleak.VerifyNone(t)

	cfg := testConfig(t)
	srv, err := buildServer(cfg, &recordingRestarter{}, prometheus.NewRegistry(), setupLogger("error"))
	if err != nil {
		t.Fatalf("buildServer: %v", err)
	}
	srv.SetNotifier(nil)
	srv.SetListenerSource(nil)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	if err := srv.Listen(); err != nil {
		t.Fatalf("Listen: %v", err)
	}
	go func() { errCh <- srv.Serve(ctx) }()

	client := newUnixHTTPClient(cfg.API.SocketPath)
	resp, err := client.Get("http://localhost/metrics")
	if err != nil {
		cancel()
		t.Fatalf("GET /metrics: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), "rootd_enabled 0") {
		t.Errorf("metrics body missing rootd_enabled 0:\n%s", body)
	}

	cancel()
	<-errCh
}
