package rootapi

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"testing"

	"github.com/plexsphere/rootd/internal/rootaccess"
)

// serveUnix runs handler on a fresh Unix socket for the duration of the test.
func serveUnix(t *testing.T, handler http.Handler) string {
	t.Helper()
	sock := filepath.Join(t.TempDir(), "client.sock")
	ln, err := net.Listen("unix", sock)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = srv.Serve(ln)
	}()
	t.Cleanup(func() {
		srv.Close()
		<-done
	})
	return sock
}

func TestClient_PermissionError(t *testing.T) {
	sock := serveUnix(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusForbidden, ErrorResponse{Error: "Caller must be system", Op: "setEnabled"})
	}))

	err := NewClient(sock).SetEnabled(context.Background(), true)
	var pe *rootaccess.PermissionError
	if !errors.As(err, &pe) {
		t.Fatalf("error = %v, want *PermissionError", err)
	}
	if pe.Reason != "Caller must be system" || pe.Op != "setEnabled" {
		t.Errorf("PermissionError = %+v", pe)
	}
}

func TestClient_PermissionErrorWithoutBody(t *testing.T) {
	sock := serveUnix(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))

	_, err := NewClient(sock).Enabled(context.Background())
	var pe *rootaccess.PermissionError
	if !errors.As(err, &pe) {
		t.Fatalf("error = %v, want *PermissionError", err)
	}
	if pe.Reason != http.StatusText(http.StatusForbidden) {
		t.Errorf("Reason = %q, want %q", pe.Reason, http.StatusText(http.StatusForbidden))
	}
	if !errors.Is(err, rootaccess.ErrPermissionDenied) {
		t.Error("errors.Is(err, ErrPermissionDenied) = false")
	}
}

func TestClient_ServerError(t *testing.T) {
	sock := serveUnix(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	_, err := NewClient(sock).Enabled(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, rootaccess.ErrPermissionDenied) {
		t.Errorf("error = %v, must not be a permission error", err)
	}
	if !strings.Contains(err.Error(), "502") {
		t.Errorf("error = %v, want status code", err)
	}
}

func TestClient_SendsBody(t *testing.T) {
	type captured struct{ method, body string }
	got := make(chan captured, 1)
	sock := serveUnix(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := new(strings.Builder)
		_, _ = io.Copy(buf, r.Body)
		got <- captured{method: r.Method, body: buf.String()}
		writeJSON(w, http.StatusOK, RootState{Enabled: false})
	}))

	if err := NewClient(sock).SetEnabled(context.Background(), false); err != nil {
		t.Fatalf("SetEnabled: %v", err)
	}
	c := <-got
	if c.method != http.MethodPut {
		t.Errorf("method = %q, want PUT", c.method)
	}
	if c.body != `{"enabled":false}` {
		t.Errorf("body = %q, want %q", c.body, `{"enabled":false}`)
	}
}

func TestClient_NoServer(t *testing.T) {
	_, err := NewClient(filepath.Join(t.TempDir(), "missing.sock")).Enabled(context.Background())
	if err == nil || !strings.Contains(err.Error(), "socket unavailable") {
		t.Fatalf("error = %v, want socket unavailable", err)
	}
}

func TestConfig_Defaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	if cfg.SocketPath != DefaultSocketPath {
		t.Errorf("SocketPath = %q, want %q", cfg.SocketPath, DefaultSocketPath)
	}
	if cfg.SocketGroup != DefaultSocketGroup {
		t.Errorf("SocketGroup = %q, want %q", cfg.SocketGroup, DefaultSocketGroup)
	}
	if cfg.ShutdownTimeout != DefaultShutdownTimeout {
		t.Errorf("ShutdownTimeout = %v, want %v", cfg.ShutdownTimeout, DefaultShutdownTimeout)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}

	cfg.ShutdownTimeout = -1
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for negative ShutdownTimeout")
	}
}
