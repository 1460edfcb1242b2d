package rootaccess

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// staticResolver always resolves to the same role.
type staticResolver struct {
	role Role
	err  error
}

func (r staticResolver) Resolve(context.Context) (Role, error) {
	return r.role, r.err
}

// mockController records property writes and restarts.
type mockController struct {
	mu         sync.Mutex
	properties map[string]string
	calls      []string
	restarts   []string
	setErr     error
	restartErr error
	ctxErr     error
}

func newMockController() *mockController {
	return &mockController{properties: make(map[string]string)}
}

func (m *mockController) SetProperty(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "set:"+key+"="+value)
	m.ctxErr = ctx.Err()
	if m.setErr != nil {
		return m.setErr
	}
	m.properties[key] = value
	return nil
}

func (m *mockController) RestartService(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "restart:"+name)
	m.ctxErr = ctx.Err()
	if m.restartErr != nil {
		return m.restartErr
	}
	m.restarts = append(m.restarts, name)
	return nil
}

type serviceFixture struct {
	svc       *Service
	persister *FilePersister
	ctl       *mockController
	metrics   *Metrics
}

// newServiceFixture builds a Service over a real state file, optionally
// seeded with initial content.
func newServiceFixture(t *testing.T, role Role, initial string) *serviceFixture {
	t.Helper()
	dir := t.TempDir()
	if initial != "" {
		if err := os.WriteFile(dir+"/"+StateFileName, []byte(initial), 0600); err != nil {
			t.Fatalf("seed state: %v", err)
		}
	}
	cfg := Config{StateDir: dir, SideEffectTimeout: time.Second}
	cfg.ApplyDefaults()

	metrics, err := NewMetrics(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	p := NewFilePersister(dir)
	ctl := newMockController()
	store := NewStore(p, metrics, nil)
	svc := NewService(cfg, store, staticResolver{role: role}, ctl, metrics, nil)
	return &serviceFixture{svc: svc, persister: p, ctl: ctl, metrics: metrics}
}

func TestService_SetEnabledDeniedForNonSystem(t *testing.T) {
	for _, role := range []Role{RoleShell, RoleOther, ""} {
		t.Run(string(role), func(t *testing.T) {
			f := newServiceFixture(t, role, "0")

			err := f.svc.SetEnabled(context.Background(), true)
			if !errors.Is(err, ErrPermissionDenied) {
				t.Fatalf("SetEnabled error = %v, want ErrPermissionDenied", err)
			}
			assertStateFile(t, f.persister.Path(), "0")
			if f.svc.store.Get() {
				t.Error("stored value changed after denied call")
			}
		})
	}
}

func TestService_GetEnabledDeniedForOther(t *testing.T) {
	f := newServiceFixture(t, RoleOther, "1")

	_, err := f.svc.GetEnabled(context.Background())
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("GetEnabled error = %v, want ErrPermissionDenied", err)
	}
	if got := testutil.ToFloat64(f.metrics.Calls.WithLabelValues("getEnabled", "denied")); got != 1 {
		t.Errorf("denied calls = %v, want 1", got)
	}
}

func TestService_GetEnabledAllowedForShell(t *testing.T) {
	f := newServiceFixture(t, RoleShell, "1")

	enabled, err := f.svc.GetEnabled(context.Background())
	if err != nil {
		t.Fatalf("GetEnabled: %v", err)
	}
	if !enabled {
		t.Error("enabled = false, want true")
	}
}

func TestService_EnableHasNoSideEffect(t *testing.T) {
	f := newServiceFixture(t, RoleSystem, "")

	if err := f.svc.SetEnabled(context.Background(), true); err != nil {
		t.Fatalf("SetEnabled(true): %v", err)
	}
	enabled, err := f.svc.GetEnabled(context.Background())
	if err != nil {
		t.Fatalf("GetEnabled: %v", err)
	}
	if !enabled {
		t.Error("enabled = false after SetEnabled(true)")
	}
	assertStateFile(t, f.persister.Path(), "1")
	if len(f.ctl.calls) != 0 {
		t.Errorf("controller calls = %v, want none", f.ctl.calls)
	}
	if got := testutil.ToFloat64(f.metrics.Enabled); got != 1 {
		t.Errorf("rootd_enabled = %v, want 1", got)
	}
}

func TestService_DisableTriggersSideEffectOnce(t *testing.T) {
	f := newServiceFixture(t, RoleSystem, "1")

	if err := f.svc.SetEnabled(context.Background(), false); err != nil {
		t.Fatalf("SetEnabled(false): %v", err)
	}
	enabled, err := f.svc.GetEnabled(context.Background())
	if err != nil {
		t.Fatalf("GetEnabled: %v", err)
	}
	if enabled {
		t.Error("enabled = true after SetEnabled(false)")
	}
	assertStateFile(t, f.persister.Path(), "0")

	if got := f.ctl.properties[DefaultActiveProperty]; got != "0" {
		t.Errorf("property %s = %q, want %q", DefaultActiveProperty, got, "0")
	}
	if len(f.ctl.restarts) != 1 || f.ctl.restarts[0] != DefaultRestartTarget {
		t.Errorf("restarts = %v, want [%s]", f.ctl.restarts, DefaultRestartTarget)
	}
	wantOrder := []string{"set:" + DefaultActiveProperty + "=0", "restart:" + DefaultRestartTarget}
	for i, c := range wantOrder {
		if i >= len(f.ctl.calls) || f.ctl.calls[i] != c {
			t.Fatalf("controller calls = %v, want %v", f.ctl.calls, wantOrder)
		}
	}
	if got := testutil.ToFloat64(f.metrics.Transitions.WithLabelValues("disabled")); got != 1 {
		t.Errorf("disabled transitions = %v, want 1", got)
	}
}

func TestService_IdempotentSet(t *testing.T) {
	f := newServiceFixture(t, RoleSystem, "1")
	before, err := os.Stat(f.persister.Path())
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}

	if err := f.svc.SetEnabled(context.Background(), true); err != nil {
		t.Fatalf("SetEnabled(true): %v", err)
	}

	after, err := os.Stat(f.persister.Path())
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if !os.SameFile(before, after) {
		t.Error("state file replaced by a no-op set")
	}
	if len(f.ctl.calls) != 0 {
		t.Errorf("controller calls = %v, want none", f.ctl.calls)
	}
}

func TestService_MalformedStateStartsDisabled(t *testing.T) {
	f := newServiceFixture(t, RoleSystem, "yes")

	enabled, err := f.svc.GetEnabled(context.Background())
	if err != nil {
		t.Fatalf("GetEnabled: %v", err)
	}
	if enabled {
		t.Error("enabled = true for malformed state, want false")
	}
}

func TestService_SideEffectFailuresSwallowed(t *testing.T) {
	f := newServiceFixture(t, RoleSystem, "1")
	f.ctl.setErr = errors.New("property service down")
	f.ctl.restartErr = errors.New("no such unit")

	if err := f.svc.SetEnabled(context.Background(), false); err != nil {
		t.Fatalf("SetEnabled(false) = %v, want nil", err)
	}
	if f.svc.store.Get() {
		t.Error("state not committed after side-effect failure")
	}
	// Restart is still attempted after a failed property write.
	if len(f.ctl.calls) != 2 {
		t.Errorf("controller calls = %v, want 2 attempts", f.ctl.calls)
	}
	if got := testutil.ToFloat64(f.metrics.SideEffectFailures.WithLabelValues("restart")); got != 1 {
		t.Errorf("restart failures = %v, want 1", got)
	}
}

func TestService_PersistFailureNotSurfaced(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()
	p := &fakePersister{saveErr: errors.New("read-only filesystem")}
	metrics, err := NewMetrics(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	svc := NewService(cfg, NewStore(p, metrics, nil), staticResolver{role: RoleSystem}, newMockController(), metrics, nil)

	if err := svc.SetEnabled(context.Background(), true); err != nil {
		t.Fatalf("SetEnabled = %v, want nil", err)
	}
	enabled, _ := svc.GetEnabled(context.Background())
	if !enabled {
		t.Error("enabled = false, want in-memory true")
	}
	if got := testutil.ToFloat64(metrics.PersistFailures); got != 1 {
		t.Errorf("persist failures = %v, want 1", got)
	}
}

func TestService_SideEffectSurvivesCancelledCaller(t *testing.T) {
	f := newServiceFixture(t, RoleSystem, "1")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := f.svc.SetEnabled(ctx, false); err != nil {
		t.Fatalf("SetEnabled: %v", err)
	}
	if f.ctl.ctxErr != nil {
		t.Errorf("side-effect context error = %v, want nil", f.ctl.ctxErr)
	}
}

func TestService_ResolverErrorDenies(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()
	svc := NewService(cfg, NewStore(&fakePersister{}, nil, nil),
		staticResolver{role: RoleSystem, err: errors.New("no peer")}, newMockController(), nil, nil)

	if err := svc.SetEnabled(context.Background(), true); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("SetEnabled error = %v, want ErrPermissionDenied", err)
	}
}

func TestService_ConcurrentConflictingSets(t *testing.T) {
	f := newServiceFixture(t, RoleSystem, "0")

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = f.svc.SetEnabled(context.Background(), true)
		}()
		go func() {
			defer wg.Done()
			_ = f.svc.SetEnabled(context.Background(), false)
		}()
	}
	wg.Wait()

	enabled, err := f.svc.GetEnabled(context.Background())
	if err != nil {
		t.Fatalf("GetEnabled: %v", err)
	}
	want := "0"
	if enabled {
		want = "1"
	}
	assertStateFile(t, f.persister.Path(), want)

	enables := testutil.ToFloat64(f.metrics.Transitions.WithLabelValues("enabled"))
	disables := testutil.ToFloat64(f.metrics.Transitions.WithLabelValues("disabled"))
	if len(f.ctl.restarts) != int(disables) {
		t.Errorf("restarts = %d, disable transitions = %v", len(f.ctl.restarts), disables)
	}
	// Starting disabled, transitions alternate: enables equal disables, or
	// exceed them by one when the final state is enabled.
	diff := enables - disables
	if (enabled && diff != 1) || (!enabled && diff != 0) {
		t.Errorf("enables = %v, disables = %v, final enabled = %v", enables, disables, enabled)
	}
}
