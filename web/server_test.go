package web

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"subsv/config"
	"subsv/gateway"
	"subsv/kafka"
	"subsv/mqtt"
	"subsv/valkey"
)

// testManagers is a minimal Managers implementation for exercising the
// dashboard and API routes without a live gateway.
type testManagers struct {
	cfg        *config.Config
	configPath string
	breakers   map[string]gateway.BreakerSnapshot
	mqttMgr    *mqtt.Manager
	kafkaMgr   *kafka.Manager
	valkeyMgr  *valkey.Manager
}

func (m *testManagers) GetConfig() *config.Config     { return m.cfg }
func (m *testManagers) GetConfigPath() string         { return m.configPath }
func (m *testManagers) GetMQTTMgr() *mqtt.Manager     { return m.mqttMgr }
func (m *testManagers) GetKafkaMgr() *kafka.Manager   { return m.kafkaMgr }
func (m *testManagers) GetValkeyMgr() *valkey.Manager { return m.valkeyMgr }

func (m *testManagers) BreakerNames() []string {
	names := make([]string, 0, len(m.breakers))
	for name := range m.breakers {
		names = append(names, name)
	}
	return names
}

func (m *testManagers) ProtectionNames() []string { return nil }

func (m *testManagers) BreakerSnapshots() []gateway.BreakerSnapshot {
	out := make([]gateway.BreakerSnapshot, 0, len(m.breakers))
	for _, snap := range m.breakers {
		out = append(out, snap)
	}
	return out
}

func (m *testManagers) ProtectionSnapshots() []gateway.ProtectionSnapshot { return nil }

func (m *testManagers) FindBreakerSnapshot(name string) (gateway.BreakerSnapshot, error) {
	snap, ok := m.breakers[name]
	if !ok {
		return gateway.BreakerSnapshot{}, errNotFound(name)
	}
	return snap, nil
}

func (m *testManagers) FindProtectionSnapshot(name string) (gateway.ProtectionSnapshot, error) {
	return gateway.ProtectionSnapshot{}, errNotFound(name)
}

type notFoundError string

func (e notFoundError) Error() string { return "not found: " + string(e) }

func errNotFound(name string) error { return notFoundError(name) }

func testWebConfig(mustChange bool) (*config.WebConfig, *testManagers) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("admin"), bcrypt.DefaultCost)
	cfg := &config.WebConfig{
		Enabled: true,
		Host:    "127.0.0.1",
		API:     config.WebAPIConfig{Enabled: true},
		UI: config.WebUIConfig{
			Enabled:       true,
			SessionSecret: "dGVzdHNlY3JldHRlc3RzZWNyZXR0ZXN0c2VjcmV0dGVzdA==",
			Users: []config.WebUser{{
				Username:           "admin",
				PasswordHash:       string(hash),
				Role:               config.RoleAdmin,
				MustChangePassword: mustChange,
			}},
		},
	}

	fullCfg := &config.Config{Web: *cfg}
	mgrs := &testManagers{
		cfg:        fullCfg,
		configPath: "/tmp/test.yaml",
		breakers: map[string]gateway.BreakerSnapshot{
			"CB1": {Name: "CB1", State: "closed", CurrentA: 42.0},
		},
		mqttMgr:   mqtt.NewManager(),
		kafkaMgr:  kafka.NewManager(),
		valkeyMgr: valkey.NewManager(),
	}
	return cfg, mgrs
}

func TestUnsecuredDeadline(t *testing.T) {
	cfg, mgrs := testWebConfig(false)
	cfg.Port = 19876

	s := NewServer(cfg, mgrs)
	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer s.Stop()

	if !s.IsRunning() {
		t.Fatal("expected server to be running")
	}

	expired := make(chan bool, 1)
	s.SetUnsecuredDeadline(200*time.Millisecond, func() { expired <- true })

	select {
	case <-expired:
	case <-time.After(2 * time.Second):
		t.Fatal("deadline timer did not fire within 2s")
	}

	if s.IsRunning() {
		t.Error("expected server to be stopped after deadline")
	}
}

func TestUnsecuredDeadlineClear(t *testing.T) {
	cfg, mgrs := testWebConfig(false)
	cfg.Port = 19877

	s := NewServer(cfg, mgrs)
	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer s.Stop()

	s.SetUnsecuredDeadline(200*time.Millisecond, func() {
		t.Error("deadline should not fire after clear")
	})
	s.ClearUnsecuredDeadline()

	time.Sleep(500 * time.Millisecond)

	if !s.IsRunning() {
		t.Error("expected server to still be running after cleared deadline")
	}
}

func TestLoginFlowRedirectsToChangePassword(t *testing.T) {
	cfg, mgrs := testWebConfig(true)

	s := NewServer(cfg, mgrs)
	server := httptest.NewServer(s.router)
	defer server.Close()

	client := server.Client()
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	}

	resp, err := client.Get(server.URL + "/")
	if err != nil {
		t.Fatalf("GET / failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != "/login" {
		t.Errorf("GET / = %d %s, want 303 /login", resp.StatusCode, resp.Header.Get("Location"))
	}

	form := url.Values{"username": {"admin"}, "password": {"admin"}}
	resp, err = client.Post(server.URL+"/login", "application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
	if err != nil {
		t.Fatalf("POST /login failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != "/change-password" {
		t.Fatalf("POST /login = %d %s, want 303 /change-password", resp.StatusCode, resp.Header.Get("Location"))
	}

	cookies := resp.Cookies()
	if len(cookies) == 0 {
		t.Fatal("no cookies set after login")
	}

	req, _ := http.NewRequest("GET", server.URL+"/change-password", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	resp, err = client.Do(req)
	if err != nil {
		t.Fatalf("GET /change-password failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("GET /change-password = %d, want 200", resp.StatusCode)
	}
	if !strings.Contains(string(body), "change the default password") {
		t.Error("change-password page missing expected text")
	}

	req, _ = http.NewRequest("GET", server.URL+"/", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	resp, err = client.Do(req)
	if err != nil {
		t.Fatalf("GET / (with MustChangePassword) failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != "/change-password" {
		t.Errorf("GET / with MustChangePassword = %d %s, want 303 /change-password", resp.StatusCode, resp.Header.Get("Location"))
	}
}

func TestLoginFlowSucceedsWithoutMustChangePassword(t *testing.T) {
	cfg, mgrs := testWebConfig(false)

	s := NewServer(cfg, mgrs)
	server := httptest.NewServer(s.router)
	defer server.Close()

	client := server.Client()
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	}

	form := url.Values{"username": {"admin"}, "password": {"admin"}}
	resp, err := client.Post(server.URL+"/login", "application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
	if err != nil {
		t.Fatalf("POST /login failed: %v", err)
	}
	resp.Body.Close()
	if resp.Header.Get("Location") != "/" {
		t.Fatalf("POST /login Location = %s, want /", resp.Header.Get("Location"))
	}

	cookies := resp.Cookies()
	req, _ := http.NewRequest("GET", server.URL+"/", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	resp, err = client.Do(req)
	if err != nil {
		t.Fatalf("GET / failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("GET / = %d, want 200", resp.StatusCode)
	}
	if !strings.Contains(string(body), "CB1") {
		t.Error("dashboard page missing breaker CB1")
	}
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	cfg, mgrs := testWebConfig(false)

	s := NewServer(cfg, mgrs)
	server := httptest.NewServer(s.router)
	defer server.Close()

	form := url.Values{"username": {"admin"}, "password": {"wrong"}}
	resp, err := server.Client().Post(server.URL+"/login", "application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
	if err != nil {
		t.Fatalf("POST /login failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("POST /login with wrong password = %d, want 200 (re-render)", resp.StatusCode)
	}
	if !strings.Contains(string(body), "Invalid username or password") {
		t.Error("login page missing error message")
	}
}

func TestAPIStatusAndBreaker(t *testing.T) {
	cfg, mgrs := testWebConfig(false)

	s := NewServer(cfg, mgrs)
	server := httptest.NewServer(s.router)
	defer server.Close()

	resp, err := http.Get(server.URL + "/api/status")
	if err != nil {
		t.Fatalf("GET /api/status failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /api/status = %d, want 200", resp.StatusCode)
	}
	var status statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("decode /api/status: %v", err)
	}
	if len(status.Breakers) != 1 {
		t.Errorf("status.Breakers = %v, want 1 entry", status.Breakers)
	}

	resp, err = http.Get(server.URL + "/api/breaker/CB1")
	if err != nil {
		t.Fatalf("GET /api/breaker/CB1 failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("GET /api/breaker/CB1 = %d, want 200", resp.StatusCode)
	}

	resp, err = http.Get(server.URL + "/api/breaker/nope")
	if err != nil {
		t.Fatalf("GET /api/breaker/nope failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("GET /api/breaker/nope = %d, want 404", resp.StatusCode)
	}
}
