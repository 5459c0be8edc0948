package cmd

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/firefly-engineering/keypool/internal/config"
	"github.com/firefly-engineering/keypool/internal/control"
	kperrors "github.com/firefly-engineering/keypool/internal/errors"
	"github.com/firefly-engineering/keypool/internal/pool"
)

// startControl serves a control surface over p for the duration of the test.
func startControl(t *testing.T, p *pool.Pool) string {
	t.Helper()
	h := control.NewHandler(p, control.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	srv := httptest.NewServer(control.NewServeMux(h))
	t.Cleanup(srv.Close)
	return srv.URL
}

func executeCommand(args ...string) (string, string, error) {
	// Reset flag values before each test
	verbose = false
	jsonOutput = false
	configPath = config.DefaultConfigPath
	controlURL = ""
	pushFromFile = ""
	pushFromCommand = ""
	for _, name := range []string{"config", "control-url", "json"} {
		rootCmd.PersistentFlags().Lookup(name).Changed = false
	}

	cmd := rootCmd
	cmd.SetArgs(args)

	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)

	err := cmd.Execute()

	// Reset args for next test
	cmd.SetArgs(nil)
	cmd.SetOut(nil)
	cmd.SetErr(nil)

	return stdout.String(), stderr.String(), err
}

func TestRootCommand_Help(t *testing.T) {
	stdout, _, err := executeCommand("--help")
	if err != nil {
		t.Fatalf("Help command failed: %v", err)
	}

	for _, want := range []string{"keypool", "serve", "push-keys", "status", "dashboard"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("Help output should mention %q", want)
		}
	}
}

func TestServeCommand_Help(t *testing.T) {
	stdout, _, err := executeCommand("serve", "--help")
	if err != nil {
		t.Fatalf("Help command failed: %v", err)
	}

	for _, flag := range []string{"--proxy-listen", "--control-listen", "--upstream", "--attempt-timeout"} {
		if !strings.Contains(stdout, flag) {
			t.Errorf("serve help should mention %s", flag)
		}
	}
}

func TestPushKeys_Arguments(t *testing.T) {
	p := pool.New(nil)
	url := startControl(t, p)

	_, _, err := executeCommand("push-keys", "--control-url", url, "sk-one", "sk-two")
	if err != nil {
		t.Fatalf("push-keys failed: %v", err)
	}

	if got := strings.Join(p.Values(), ","); got != "sk-one,sk-two" {
		t.Errorf("pool = %s, want sk-one,sk-two", got)
	}
}

func TestPushKeys_FromFile(t *testing.T) {
	p := pool.New([]string{"sk-old"})
	url := startControl(t, p)

	path := filepath.Join(t.TempDir(), "keys.json")
	if err := os.WriteFile(path, []byte(`{"keys":["sk-a","sk-b","sk-c"]}`), 0600); err != nil {
		t.Fatal(err)
	}

	_, _, err := executeCommand("push-keys", "--control-url", url, "--from-file", path)
	if err != nil {
		t.Fatalf("push-keys failed: %v", err)
	}
	if p.Len() != 3 {
		t.Errorf("pool size = %d, want 3", p.Len())
	}
}

func TestPushKeys_NoSource(t *testing.T) {
	p := pool.New([]string{"sk-old"})
	url := startControl(t, p)

	_, _, err := executeCommand("push-keys", "--control-url", url)
	if err == nil {
		t.Fatal("expected an error without keys")
	}
	if code := kperrors.GetExitCode(err); code != kperrors.ExitGeneralError {
		t.Errorf("exit code = %d, want %d", code, kperrors.ExitGeneralError)
	}
	if got := strings.Join(p.Values(), ","); got != "sk-old" {
		t.Errorf("pool should be unchanged, got %s", got)
	}
}

func TestPushKeys_Unreachable(t *testing.T) {
	srv := httptest.NewServer(nil)
	url := srv.URL
	srv.Close()

	_, _, err := executeCommand("push-keys", "--control-url", url, "sk-1")
	if err == nil {
		t.Fatal("expected an error for an unreachable daemon")
	}
	if code := kperrors.GetExitCode(err); code != kperrors.ExitControlError {
		t.Errorf("exit code = %d, want %d", code, kperrors.ExitControlError)
	}
}

func TestStatus_JSON(t *testing.T) {
	p := pool.New([]string{"sk-1234567890abc"})
	url := startControl(t, p)

	stdout, _, err := executeCommand("status", "--json", "--control-url", url)
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}

	var st control.StatusResponse
	if err := json.Unmarshal([]byte(stdout), &st); err != nil {
		t.Fatalf("status output is not JSON: %v\n%s", err, stdout)
	}
	if !st.Running || st.Stats.Total != 1 {
		t.Errorf("unexpected status %+v", st)
	}
	if strings.Contains(stdout, "sk-1234567890abc") {
		t.Error("status output must not contain full keys")
	}
}

func TestStatus_Rendered(t *testing.T) {
	url := startControl(t, pool.New([]string{"sk-1234567890abc"}))

	stdout, _, err := executeCommand("status", "--control-url", url)
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if !strings.Contains(stdout, "sk-1234567...") {
		t.Errorf("rendered status should list redacted keys:\n%s", stdout)
	}
}

func TestHealth(t *testing.T) {
	url := startControl(t, pool.New(nil))

	stdout, _, err := executeCommand("health", "--control-url", url)
	if err != nil {
		t.Fatalf("health failed: %v", err)
	}
	if !strings.Contains(stdout, "Status: empty") {
		t.Errorf("unexpected health output:\n%s", stdout)
	}
}

func TestLoadConfig_ExplicitMissing(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.toml")

	_, _, err := executeCommand("status", "--config", missing)
	if err == nil {
		t.Fatal("expected an error for a missing explicit config")
	}
	if code := kperrors.GetExitCode(err); code != kperrors.ExitConfigError {
		t.Errorf("exit code = %d, want %d", code, kperrors.ExitConfigError)
	}
}

func TestApplyServeFlags(t *testing.T) {
	t.Cleanup(func() {
		for _, name := range []string{"upstream", "max-attempts"} {
			serveCmd.Flags().Lookup(name).Changed = false
		}
		serveUpstream = config.DefaultUpstreamURL
		serveMaxAttempts = config.DefaultMaxAttempts
	})

	if err := serveCmd.Flags().Set("upstream", "http://127.0.0.1:9999"); err != nil {
		t.Fatal(err)
	}
	if err := serveCmd.Flags().Set("max-attempts", "5"); err != nil {
		t.Fatal(err)
	}

	cfg := config.Default()
	cfg.StateDir = "/from/file"
	if err := applyServeFlags(serveCmd, cfg); err != nil {
		t.Fatal(err)
	}

	if cfg.UpstreamURL != "http://127.0.0.1:9999" {
		t.Errorf("UpstreamURL = %q", cfg.UpstreamURL)
	}
	if cfg.MaxAttempts != 5 {
		t.Errorf("MaxAttempts = %d", cfg.MaxAttempts)
	}
	if cfg.StateDir != "/from/file" {
		t.Errorf("unset flag must not override file value, got %q", cfg.StateDir)
	}
}

func TestApplyServeFlags_Invalid(t *testing.T) {
	t.Cleanup(func() {
		serveCmd.Flags().Lookup("max-attempts").Changed = false
		serveMaxAttempts = config.DefaultMaxAttempts
	})

	if err := serveCmd.Flags().Set("max-attempts", "0"); err != nil {
		t.Fatal(err)
	}
	err := applyServeFlags(serveCmd, config.Default())
	if code := kperrors.GetExitCode(err); code != kperrors.ExitConfigError {
		t.Errorf("exit code = %d, want %d", code, kperrors.ExitConfigError)
	}
}
