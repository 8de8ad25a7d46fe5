package endpoint

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"
)

type fakeSocketInfo struct{}

func (fakeSocketInfo) Name() string       { return "studio.sock" }
func (fakeSocketInfo) Size() int64        { return 0 }
func (fakeSocketInfo) Mode() fs.FileMode  { return os.ModeSocket | 0o600 }
func (fakeSocketInfo) ModTime() time.Time { return time.Time{} }
func (fakeSocketInfo) IsDir() bool        { return false }
func (fakeSocketInfo) Sys() any           { return nil }

func TestResolveUnixScheme(t *testing.T) {
	t.Setenv("STUDIO_HOST", "")

	ep, err := Resolve("unix:///tmp/studio-test/studio.sock")
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if ep.Scheme != "unix" || ep.Address != "/tmp/studio-test/studio.sock" {
		t.Fatalf("unexpected endpoint: %+v", ep)
	}
	if ep.BaseURL != "http://unix" {
		t.Fatalf("unexpected base URL %q", ep.BaseURL)
	}
}

func TestResolveAbsolutePathIsUnixSocket(t *testing.T) {
	t.Setenv("STUDIO_HOST", "")

	ep, err := Resolve("/var/run/studio/studio.sock")
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if ep.Scheme != "unix" || ep.Address != "/var/run/studio/studio.sock" {
		t.Fatalf("unexpected endpoint: %+v", ep)
	}
}

func TestResolveHTTPSchemes(t *testing.T) {
	t.Setenv("STUDIO_HOST", "")

	ep, err := Resolve("http://127.0.0.1:8080")
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if ep.Scheme != "http" || ep.BaseURL != "http://127.0.0.1:8080" {
		t.Fatalf("unexpected endpoint: %+v", ep)
	}

	ep, err = Resolve("https://studio.internal:8443")
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if ep.Scheme != "https" || ep.BaseURL != "https://studio.internal:8443" {
		t.Fatalf("unexpected endpoint: %+v", ep)
	}
}

func TestResolveRejectsUnsupportedValues(t *testing.T) {
	t.Setenv("STUDIO_HOST", "")

	for _, raw := range []string{"tcp://1.2.3.4:80", "relative/path.sock", "unix://"} {
		if _, err := Resolve(raw); err == nil {
			t.Fatalf("Resolve(%q) succeeded, expected error", raw)
		}
	}
}

func TestResolveFallsBackToEnv(t *testing.T) {
	t.Setenv("STUDIO_HOST", "unix:///tmp/env-studio.sock")

	ep, err := Resolve("")
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if ep.Scheme != "unix" || ep.Address != "/tmp/env-studio.sock" {
		t.Fatalf("unexpected endpoint: %+v", ep)
	}
}

func TestResolveListenDefaultsToRuntimeSocket(t *testing.T) {
	t.Setenv("STUDIO_HOST", "")
	runtimeDir := t.TempDir()
	t.Setenv("XDG_RUNTIME_DIR", runtimeDir)

	ep, err := ResolveListen("")
	if err != nil {
		t.Fatalf("ResolveListen returned error: %v", err)
	}
	if ep.Scheme != "unix" {
		t.Fatalf("expected unix default, got %+v", ep)
	}
	if want := filepath.Join(runtimeDir, "studio", "studio.sock"); ep.Address != want {
		t.Fatalf("expected socket %q, got %q", want, ep.Address)
	}
}

func TestClientDefaultPrefersSystemSocketForRoot(t *testing.T) {
	t.Setenv("STUDIO_HOST", "")

	origStat, origGeteuid := endpointStat, endpointGeteuid
	t.Cleanup(func() {
		endpointStat, endpointGeteuid = origStat, origGeteuid
	})

	endpointGeteuid = func() int { return 0 }
	endpointStat = func(string) (os.FileInfo, error) {
		return fakeSocketInfo{}, nil
	}

	ep, err := Resolve("")
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if ep.Address != DefaultSystemSocketPath {
		t.Fatalf("expected system socket for root, got %+v", ep)
	}
}
