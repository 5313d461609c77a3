package integration

import (
	"io"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"testing"
	"time"
)

func buildBinary(t *testing.T) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("standalone binary copy/exec test is unix-focused")
	}
	goModPathBytes, err := exec.Command("go", "env", "GOMOD").Output()
	if err != nil {
		t.Fatalf("go env GOMOD: %v", err)
	}
	goModPath := strings.TrimSpace(string(goModPathBytes))
	if goModPath == "" {
		t.Fatalf("go env GOMOD returned empty")
	}
	repoRoot := filepath.Dir(goModPath)

	binaryPath := filepath.Join(t.TempDir(), "jarl")
	build := exec.Command("go", "build", "-o", binaryPath, "./cmd/jarl")
	build.Dir = repoRoot
	build.Env = os.Environ()
	if out, err := build.CombinedOutput(); err != nil {
		t.Fatalf("go build: %v\n%s", err, string(out))
	}
	return binaryPath
}

func TestStandaloneBinaryVersionAndHelpWorkOutsideRepo(t *testing.T) {
	binaryPath := buildBinary(t)

	outside := t.TempDir()
	copiedBinary := filepath.Join(outside, "jarl")

	// Use a direct file copy to avoid relying on platform-specific tools.
	data, err := os.ReadFile(binaryPath)
	if err != nil {
		t.Fatalf("read built binary: %v", err)
	}
	if err := os.WriteFile(copiedBinary, data, 0o755); err != nil {
		t.Fatalf("write copied binary: %v", err)
	}

	version := exec.Command(copiedBinary, "version")
	version.Dir = outside
	if out, err := version.CombinedOutput(); err != nil {
		t.Fatalf("version failed: %v\n%s", err, string(out))
	}

	help := exec.Command(copiedBinary, "--help")
	help.Dir = outside
	if out, err := help.CombinedOutput(); err != nil {
		t.Fatalf("--help failed: %v\n%s", err, string(out))
	}
}

func TestStandaloneBinaryRejectsInvalidConfig(t *testing.T) {
	binaryPath := buildBinary(t)

	out, err := exec.Command(binaryPath, "--service", "shopify", "--requests", "0", "--period", "10", "--port", "7000").CombinedOutput()
	exitErr, ok := err.(*exec.ExitError)
	if !ok {
		t.Fatalf("expected exit error, got %v\n%s", err, string(out))
	}
	if exitErr.ExitCode() == 0 {
		t.Fatalf("expected non-zero exit code\n%s", string(out))
	}
	if !strings.Contains(string(out), "CONFIG_INVALID") {
		t.Fatalf("expected CONFIG_INVALID in output:\n%s", string(out))
	}
}

func TestStandaloneBinaryServesDelays(t *testing.T) {
	binaryPath := buildBinary(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		if isPermissionError(err) {
			t.Skipf("skipping: %v", err)
		}
		t.Fatalf("reserve port: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	_ = ln.Close()
	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(port))

	proc := exec.Command(binaryPath,
		"--service", "shopify",
		"--requests", "2",
		"--period", "10",
		"--ip", "127.0.0.1",
		"--port", strconv.Itoa(port),
		"--log-level", "error")
	if err := proc.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(func() {
		_ = proc.Process.Kill()
		_ = proc.Wait()
	})

	ask := func() (string, error) {
		conn, err := net.Dial("tcp", addr)
		if err != nil {
			return "", err
		}
		defer conn.Close()
		body, err := io.ReadAll(conn)
		return string(body), err
	}

	var first string
	deadline := time.Now().Add(10 * time.Second)
	for {
		first, err = ask()
		if err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("server never accepted: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	second, err := ask()
	if err != nil {
		t.Fatalf("second request: %v", err)
	}
	third, err := ask()
	if err != nil {
		t.Fatalf("third request: %v", err)
	}

	if first != "0.000" || second != "0.000" {
		t.Fatalf("expected two free slots, got %q and %q", first, second)
	}
	seconds, err := strconv.ParseFloat(third, 64)
	if err != nil {
		t.Fatalf("parse third delay %q: %v", third, err)
	}
	if seconds <= 5 || seconds > 15 {
		t.Fatalf("third delay %q outside (5, 15]", third)
	}
}
