package transport

import (
	"strings"
	"testing"
	"time"
)

func TestShellQuote(t *testing.T) {
	got := shellQuote("echo 'hello world'")
	want := `'echo '"'"'hello world'"'"''`
	if got != want {
		t.Fatalf("unexpected quote output\nwant: %s\ngot:  %s", want, got)
	}
}

func TestBuildControlPathDeterministic(t *testing.T) {
	opts := SSHOptions{
		Target:       "login-a",
		ConfigPath:   "/tmp/cfg",
		IdentityFile: "/tmp/key",
		Port:         22,
	}
	path := buildControlPath(opts)
	if path == "" {
		t.Fatalf("expected non-empty control path")
	}
	if path != buildControlPath(opts) {
		t.Fatalf("expected deterministic control path")
	}
}

func TestBuildSSHArgsIncludesResilienceOptions(t *testing.T) {
	tr := NewSSHTransport(SSHOptions{
		Target:         "user@login",
		ConfigPath:     "/tmp/ssh_config",
		IdentityFile:   "/tmp/id",
		Port:           2222,
		ConnectTimeout: 1500 * time.Millisecond,
	})
	args := tr.buildSSHArgs("sinfo -h")
	joined := strings.Join(args, " ")

	for _, token := range []string{
		"ConnectTimeout=2",
		"ConnectionAttempts=2",
		"ServerAliveInterval=15",
		"ControlMaster=auto",
		"ControlPath=",
		"-F /tmp/ssh_config",
		"-i /tmp/id",
		"-p 2222",
		"user@login",
		"bash -lc 'sinfo -h'",
	} {
		if !strings.Contains(joined, token) {
			t.Fatalf("expected token %q in args: %s", token, joined)
		}
	}
}
