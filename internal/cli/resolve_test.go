package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/abczzz13/proxytrace"
)

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	root := NewRootCommand()
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)

	err := root.Execute()
	return stdout.String(), err
}

func TestResolve_JSON(t *testing.T) {
	out, err := runCommand(t,
		"resolve",
		"--remote-addr", "127.0.0.1:8080",
		"--xff", "203.0.113.7, 10.0.0.9",
		"--trust", "loopback,10.0.0.0/8",
		"--format", "json",
	)
	if err != nil {
		t.Fatalf("resolve error = %v", err)
	}

	var got proxytrace.Trace
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}

	want := proxytrace.Trace{Peer: "203.0.113.7", Proxy: "127.0.0.1", IntermediateProxies: []string{"10.0.0.9"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("trace mismatch (-want +got):\n%s", diff)
	}
}

func TestResolve_Text(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want []string
	}{
		{
			name: "direct connection",
			args: []string{"--remote-addr", "1.2.3.4:5000"},
			want: []string{"peer:                 1.2.3.4", "proxy:                -", "intermediate proxies: -"},
		},
		{
			name: "repeated header lines",
			args: []string{"--remote-addr", "1.2.3.4", "--xff", "2.2.2.2", "--xff", "3.3.3.3, 4.4.4.4"},
			want: []string{"peer:                 2.2.2.2", "proxy:                1.2.3.4", "intermediate proxies: 4.4.4.4, 3.3.3.3"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := runCommand(t, append([]string{"resolve"}, tt.args...)...)
			if err != nil {
				t.Fatalf("resolve error = %v", err)
			}

			for _, line := range tt.want {
				if !strings.Contains(out, line) {
					t.Fatalf("output missing %q:\n%s", line, out)
				}
			}
		})
	}
}

func TestResolve_ConfigTrust(t *testing.T) {
	path := filepath.Join(t.TempDir(), "proxytrace.yaml")
	if err := os.WriteFile(path, []byte("trust: [loopback]\n"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	out, err := runCommand(t,
		"resolve", "--config", path,
		"--remote-addr", "127.0.0.1:9000",
		"--xff", "198.51.100.1, 198.51.100.2",
		"--format", "json",
	)
	if err != nil {
		t.Fatalf("resolve error = %v", err)
	}

	var got proxytrace.Trace
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}

	// 198.51.100.2 is not trusted, so it is the peer and 198.51.100.1 is discarded.
	want := proxytrace.Trace{Peer: "198.51.100.2", Proxy: "127.0.0.1", IntermediateProxies: []string{}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("trace mismatch (-want +got):\n%s", diff)
	}
}

func TestResolve_Errors(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantIs   error
		wantText string
	}{
		{
			name:     "missing remote address flag",
			args:     []string{"resolve"},
			wantText: "remote-addr",
		},
		{
			name:     "unknown format",
			args:     []string{"resolve", "--remote-addr", "1.2.3.4", "--format", "xml"},
			wantText: "unknown format",
		},
		{
			name:   "invalid trust entry",
			args:   []string{"resolve", "--remote-addr", "1.2.3.4", "--trust", "10.0.0.0/40"},
			wantIs: proxytrace.ErrInvalidTrust,
		},
		{
			name:   "unparseable hop under address trust",
			args:   []string{"resolve", "--remote-addr", "127.0.0.1", "--xff", "1.1.1.1, bogus", "--trust", "loopback"},
			wantIs: proxytrace.ErrTrustEvaluation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runCommand(t, tt.args...)
			if err == nil {
				t.Fatal("resolve error = nil, want error")
			}
			if tt.wantIs != nil && !errors.Is(err, tt.wantIs) {
				t.Fatalf("resolve error = %v, want errors.Is %v", err, tt.wantIs)
			}
			if tt.wantText != "" && !strings.Contains(err.Error(), tt.wantText) {
				t.Fatalf("resolve error = %q, want text %q", err, tt.wantText)
			}
		})
	}
}
