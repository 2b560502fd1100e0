package args

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/markis/omnom/internal/config"
)

func withStdin(t *testing.T, piped bool) {
	t.Helper()
	orig := stdinIsPiped
	stdinIsPiped = func() bool { return piped }
	t.Cleanup(func() { stdinIsPiped = orig })
}

func TestParseArgs(t *testing.T) {
	withStdin(t, false)

	tests := []struct {
		name string
		argv []string
		want Arguments
	}{
		{
			name: "tag",
			argv: []string{"tag", "--literal", "GET ", "access.log"},
			want: Arguments{Command: CommandTag, Source: "access.log", Literal: "GET "},
		},
		{
			name: "events with globals",
			argv: []string{"--plain", "--log-level", "debug", "events", "--chunk-size", "64", "https://example.com/stream"},
			want: Arguments{
				Command:      CommandEvents,
				Source:       "https://example.com/stream",
				ChunkSize:    64,
				LogLevel:     "debug",
				UsePlainText: true,
			},
		},
		{
			name: "chain",
			argv: []string{"chain", "--fields", `key=:,value=\n`, "--config", "omnom.yaml", "-"},
			want: Arguments{
				Command:    CommandChain,
				Source:     "-",
				Fields:     []string{"key=:", `value=\n`},
				ConfigPath: "omnom.yaml",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseArgs(tt.argv)
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ParseArgs() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseArgsStdinSource(t *testing.T) {
	withStdin(t, true)

	got, err := ParseArgs([]string{"events"})
	if err != nil {
		t.Fatal(err)
	}
	if got.Source != "-" {
		t.Errorf("Source = %q, want stdin", got.Source)
	}
}

func TestParseArgsErrors(t *testing.T) {
	withStdin(t, false)

	tests := []struct {
		name string
		argv []string
	}{
		{"no command", nil},
		{"no source", []string{"events"}},
		{"missing literal", []string{"tag", "x.txt"}},
		{"missing fields", []string{"chain", "x.txt"}},
		{"too many sources", []string{"events", "a", "b"}},
		{"negative chunk size", []string{"events", "--chunk-size", "-1", "a"}},
		{"unknown command", []string{"frobnicate"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseArgs(tt.argv); err == nil {
				t.Errorf("ParseArgs(%q) should fail", tt.argv)
			}
		})
	}
}

func TestResolve(t *testing.T) {
	cfg := config.NewDefaultConfig()
	cfg.Render.Format = "plain"

	a := Arguments{Command: CommandEvents, Source: "-", LogLevel: "debug"}
	a.Resolve(cfg)

	want := Arguments{
		Command:      CommandEvents,
		Source:       "-",
		ChunkSize:    4096,
		LogLevel:     "debug",
		LogFormat:    "text",
		UsePlainText: true,
	}
	if diff := cmp.Diff(want, a); diff != "" {
		t.Errorf("Resolve() mismatch (-want +got):\n%s", diff)
	}
}
