package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadScript_ValidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.yaml")
	content := `
name: test_script
description: "Script for validation"
pseudonyms: [fox, owl]
setup:
  - register: stream
    name: s1
steps:
  - op: start_run
    args:
      experimenter: "tester"
  - op: log
    args: { stream: s1 }
    expect_error: NO_ACTIVE_SESSION
assertions:
  - type: trace_count
    op: start_run
    count: 1
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	script, err := LoadScript(path)
	require.NoError(t, err)

	assert.Equal(t, "test_script", script.Name)
	assert.Equal(t, "Script for validation", script.Description)
	assert.Equal(t, []string{"fox", "owl"}, script.Pseudonyms)
	require.Len(t, script.Setup, 1)
	assert.Equal(t, "stream", script.Setup[0].Register)
	require.Len(t, script.Steps, 2)
	assert.Equal(t, OpStartRun, script.Steps[0].Op)
	assert.Equal(t, "tester", script.Steps[0].Args["experimenter"])
	assert.Equal(t, "NO_ACTIVE_SESSION", script.Steps[1].ExpectError)
	assert.Len(t, script.Assertions, 1)
}

func TestLoadScript_MissingFile(t *testing.T) {
	_, err := LoadScript(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read script file")
}

func TestParseScript_UnknownField(t *testing.T) {
	_, err := ParseScript([]byte(`
name: typo
steps:
  - op: start_run
assertion:
  - type: trace_count
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestParseScript_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "missing name",
			yaml:    "steps:\n  - op: start_run\n",
			wantErr: "name is required",
		},
		{
			name:    "no steps",
			yaml:    "name: empty\n",
			wantErr: "steps list is required",
		},
		{
			name:    "unknown op",
			yaml:    "name: x\nsteps:\n  - op: fly\n",
			wantErr: `unknown op "fly"`,
		},
		{
			name:    "missing op",
			yaml:    "name: x\nsteps:\n  - args: {a: 1}\n",
			wantErr: "steps[0]: op is required",
		},
		{
			name:    "bad setup kind",
			yaml:    "name: x\nsetup:\n  - register: table\n    name: t\nsteps:\n  - op: commit\n",
			wantErr: "register must be stream, session, blob or user",
		},
		{
			name:    "setup without name",
			yaml:    "name: x\nsetup:\n  - register: stream\nsteps:\n  - op: commit\n",
			wantErr: "setup[0]: name is required",
		},
		{
			name:    "trace_count without op",
			yaml:    "name: x\nsteps:\n  - op: commit\nassertions:\n  - type: trace_count\n",
			wantErr: "op is required for trace_count",
		},
		{
			name:    "trace_order without ops",
			yaml:    "name: x\nsteps:\n  - op: commit\nassertions:\n  - type: trace_order\n",
			wantErr: "ops list is required",
		},
		{
			name:    "final_state without expect",
			yaml:    "name: x\nsteps:\n  - op: commit\nassertions:\n  - type: final_state\n    table: runs\n",
			wantErr: "expect is required",
		},
		{
			name:    "row_count without table",
			yaml:    "name: x\nsteps:\n  - op: commit\nassertions:\n  - type: row_count\n",
			wantErr: "table is required for row_count",
		},
		{
			name:    "unknown assertion",
			yaml:    "name: x\nsteps:\n  - op: commit\nassertions:\n  - type: vibes\n",
			wantErr: `unknown assertion type "vibes"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScript([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseScript_AnonymousUserSetup(t *testing.T) {
	script, err := ParseScript([]byte("name: x\nsetup:\n  - register: user\nsteps:\n  - op: commit\n"))
	require.NoError(t, err)
	assert.Empty(t, script.Setup[0].Name)
}
