package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const breachScenario = "../../scenario/testdata/breach_and_claim.yaml"

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestSimulate_Text(t *testing.T) {
	out, err := execute(t, "simulate", breachScenario)
	require.NoError(t, err)
	assert.Contains(t, out, "scenario: breach and claim after cooldown")
	assert.Contains(t, out, "locked")
	assert.NotContains(t, out, "did not match")
}

func TestSimulate_JSON(t *testing.T) {
	out, err := execute(t, "--format", "json", "simulate", breachScenario)
	require.NoError(t, err)

	var report struct {
		Steps []struct {
			Result string `json:"result"`
			Passed bool   `json:"passed"`
		} `json:"steps"`
		Final struct {
			Tripped bool `json:"tripped"`
		} `json:"final"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	require.Len(t, report.Steps, 6)
	assert.Equal(t, "locked", report.Steps[1].Result)
	assert.False(t, report.Final.Tripped)
}

func TestSimulate_ExpectationFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fail.yaml")
	doc := `
protected: [pool]
assets:
  - asset: eth
    min_liq_retained_bps: 7000
steps:
  - action: claim
    asset: eth
    recipient: alice
    expect: ok
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	out, err := execute(t, "simulate", path)
	require.Error(t, err)
	assert.Equal(t, exitFailure, exitCode(err))
	assert.Contains(t, out, "no_locked_funds (expected ok)")
}

func TestSimulate_CommandErrors(t *testing.T) {
	_, err := execute(t, "simulate", "does-not-exist.yaml")
	require.Error(t, err)
	assert.Equal(t, exitCommandError, exitCode(err))

	_, err = execute(t, "--format", "xml", "simulate", breachScenario)
	require.Error(t, err)
	assert.Equal(t, exitCommandError, exitCode(err))
	assert.Contains(t, err.Error(), "invalid format")
}

func TestServe_InvalidConfig(t *testing.T) {
	dir := t.TempDir()
	doc := `
assets:
  - asset: eth
    min_liq_retained_bps: 20000
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(doc), 0o644))

	_, err := execute(t, "serve", "-c", dir)
	require.Error(t, err)
	assert.Equal(t, exitCommandError, exitCode(err))
}

func TestExitCode_Plain(t *testing.T) {
	assert.Equal(t, exitFailure, exitCode(assert.AnError))
}
