package cli_test

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neuroplatform/simforms/internal/cli"
	"github.com/neuroplatform/simforms/internal/config"
	"github.com/neuroplatform/simforms/pkg/renderers/tui"
	"github.com/neuroplatform/simforms/pkg/testsupport"
)

func noEnv(string) (string, bool) { return "", false }

func writeSpec(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "simulation.json")
	require.NoError(t, os.WriteFile(path, testsupport.SimulationSpec(), 0o600))
	return path
}

func execute(t *testing.T, stdin string, args []string, opts ...cli.Option) (string, string, error) {
	t.Helper()
	opts = append([]cli.Option{cli.WithLookup(noEnv)}, opts...)
	tc := cli.NewRootCmd("test_simforms", opts...)
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	tc.SetArgs(args)
	tc.SetIn(strings.NewReader(stdin))
	tc.SetOut(stdout)
	tc.SetErr(stderr)
	err := tc.Execute()
	return stdout.String(), stderr.String(), err
}

func TestVersionCmd(t *testing.T) {
	stdout, stderr, err := execute(t, "", []string{"version"})
	require.NoError(t, err)
	assert.Regexp(t, `\d+\.\d+\.\d+`, stdout)
	assert.Empty(t, stderr)
}

func TestFormsCmd(t *testing.T) {
	stdout, _, err := execute(t, "", []string{"forms", "--source", writeSpec(t)})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "/generate/morphology-metrics")
	assert.Contains(t, lines[0], "Compute morphology metrics")
	assert.Contains(t, lines[1], "/generate/simulation-config")
	assert.True(t, strings.HasPrefix(lines[1], "POST"))
}

func TestFormsCmd_RequiresSourceOrAPI(t *testing.T) {
	_, _, err := execute(t, "", []string{"forms"})
	require.ErrorIs(t, err, config.ErrRequired)
	assert.Contains(t, err.Error(), config.EnvAPIURL)
}

func TestRenderCmd(t *testing.T) {
	spec := writeSpec(t)

	stdout, _, err := execute(t, "", []string{"render", "--source", spec, "--path", "/generate/morphology-metrics", "--renderer", "json"})
	require.NoError(t, err)
	page := testsupport.DecodeJSON(t, []byte(stdout)).(map[string]any)
	assert.Equal(t, "/generate/morphology-metrics", page["path"])

	out := filepath.Join(t.TempDir(), "page.html")
	_, _, err = execute(t, "", []string{"render", "--source", spec, "--path", "generate/simulation-config", "--variant", "dark", "-o", out})
	require.NoError(t, err)
	html, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(html), `data-theme="dark"`)
	assert.Contains(t, string(html), `name="simulation_length"`)

	_, _, err = execute(t, "", []string{"render", "--source", spec, "--path", "/nope"})
	require.Error(t, err)
}

func TestFillCmd(t *testing.T) {
	driver := &scriptedDriver{inputs: []string{"", "m-1"}, multi: [][]int{{0, 2}}}
	stdout, _, err := execute(t, "",
		[]string{"fill", "--source", writeSpec(t), "--path", "/generate/morphology-metrics"},
		cli.WithPromptDriver(driver),
	)
	require.NoError(t, err)
	require.JSONEq(t, `{"type":"MorphologyMetricsForm","morphology_id":"m-1","metrics":["length","surface"]}`, stdout)
	assert.Contains(t, strings.Join(driver.info, "\n"), "Invalid morphology_id")
}

func TestValidateCmd(t *testing.T) {
	spec := writeSpec(t)
	args := []string{"validate", "-", "--source", spec, "--path", "/generate/morphology-metrics"}

	stdout, _, err := execute(t, `{"type":"MorphologyMetricsForm","morphology_id":"m-1"}`, args)
	require.NoError(t, err)
	assert.Equal(t, "ok\n", stdout)

	stdout, _, err = execute(t, `{"type":"MorphologyMetricsForm","metrics":["colour"]}`, args)
	require.ErrorIs(t, err, cli.ErrInvalidPayload)
	assert.NotEmpty(t, stdout)

	_, _, err = execute(t, `[`, args)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode payload")
}

func TestSchemaCmd(t *testing.T) {
	stdout, _, err := execute(t, "", []string{"schema"})
	require.NoError(t, err)
	assert.Contains(t, stdout, `"api_url"`)
	assert.Contains(t, stdout, `"session_refresh"`)
}

func TestRootCmd_RejectsLogFormat(t *testing.T) {
	_, _, err := execute(t, "", []string{"version", "--log-format", "xml"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed creating log handler")
}

type scriptedDriver struct {
	inputs []string
	multi  [][]int
	info   []string
}

func (d *scriptedDriver) Input(_ context.Context, cfg tui.InputConfig) (string, error) {
	if len(d.inputs) == 0 {
		return "", fmt.Errorf("no input scripted for %q", cfg.Message)
	}
	next := d.inputs[0]
	d.inputs = d.inputs[1:]
	return next, nil
}

func (d *scriptedDriver) Confirm(_ context.Context, cfg tui.ConfirmConfig) (bool, error) {
	return false, fmt.Errorf("no confirm scripted for %q", cfg.Message)
}

func (d *scriptedDriver) Select(_ context.Context, cfg tui.SelectConfig) (int, error) {
	return -1, fmt.Errorf("no select scripted for %q", cfg.Message)
}

func (d *scriptedDriver) MultiSelect(_ context.Context, cfg tui.SelectConfig) ([]int, error) {
	if len(d.multi) == 0 {
		return nil, fmt.Errorf("no multiselect scripted for %q", cfg.Message)
	}
	next := d.multi[0]
	d.multi = d.multi[1:]
	return next, nil
}

func (d *scriptedDriver) Info(_ context.Context, msg string) error {
	d.info = append(d.info, msg)
	return nil
}
