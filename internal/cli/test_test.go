package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSchema = `
CREATE TABLE author (
    id INTEGER PRIMARY KEY,
    name TEXT NOT NULL
);
`

const passingScenario = `
name: authors
description: "Create and count authors"
schema: [schema.sql]
flow:
  - op: create
    table: author
    values: {name: Karel Capek}
  - op: count
    table: author
    expect: {count: 1}
`

const failingScenario = `
name: broken
description: "Expects a row that does not exist"
schema: [schema.sql]
flow:
  - op: get
    table: author
    id: 1
`

func scenarioDir(t *testing.T, scenarios map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "schema.sql"), []byte(testSchema), 0o644))
	for name, body := range scenarios {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	return dir
}

func runTestCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"test"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestTestCommand_Pass(t *testing.T) {
	dir := scenarioDir(t, map[string]string{"authors.yaml": passingScenario})

	out, err := runTestCommand(t, dir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ authors")
	assert.Contains(t, out, "1 passed, 0 failed")
}

func TestTestCommand_Failures(t *testing.T) {
	dir := scenarioDir(t, map[string]string{
		"authors.yaml": passingScenario,
		"broken.yaml":  failingScenario,
	})

	out, err := runTestCommand(t, dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ broken")
	assert.Contains(t, out, "unexpected error NOT_FOUND")
	assert.Contains(t, out, "1 passed, 1 failed")
}

func TestTestCommand_Filter(t *testing.T) {
	dir := scenarioDir(t, map[string]string{
		"authors.yaml": passingScenario,
		"broken.yaml":  failingScenario,
	})

	out, err := runTestCommand(t, dir, "--filter", "auth*")
	require.NoError(t, err)
	assert.NotContains(t, out, "broken")
}

func TestTestCommand_Golden(t *testing.T) {
	dir := scenarioDir(t, map[string]string{"authors.yaml": passingScenario})

	_, err := runTestCommand(t, dir, "--update")
	require.NoError(t, err)
	golden := filepath.Join(dir, "golden", "authors.golden")
	data, err := os.ReadFile(golden)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"scenario_name": "authors"`)

	_, err = runTestCommand(t, dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(golden, []byte("{}\n"), 0o644))
	out, err := runTestCommand(t, dir)
	require.Error(t, err)
	assert.Contains(t, out, "trace does not match golden file")
}

func TestTestCommand_JSON(t *testing.T) {
	dir := scenarioDir(t, map[string]string{"authors.yaml": passingScenario})

	out, err := runTestCommand(t, "--format", "json", dir)
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 1, resp.Data.Passed)
	assert.Equal(t, 1, resp.Data.Total)
}

func TestTestCommand_MissingDir(t *testing.T) {
	_, err := runTestCommand(t, filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTestCommand_Empty(t *testing.T) {
	out, err := runTestCommand(t, t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")
}
