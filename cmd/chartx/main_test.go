package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const doorChart = `
name: door
states:
  - id: closed
    transitions:
      - {event: open, target: opened}
  - id: opened
    transitions:
      - {event: close, target: closed}
      - {event: lock, cond: "_event.data.key == 'k1'", target: locked}
  - id: locked
    type: final
`

func writeChart(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chart.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func runCLI(t *testing.T, stdin string, args ...string) (int, string, string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code := run(args, strings.NewReader(stdin), &out, &errOut)
	return code, out.String(), errOut.String()
}

func TestRunCommand(t *testing.T) {
	chart := writeChart(t, doorChart)

	code, out, errOut := runCLI(t, "", "run", chart, "open", "close", "open")
	require.Equal(t, 0, code, errOut)
	assert.Equal(t, []string{
		"open -> opened",
		"close -> closed",
		"open -> opened",
	}, strings.Split(strings.TrimSpace(out), "\n")[:3])
	assert.Contains(t, out, "running: opened")
}

func TestRunCommandEventData(t *testing.T) {
	chart := writeChart(t, doorChart)

	code, out, errOut := runCLI(t, "", "run", "--output", "json", chart, "open", "lock={key: k1}")
	require.Equal(t, 0, code, errOut)

	var status struct {
		Active []string `json:"active"`
		Final  bool     `json:"final"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &status))
	assert.True(t, status.Final)
	assert.Equal(t, []string{"locked"}, status.Active)
}

func TestRunCommandStdin(t *testing.T) {
	chart := writeChart(t, doorChart)

	code, out, errOut := runCLI(t, "open\n# comment\n\nclose\n", "run", chart, "-")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "close -> closed")
}

func TestRunCommandResumesSnapshot(t *testing.T) {
	chart := writeChart(t, doorChart)
	dir := t.TempDir()

	code, _, errOut := runCLI(t, "", "run", "--snapshot", dir, "--session", "front", chart, "open")
	require.Equal(t, 0, code, errOut)
	assert.FileExists(t, filepath.Join(dir, "front.json"))

	code, out, errOut := runCLI(t, "", "run", "--snapshot", dir, "--session", "front", chart)
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "session front running: opened")
}

func TestValidateCommand(t *testing.T) {
	good := writeChart(t, doorChart)
	bad := writeChart(t, "states:\n  - id: a\n    transitions:\n      - {event: x, target: nowhere}\n")

	code, out, _ := runCLI(t, "", "validate", good)
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "ok ")
	assert.Contains(t, out, "(door, version ")

	code, out, errOut := runCLI(t, "", "validate", good, bad)
	assert.Equal(t, 1, code)
	assert.Contains(t, out, "FAIL "+bad+": UNKNOWN_TARGET")
	assert.Contains(t, errOut, "1 of 2 charts failed")
}

func TestDotCommand(t *testing.T) {
	chart := writeChart(t, doorChart)

	code, out, errOut := runCLI(t, "", "dot", "--active", "opened", chart)
	require.Equal(t, 0, code, errOut)
	assert.True(t, strings.HasPrefix(out, `digraph "door"`))
	assert.Contains(t, out, "lightgreen")

	code, out, errOut = runCLI(t, "", "dot", "--json", chart)
	require.Equal(t, 0, code, errOut)
	assert.True(t, json.Valid([]byte(out)))
}

func TestUsageErrors(t *testing.T) {
	code, _, _ := runCLI(t, "")
	assert.NotEqual(t, 0, code)

	code, _, _ = runCLI(t, "", "run", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.NotEqual(t, 0, code)

	code, out, _ := runCLI(t, "", "--help")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "validate")
}

func TestParseEvent(t *testing.T) {
	evt, err := parseEvent("go")
	require.NoError(t, err)
	assert.Equal(t, "go", evt.Name)
	assert.Nil(t, evt.Data)

	evt, err = parseEvent("set=42")
	require.NoError(t, err)
	assert.Equal(t, 42, evt.Data)

	_, err = parseEvent("=1")
	assert.Error(t, err)
	_, err = parseEvent("bad={")
	assert.Error(t, err)
}
