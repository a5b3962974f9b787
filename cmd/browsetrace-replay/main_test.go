package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixture = `<html><body><button id="a">A</button><input id="name"></body></html>`

const twoEvents = `[ {"type":"click","delay":0,"target":"#a","pageX":1,"pageY":2},
{"type":"change","delay":5,"target":"#name","value":"hi"},
{"type":"click","delay":1,"target":"#gone"} ]`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCmd("test")
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestReplayCommand(t *testing.T) {
	html := writeFile(t, "page.html", fixture)
	log := writeFile(t, "log.json", twoEvents)

	out, err := run(t, "replay", log, "--html", html, "--speed", "0.5", "--log-level", "error")
	require.NoError(t, err)
	assert.Equal(t, "click #a\nchange #name\nclick #gone\n", out)
}

func TestReplayCommandErrors(t *testing.T) {
	html := writeFile(t, "page.html", fixture)

	_, err := run(t, "replay", writeFile(t, "bad.json", "[{"), "--html", html)
	assert.Error(t, err)

	_, err = run(t, "replay", filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	_, err = run(t, "replay", writeFile(t, "log.json", twoEvents), "--speed", "0")
	assert.Error(t, err)

	_, err = run(t, "replay")
	assert.Error(t, err, "the log argument is required")

	_, err = run(t, "--log-level", "loud", "replay", writeFile(t, "log.json", "[ ]"))
	assert.Error(t, err)
}

func TestReplayEmptyLog(t *testing.T) {
	out, err := run(t, "replay", writeFile(t, "log.json", "[ ]"))
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestRecordRequiresURL(t *testing.T) {
	_, err := run(t, "record")
	assert.ErrorContains(t, err, "--url")
}

func TestVersion(t *testing.T) {
	out, err := run(t, "--version")
	require.NoError(t, err)
	assert.Equal(t, AppName+" version test\n", out)
}
