package main

import (
	"bytes"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yaoapp/duet"
)

const sample = `[
	{"type": 1, "uid": 1, "tag": "view"},
	{"type": 2, "uid": 1, "key": "id", "value": "target"},
	{"type": 10, "uid": 1, "key": "background", "value": "pink"},
	{"type": 4, "uid": 0, "cid": 1, "index": -1}
]`

const expected = "<page#0>\n  <view#1> id=\"target\" style=\"background:pink\"\n"

func TestReplay(t *testing.T) {
	color.NoColor = true
	dir := t.TempDir()
	file := write(t, dir, "log.json", sample)

	w := &bytes.Buffer{}
	err := replay(w, file, "", false)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, expected, w.String())

	w.Reset()
	err = replay(w, file, write(t, dir, "expect.txt", expected), false)
	assert.NoError(t, err)
	assert.Contains(t, w.String(), "matched")

	w.Reset()
	wrong := write(t, dir, "wrong.txt", "<page#0>\n  <text#1>\n")
	err = replay(w, file, wrong, false)
	assert.ErrorIs(t, err, ErrMismatch)
	assert.Contains(t, w.String(), "-   <text#1>")

	w.Reset()
	err = replay(w, file, wrong, true)
	require.NoError(t, err)
	assert.Contains(t, w.String(), "updated")
	data, err := os.ReadFile(wrong)
	require.NoError(t, err)
	assert.Equal(t, expected, string(data))

	w.Reset()
	assert.NoError(t, replay(w, file, wrong, false))
}

func TestCheck(t *testing.T) {
	color.NoColor = true
	dir := t.TempDir()

	w := &bytes.Buffer{}
	assert.NoError(t, check(w, write(t, dir, "ok.json", sample)))
	assert.Contains(t, w.String(), "4 operations ok")

	w.Reset()
	bad := `[{"type": 2, "uid": 7, "key": "id", "value": "x"}, {"type": 1, "uid": 1, "tag": "view"}]`
	err := check(w, write(t, dir, "bad.json", bad))
	assert.Error(t, err)
	assert.Contains(t, w.String(), "uid=7")

	_, err = readLog(write(t, dir, "broken.json", "{"))
	assert.Error(t, err)
}

func TestConnect(t *testing.T) {
	color.NoColor = true
	option := &duet.Option{Name: "cli"}
	option.Validate()

	r, upgrader, err := router(option)
	if err != nil {
		t.Fatal(err)
	}

	server := httptest.NewServer(r)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + upgrader.Path()
	w := &bytes.Buffer{}
	err = connect(w, url, option, write(t, t.TempDir(), "log.json", sample))
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, expected, w.String())
}

func write(t *testing.T, dir string, name string, content string) string {
	file := filepath.Join(dir, name)
	err := os.WriteFile(file, []byte(content), 0644)
	if err != nil {
		t.Fatal(err)
	}
	return file
}
