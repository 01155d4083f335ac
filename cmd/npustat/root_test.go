package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wmc1992/npustat/internal"
	"github.com/wmc1992/npustat/internal/config"
	"github.com/wmc1992/npustat/internal/npu"
	"github.com/wmc1992/npustat/internal/npu/base"
)

const capturedTable = `| npu-smi 21.0.3.1 Version: 21.0.3.1 |
| 1 310 | OK | 12.8 49 |
| 0 0 | 0000:01:00.0 | 0 2621 / 8192 |
`

func withCaptures(t *testing.T) {
	t.Helper()
	old := FS
	t.Cleanup(func() { FS = old })

	FS = afero.NewMemMapFs()
	files := map[string]string{
		"/cap/hostname.txt":                     "atlas-01\n",
		"/cap/npu-smi_info.txt":                 capturedTable,
		"/cap/npu-smi_info_-t_product_-i_1.txt": "Product Name : Atlas 300I Model 3000\n",
	}
	for path, body := range files {
		require.NoError(t, afero.WriteFile(FS, path, []byte(body), 0o644))
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRoot_JSONFromReplay(t *testing.T) {
	withCaptures(t)

	out, err := execute(t, "--replay", "/cap", "--json")
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, "atlas-01", doc["hostname"])
	assert.Equal(t, "npu-smi version : 21.0.3.1", doc["version"])

	cards := doc["atlas_cards"].([]any)
	require.Len(t, cards, 1)
	card := cards[0].(map[string]any)
	assert.Equal(t, "Atlas 300I Model 3000", card["type"])
	assert.NotContains(t, card, "power", "the npu-smi table has no realtime power")
}

func TestRoot_CompactText(t *testing.T) {
	withCaptures(t)

	out, err := execute(t, "--replay", "/cap", "--use-npu-smi", "--compact")
	require.NoError(t, err)
	assert.Equal(t, "[1], Atlas 300I Model 3000\n[0] [0] OK, Ascend 310 | 49°C,   0 %, 2621 MB / 8192 MB\n", out)
}

func TestRoot_JSONWithInterval(t *testing.T) {
	withCaptures(t)

	_, err := execute(t, "--replay", "/cap", "--json", "-i")
	assert.ErrorIs(t, err, config.ErrJSONWithInterval)

	_, err = execute(t, "--replay", "/cap", "--json", "--watch=1")
	assert.ErrorIs(t, err, config.ErrJSONWithInterval)
}

func TestRoot_NoBackend(t *testing.T) {
	withCaptures(t)

	_, err := execute(t, "--replay", "/empty")
	assert.ErrorIs(t, err, npu.ErrNoBackend)
}

func TestRoot_IntervalDefault(t *testing.T) {
	root := newRootCmd()
	require.NoError(t, root.ParseFlags([]string{"--watch"}))
	v, err := root.Flags().GetString("interval")
	require.NoError(t, err)
	assert.Equal(t, "2", v)
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "npustat version: ")
}

func TestVersion_Check(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"tag_name": "v9.0.0", "html_url": "https://example.invalid/v9.0.0"}`))
	}))
	defer srv.Close()

	old := internal.Version
	internal.Version = "0.1.0"
	t.Cleanup(func() { internal.Version = old })

	out, err := execute(t, "version", "--check", "--release-url", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "Update available! v0.1.0 -> v9.0.0")
}

func TestCapture_NothingInstalled(t *testing.T) {
	withCaptures(t)
	t.Setenv("PATH", "/nonexistent")

	_, err := execute(t, "capture", "/out")
	assert.ErrorIs(t, err, npu.ErrNoBackend)
}

func TestCapture_RejectsReplay(t *testing.T) {
	withCaptures(t)

	_, err := execute(t, "--replay", "/cap", "capture", "/out")
	assert.Error(t, err)
}

// withTools replaces the local runner with canned tool outputs. Commands
// without an output behave like a missing tool.
func withTools(t *testing.T, outputs map[string]string) map[string]int {
	t.Helper()
	old := localRunner
	t.Cleanup(func() { localRunner = old })

	calls := make(map[string]int)
	localRunner = func(time.Duration) base.RunCmdFunc {
		return func(_ context.Context, cmd string) (string, error) {
			calls[cmd]++
			out, ok := outputs[cmd]
			if !ok {
				return "", base.Unavailable(cmd, errors.New("executable file not found in $PATH"))
			}
			return out, nil
		}
	}
	return calls
}

func TestCapture_RecordsForReplay(t *testing.T) {
	withCaptures(t)
	calls := withTools(t, map[string]string{
		"hostname":                     "atlas-02\n",
		"npu-smi info":                 capturedTable,
		"npu-smi info -t product -i 1": "Product Name : Atlas 300I Model 3000\n",
	})

	out, err := execute(t, "capture", "/out")
	require.NoError(t, err)
	assert.Equal(t, "captured 1 backend(s) to /out\n", out)
	assert.Equal(t, 1, calls["ascend-dmi -i"])

	for name, want := range map[string]string{
		"hostname.txt":                     "atlas-02\n",
		"npu-smi_info.txt":                 capturedTable,
		"npu-smi_info_-t_product_-i_1.txt": "Product Name : Atlas 300I Model 3000\n",
	} {
		got, err := afero.ReadFile(FS, "/out/"+name)
		require.NoError(t, err, name)
		assert.Equal(t, want, string(got), name)
	}
	exists, err := afero.Exists(FS, "/out/ascend-dmi_-i.txt")
	require.NoError(t, err)
	assert.False(t, exists, "failed commands are not recorded")

	// the capture answers a later query without touching the tools
	before := calls["npu-smi info"]
	out, err = execute(t, "--replay", "/out", "--json")
	require.NoError(t, err)
	assert.Equal(t, before, calls["npu-smi info"])

	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, "atlas-02", doc["hostname"])
	assert.Equal(t, "npu-smi version : 21.0.3.1", doc["version"])
	cards := doc["atlas_cards"].([]any)
	require.Len(t, cards, 1)
	assert.Equal(t, "Atlas 300I Model 3000", cards[0].(map[string]any)["type"])
}
