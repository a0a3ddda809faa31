package main

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/volumetria/pipetcal/pkg/api"
	"github.com/volumetria/pipetcal/pkg/config"
	"github.com/volumetria/pipetcal/pkg/daemon"
)

const sample = "../../pkg/api/testdata/calcular.json"

// run executes the CLI with a fresh config path and returns stdout.
func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	color.NoColor = true

	cmd := NewCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append(args, "--config", filepath.Join(t.TempDir(), "pipetcal.json")))
	err := cmd.Execute()
	return out.String(), err
}

func TestCalculateLocalJSON(t *testing.T) {
	out, err := run(t, "", "calculate", sample, "--json")
	require.NoError(t, err)

	var resp api.Response
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Aforos, 3)
	assert.InDelta(t, 10.016156068239114, resp.Aforos[1].PromedioVolumenUL, 1e-9)
	assert.True(t, resp.Cumple)
	assert.Nil(t, resp.Aforos[1].Depuracion)
}

func TestCalculateTable(t *testing.T) {
	out, err := run(t, "", "calculate", sample, "--debug")
	require.NoError(t, err)
	assert.Contains(t, out, "Aforo 3: 20 µL")
	assert.Contains(t, out, "Mean volume: 19.9682 µL")
	assert.Contains(t, out, "Factors:")
	assert.Contains(t, out, "Instrument conforms: ✔")
}

func TestCalculateStdin(t *testing.T) {
	_, err := run(t, "{", "calculate", "-")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MalformedInput")
}

func TestCalculateRemote(t *testing.T) {
	s, err := daemon.NewServer(config.NewFileFromConfig(nil, filepath.Join(t.TempDir(), "d.json")))
	require.NoError(t, err)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	out, err := run(t, "", "calculate", sample, "--json", "--remote", "--addr", srv.URL)
	require.NoError(t, err)
	var resp api.Response
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.InDelta(t, 2.008172225230838, resp.Aforos[0].PromedioVolumenUL, 1e-9)

	out, err = run(t, "", "emt", "multicanal", "--remote", "--addr", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "multicanal:")
}

func TestEMT(t *testing.T) {
	out, err := run(t, "", "emt", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"default"`)

	_, err = run(t, "", "emt", "pistola")
	assert.ErrorContains(t, err, "unknown instrument class")

	_, err = run(t, `[{"alcance_ul": 25, "emt_ul": -1}]`, "emt", "set", "laboratorio")
	assert.Error(t, err)
}

func TestEnvBinding(t *testing.T) {
	t.Setenv("PIPETCAL_LOG_LEVEL", "debug")
	_, err := run(t, "", "version")
	require.NoError(t, err)
	assert.Equal(t, "debug", logLevel)

	// Flags win over the environment.
	_, err = run(t, "", "version", "--log-level", "warn")
	require.NoError(t, err)
	assert.Equal(t, "warn", logLevel)

	t.Setenv("PIPETCAL_REMOTE", "maybe")
	_, err = run(t, "", "version")
	assert.ErrorContains(t, err, "PIPETCAL_REMOTE")
}
