package app

import (
	"context"
	"io"
	"net/http/httptest"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/netround/internal/round"
	"github.com/vk/netround/internal/roundlog"
	"github.com/vk/netround/internal/testutil"
)

const teleportExperiment = `
role "Sender" {
  node    = "delft"
  program = "teleport.sender"
}

role "Receiver" {
  node    = "amsterdam"
  program = "teleport.receiver"
}

node "delft" {
  qubits = 3
  coordinates {
    latitude  = 52.0116
    longitude = 4.3571
  }
}

node "amsterdam" {
  qubits = 1
  coordinates {
    latitude  = 52.3676
    longitude = 4.9041
  }
}

channel "delft-amsterdam" {
  parameters = {
    p_loss_length = 0
  }
}
`

func writeTeleportExperiment(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	testutil.WriteFiles(t, dir, map[string]string{
		"network/network.hcl": teleportExperiment,
		"input/Sender.yaml":   "state: \"1\"\n",
		"input/Receiver.yaml": "basis: Z\n",
	})
	return dir
}

func TestApp_TeleportRounds(t *testing.T) {
	dir := writeTeleportExperiment(t)
	cfg, err := NewConfig(Config{ExperimentPath: dir, Rounds: 2})
	require.NoError(t, err)
	a, logs := SetupAppTest(t, cfg)

	results, err := a.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 2)
	for i, res := range results {
		require.True(t, res.OK(), "round %d failed: %+v", i+1, res.Error)
		assert.Equal(t, i+1, res.Round)
		assert.Equal(t, map[string]any{"lost": false, "measurement": 1}, res.Success.Outputs["Receiver"])
		assert.Equal(t, i+1, res.Success.Document["round"])
	}
	assert.NotEqual(t, results[0].RunID, results[1].RunID)

	// The network log outlives rounds: two qlink entries per round.
	network, err := roundlog.ReadNetworkFile(filepath.Join(dir, round.OutputDir, roundlog.NetworkFile))
	require.NoError(t, err)
	require.Len(t, network, 4)
	assert.Equal(t, "delft-amsterdam", network[0].Path)
	assert.Equal(t, 4, results[1].Success.Document["network_log_entries"])

	last := filepath.Join(dir, round.OutputDir, round.LastDir)
	assert.FileExists(t, filepath.Join(last, round.ResultsFile))
	assert.FileExists(t, filepath.Join(last, roundlog.InstructionsFile("Sender")))
	assert.FileExists(t, filepath.Join(last, roundlog.ClassicalFile("Receiver")))

	assert.Contains(t, logs.String(), "Role bound to program.")
	assert.Contains(t, logs.String(), "Experiment finished.")
}

func TestApp_RoundFailures(t *testing.T) {
	t.Run("missing input document", func(t *testing.T) {
		dir := t.TempDir()
		testutil.WriteFiles(t, dir, map[string]string{
			"network/network.hcl": teleportExperiment,
			"input/Sender.yaml":   "state: \"0\"\n",
		})
		cfg, err := NewConfig(Config{ExperimentPath: dir})
		require.NoError(t, err)
		a, _ := SetupAppTest(t, cfg)

		res := a.RunRound(context.Background(), 1)
		require.False(t, res.OK())
		assert.Equal(t, round.KindLoad, res.Error.Kind)
	})

	t.Run("missing network asset", func(t *testing.T) {
		cfg, err := NewConfig(Config{ExperimentPath: t.TempDir()})
		require.NoError(t, err)
		a, _ := SetupAppTest(t, cfg)

		results, err := a.Run(context.Background())
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, round.KindConfiguration, results[0].Error.Kind)
	})
}

func TestApp_SimulatorCommand(t *testing.T) {
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}

	tests := []struct {
		name    string
		script  string
		ok      bool
		outputs map[string]any
		message string
	}{
		{
			name:    "success",
			script:  `cat >/dev/null; echo "fidelity: 1"`,
			ok:      true,
			outputs: map[string]any{"Sim": map[string]any{"fidelity": 1}},
		},
		{
			name:    "non-zero exit",
			script:  `echo "diverged" >&2; exit 3`,
			message: "simulator returned with exit status 3.",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			testutil.WriteFiles(t, dir, map[string]string{
				"network/network.hcl": `
role "Sim" {
  node    = "n1"
  command = ["` + sh + `", "-c", "` + escape(tc.script) + `"]
}
node "n1" {}
`,
				"input/Sim.yaml": "shots: 10\n",
			})
			cfg, err := NewConfig(Config{ExperimentPath: dir, Timeout: 10 * time.Second})
			require.NoError(t, err)
			a, _ := SetupAppTest(t, cfg)

			results, err := a.Run(context.Background())
			require.NoError(t, err)
			require.Len(t, results, 1)
			res := results[0]
			require.Equal(t, tc.ok, res.OK())
			if tc.ok {
				assert.Equal(t, tc.outputs, res.Success.Outputs)
				return
			}
			assert.Equal(t, round.KindSubprocess, res.Error.Kind)
			assert.Equal(t, tc.message, res.Error.Message)
			assert.Equal(t, "diverged\n", res.Error.Trace)
		})
	}
}

// escape quotes s for an HCL string literal.
func escape(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r == '"' || r == '\\' {
			out = append(out, '\\')
		}
		out = append(out, r)
	}
	return string(out)
}

func TestApp_HealthAndMetrics(t *testing.T) {
	dir := writeTeleportExperiment(t)
	cfg, err := NewConfig(Config{ExperimentPath: dir})
	require.NoError(t, err)
	a, _ := SetupAppTest(t, cfg)

	_, err = a.Run(context.Background())
	require.NoError(t, err)

	srv := httptest.NewServer(a.newServeMux())
	t.Cleanup(srv.Close)

	resp, err := srv.Client().Get(srv.URL + "/health")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "OK\n", string(body))

	resp, err = srv.Client().Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Regexp(t, `netround_rounds_total\{.*state="completed".*\} 1`, string(body))
	assert.Contains(t, string(body), "netround_quantum_links 1")
}
