package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alvmarrod/artifact-weaver/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return strings.TrimSpace(out.String()), err
}

func TestVersionFunctions(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "missing.json")

	tests := []struct {
		args []string
		want string
	}{
		{[]string{"version", "compare", "1.0", "1.0.0"}, "0"},
		{[]string{"version", "compare", "1.10", "1.9"}, "1"},
		{[]string{"version", "compare", "1.0-SNAPSHOT", "1.0"}, "-1"},
		{[]string{"version", "severity", "1.2.3", "2.0.0"}, "MAJOR"},
		{[]string{"version", "severity", "1.2.3", "1.3.0"}, "MINOR"},
		{[]string{"version", "same-major", "1.2.3", "1.9.0"}, "true"},
		{[]string{"version", "same-minor", "1.2.3", "1.3.0"}, "false"},
	}

	for _, tt := range tests {
		t.Run(strings.Join(tt.args, " "), func(t *testing.T) {
			out, err := run(t, append(tt.args, "--config", cfg)...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestVersionSeverity_InvalidOrder(t *testing.T) {
	_, err := run(t, "version", "severity", "2.0.0", "1.0.0", "--config", filepath.Join(t.TempDir(), "none.json"))
	assert.Error(t, err)
}

func TestIngestWithPrecedence(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "graph.db")
	metricsPath := filepath.Join(dir, "metrics.json")

	cfgPath := filepath.Join(dir, "config.json")
	cfg := map[string]any{
		"db_path":      dbPath,
		"metrics_path": metricsPath,
		"offline":      true,
	}
	raw, err := json.Marshal(cfg)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(cfgPath, raw, 0644))

	input := filepath.Join(dir, "records.jsonl")
	require.NoError(t, os.WriteFile(input, []byte(strings.Join([]string{
		`{"kind":"artifact","artifact":"g:lib:1.0"}`,
		`{"kind":"artifact","artifact":"g:lib:1.1"}`,
		`{"kind":"dependency","source":"g:app:2.0","target":"g:lib:1.2"}`,
	}, "\n")), 0644))

	_, err = run(t, "ingest", input, "--precedence", "--config", cfgPath)
	require.NoError(t, err)

	data, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	var m storage.Metrics
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Equal(t, "completed", m.TerminationReason)
	assert.Equal(t, 3, m.RecordsProcessed)
	assert.Equal(t, 2, m.NextEdges)

	_, err = run(t, "index", "--config", cfgPath)
	require.NoError(t, err)

	store, err := storage.NewStorage(dbPath)
	require.NoError(t, err)
	defer store.Close()
	count, err := store.CountRelationships(context.Background(), "NEXT")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
