package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/Protocol-Intelligence/internal/application/analysis"
	"github.com/turtacn/Protocol-Intelligence/internal/application/collection"
	"github.com/turtacn/Protocol-Intelligence/internal/domain/protocol"
	"github.com/turtacn/Protocol-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/Protocol-Intelligence/internal/infrastructure/storage"
	"github.com/turtacn/Protocol-Intelligence/internal/infrastructure/storage/filesystem"
	"github.com/turtacn/Protocol-Intelligence/internal/intelligence/benchmarking"
	"github.com/turtacn/Protocol-Intelligence/pkg/errors"
)

const sampleProtocol = `A Phase 2, Randomized, Double-Blind Study of Drug X in Type 2 Diabetes

A total of 150 patients will be enrolled at approximately 20 sites.

Inclusion Criteria:
1. Adults aged 18 to 75 years
2. HbA1c between 7.0% and 10.5%

Exclusion Criteria:
1. Type 1 diabetes

Primary endpoint: change in HbA1c at week 24.
`

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

// writeConfig writes a minimal config rooted at a temp storage directory.
func writeConfig(t *testing.T, registryURL string) (path, dataDir string) {
	t.Helper()
	dir := t.TempDir()
	dataDir = filepath.Join(dir, "corpus")
	if registryURL == "" {
		registryURL = "http://127.0.0.1:1"
	}
	yaml := fmt.Sprintf(`log:
  level: error
storage:
  backend: filesystem
  dir: %s
registry:
  base_url: %s
  retry_base: 1ms
  max_retries: 1
collector:
  page_size: 10
  max_empty_pages: 1
  condition_target: 1
  phase_target: 1
  study_type_target: 1
  conditions: [asthma]
  phases: [PHASE2]
  study_types: [INTERVENTIONAL]
`, dataDir, registryURL)
	path = filepath.Join(dir, "protointel.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	return path, dataDir
}

func seedDataset(t *testing.T, dataDir string, n int) {
	t.Helper()
	records := make([]protocol.CorpusRecord, n)
	for i := range records {
		records[i] = protocol.CorpusRecord{
			NCTID:            fmt.Sprintf("NCT%08d", i+1),
			Phase:            protocol.Phase2,
			TherapeuticArea:  protocol.AreaEndocrinology,
			SampleSize:       100 + 10*i,
			CriteriaCount:    8 + i%6,
			PrimaryEndpoints: 1,
			ComplexityScore:  float64(30 + 2*i),
		}
	}
	ds := benchmarking.BuildDataset(records, 10, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), "run-cli")
	store, err := filesystem.NewStore(dataDir, logging.NewNopLogger())
	require.NoError(t, err)
	require.NoError(t, storage.PutJSON(context.Background(), store, storage.DatasetKey, ds))
}

func TestNewRootCommand_Structure(t *testing.T) {
	cmd := NewRootCommand()
	assert.Equal(t, "protointel", cmd.Use)
	assert.NotEmpty(t, cmd.Short)

	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}
	for _, want := range []string{"analyze", "benchmark", "collect", "corpus", "version"} {
		assert.True(t, names[want], want)
	}
	for _, flag := range []string{"config", "log-level", "output", "verbose", "timeout"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(flag), flag)
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "protointel dev")
}

func TestRejectsUnknownOutputFormat(t *testing.T) {
	cfg, _ := writeConfig(t, "")
	_, err := execute(t, "", "--config", cfg, "-o", "yaml", "analyze", "--offline", "-")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeBadRequest))
}

func TestAnalyze_FileJSON(t *testing.T) {
	cfg, _ := writeConfig(t, "")
	doc := filepath.Join(t.TempDir(), "protocol.md")
	require.NoError(t, os.WriteFile(doc, []byte(sampleProtocol), 0o600))

	out, err := execute(t, "", "--config", cfg, "-o", "json", "analyze", "--offline", doc)
	require.NoError(t, err)

	var report analysis.Report
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, protocol.Phase2, report.Features.Phase)
	assert.Equal(t, protocol.AreaEndocrinology, report.Features.TherapeuticArea)
	assert.Equal(t, 150, report.Features.SampleSize)
	assert.Nil(t, report.Benchmark)
}

func TestAnalyze_StdinTextWithCorpus(t *testing.T) {
	cfg, dataDir := writeConfig(t, "")
	seedDataset(t, dataDir, 15)

	out, err := execute(t, sampleProtocol, "--config", cfg, "analyze", "-")
	require.NoError(t, err)
	assert.Contains(t, out, "Protocol:     -")
	assert.Contains(t, out, "Phase:        Phase 2")
	assert.Contains(t, out, "cohort of 15")
}

func TestAnalyze_PhaseOverrideAndBatchTable(t *testing.T) {
	cfg, _ := writeConfig(t, "")
	dir := t.TempDir()
	a := filepath.Join(dir, "a.txt")
	b := filepath.Join(dir, "b.txt")
	require.NoError(t, os.WriteFile(a, []byte(sampleProtocol), 0o600))
	require.NoError(t, os.WriteFile(b, []byte("Open-label study in asthma"), 0o600))

	out, err := execute(t, "", "--config", cfg, "-o", "table", "analyze", "--offline", "--phase", "Phase 3", a, b)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "PROTOCOL"))
	assert.Contains(t, lines[2], "PHASE3")
	assert.Contains(t, lines[3], "respiratory")
}

func TestAnalyze_MissingFile(t *testing.T) {
	cfg, _ := writeConfig(t, "")
	_, err := execute(t, "", "--config", cfg, "analyze", "--offline", filepath.Join(t.TempDir(), "nope.txt"))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeDocumentUnreadable))
}

func TestBenchmark(t *testing.T) {
	cfg, dataDir := writeConfig(t, "")
	seedDataset(t, dataDir, 12)

	out, err := execute(t, "", "--config", cfg, "-o", "json", "benchmark",
		"--phase", "phase ii", "--sample-size", "500", "--complexity", "40", "--criteria", "10", "--endpoints", "1")
	require.NoError(t, err)
	var b protocol.Benchmark
	require.NoError(t, json.Unmarshal([]byte(out), &b))
	assert.Equal(t, protocol.Phase2, b.Phase)
	assert.Equal(t, 12, b.CohortSize)

	_, err = execute(t, "", "--config", cfg, "benchmark", "--phase", "PHASE3")
	assert.True(t, errors.IsCode(err, errors.ErrCodeCohortTooSmall))

	_, err = execute(t, "", "--config", cfg, "benchmark", "--phase", "later")
	assert.True(t, errors.IsCode(err, errors.ErrCodeValidation))
}

func TestBenchmark_NoCorpus(t *testing.T) {
	cfg, _ := writeConfig(t, "")
	_, err := execute(t, "", "--config", cfg, "benchmark", "--phase", "PHASE2")
	assert.True(t, errors.IsCode(err, errors.ErrCodeCorpusNotLoaded))
}

func TestCorpusSummary(t *testing.T) {
	cfg, dataDir := writeConfig(t, "")
	seedDataset(t, dataDir, 11)

	out, err := execute(t, "", "--config", cfg, "-o", "table", "corpus", "summary")
	require.NoError(t, err)
	assert.Contains(t, out, "PHASE")
	assert.Contains(t, out, "Phase 2")
	assert.Contains(t, out, "11")
}

func TestSummaryView_BelowFloorShowsNoMedians(t *testing.T) {
	v := summaryView{CorpusSummary: &analysis.CorpusSummary{
		MinCohortSize: 10,
		Phases: map[protocol.Phase]benchmarking.CohortSummary{
			protocol.Phase1: {Phase: protocol.Phase1, Count: 9},
		},
	}}
	rows := v.TableRows()
	require.Len(t, rows, 1)
	assert.Equal(t, []string{protocol.Phase1.Label(), "9", "-", "-"}, rows[0])
}

func TestCollect(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		fmt.Fprint(w, `{"studies":[`+
			`{"protocolSection":{"identificationModule":{"nctId":"NCT00000001","briefTitle":"Asthma study"},"designModule":{"phases":["PHASE2"]}}},`+
			`{"protocolSection":{"identificationModule":{"nctId":"NCT00000002","briefTitle":"Diabetes study"},"designModule":{"phases":["PHASE3"]}}},`+
			`{"protocolSection":{"identificationModule":{"nctId":"NCT00000001","briefTitle":"Duplicate"}}}`+
			`],"totalCount":3}`)
	}))
	defer srv.Close()

	cfg, dataDir := writeConfig(t, srv.URL)
	out, err := execute(t, "", "--config", cfg, "-o", "json", "collect")
	require.NoError(t, err)

	var rep collection.RunReport
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	assert.Equal(t, 2, rep.TotalProtocols)
	assert.Equal(t, 1, rep.Duplicates)
	assert.Equal(t, int32(1), calls.Load(), "sweeps are skipped once targets are met")

	store, err := filesystem.NewStore(dataDir, logging.NewNopLogger())
	require.NoError(t, err)
	for _, key := range []string{storage.DatasetKey, storage.SummaryMarkdownKey, storage.ProtocolKey("NCT00000002")} {
		ok, err := store.Exists(context.Background(), key)
		require.NoError(t, err)
		assert.True(t, ok, key)
	}
}

func TestFormatTable(t *testing.T) {
	got := FormatTable([]string{"A", "LONG"}, [][]string{{"xyz", "1"}, {"q"}})
	want := "A    LONG\n---  ----\nxyz  1   \nq        \n"
	assert.Equal(t, want, got)
	assert.Empty(t, FormatTable(nil, nil))
}
