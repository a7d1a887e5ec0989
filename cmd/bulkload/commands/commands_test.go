package commands

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	_ "github.com/ruslano69/bulkload/pkg/adapters/sqlite"
	"github.com/ruslano69/bulkload/pkg/retry"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "bulkload dev"))
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pg.yaml")

	_, err := run(t, "config", "init", "--type", "postgres", "--output", path, "--force=false")
	require.NoError(t, err)
	require.FileExists(t, path)

	_, err = run(t, "config", "init", "--type", "postgres", "--output", path, "--force=false")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	out, err := run(t, "config", "validate", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "ok (postgres)")

	_, err = run(t, "config", "init", "--type", "oracle", "--output", path, "--force")
	require.Error(t, err)
}

func TestUploadDownload(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "quotes.db")

	db, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE stock (code CHAR(6) PRIMARY KEY, open DOUBLE, volume BIGINT)`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	cfgPath := filepath.Join(dir, "bulkload.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(fmt.Sprintf(`
database:
  type: sqlite
  database: %s
staging:
  base_dir: %s
  name: cli
retry:
  max_attempts: 1
log:
  level: error
`, dbPath, dir)), 0644))

	input := filepath.Join(dir, "stock.csv")
	require.NoError(t, os.WriteFile(input, []byte("code,open,volume\n000101,10.5,100\n000102,,200\n000103,7.25,\n"), 0644))

	_, err = run(t, "upload", "--config", cfgPath, "--table", "stock", "--input", input, "--workers", "2", "--chunk", "2")
	require.NoError(t, err)

	output := filepath.Join(dir, "out.csv")
	_, err = run(t, "download", "--config", cfgPath, "--table", "stock", "--output", output)
	require.NoError(t, err)

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t, "code,open,volume\n000101,10.5,100\n000102,,200\n000103,7.25,\n", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasPrefix(e.Name(), "__tmp"), "staging dir %s left behind", e.Name())
	}
}

func TestUpload_XLSX(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "quotes.db")

	db, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)
	defer db.Close()
	_, err = db.Exec(`CREATE TABLE stock (code CHAR(6) PRIMARY KEY, open DOUBLE, volume BIGINT)`)
	require.NoError(t, err)

	cfgPath := filepath.Join(dir, "bulkload.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(fmt.Sprintf(`
database:
  type: sqlite
  database: %s
staging:
  base_dir: %s
  name: xlsx
retry:
  max_attempts: 1
log:
  level: error
`, dbPath, dir)), 0644))

	book := excelize.NewFile()
	_, err = book.NewSheet("prices")
	require.NoError(t, err)
	for i, row := range [][]any{
		{"code", "open", "volume"},
		{"000101", 10.5, 100},
		{"000102", nil, 200},
	} {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, book.SetSheetRow("prices", cell, &row))
	}
	input := filepath.Join(dir, "stock.xlsx")
	require.NoError(t, book.SaveAs(input))
	require.NoError(t, book.Close())

	_, err = run(t, "upload", "--config", cfgPath, "--table", "stock", "--input", input, "--sheet", "prices", "--workers", "1")
	require.NoError(t, err)

	var (
		count int
		open  sql.NullFloat64
	)
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM stock`).Scan(&count))
	assert.Equal(t, 2, count)
	require.NoError(t, db.QueryRow(`SELECT open FROM stock WHERE code = '000102'`).Scan(&open))
	assert.False(t, open.Valid)

	_, err = run(t, "upload", "--config", cfgPath, "--table", "stock", "--input", input, "--sheet", "missing", "--workers", "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")
}

func TestUpload_MissingInput(t *testing.T) {
	_, err := run(t, "upload", "--table", "stock", "--input", filepath.Join(t.TempDir(), "none.csv"), "--workers", "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open input")
}

func TestDLQCommands(t *testing.T) {
	dir := t.TempDir()
	dlqPath := filepath.Join(dir, "dlq.json")

	dlq, err := retry.NewDLQ(retry.DLQConfig{Enabled: true, FilePath: dlqPath})
	require.NoError(t, err)
	require.NoError(t, dlq.Add(retry.DLQEntry{
		Table:       "stock",
		Attempts:    5,
		LastError:   "Deadlock found when trying to get lock",
		FailureType: retry.FailureAttemptsExhausted,
		Quarantine:  "/var/quarantine/stock/stock.csv",
	}))
	require.NoError(t, dlq.Add(retry.DLQEntry{
		Table:       "old",
		FailureType: retry.FailureNonRetryable,
		Timestamp:   time.Now().Add(-72 * time.Hour),
	}))

	cfgPath := filepath.Join(dir, "bulkload.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(fmt.Sprintf(`
database:
  type: sqlite
  database: %s
retry:
  dlq:
    file: %s
    retention: 24h
log:
  level: error
`, filepath.Join(dir, "quotes.db"), dlqPath)), 0644))

	out, err := run(t, "dlq", "cleanup", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "removed: 1, kept: 1")

	out, err = run(t, "dlq", "list", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "stock")
	assert.Contains(t, out, "quarantine: /var/quarantine/stock/stock.csv")
	assert.Contains(t, out, "total: 1")
	assert.Contains(t, out, "attempts_exhausted: 1")
	assert.NotContains(t, out, "non_retryable")

	reloaded, err := retry.NewDLQ(retry.DLQConfig{Enabled: true, FilePath: dlqPath})
	require.NoError(t, err)
	require.Equal(t, 1, reloaded.Size())
	id := reloaded.Entries()[0].ID

	_, err = run(t, "dlq", "remove", id, "--config", cfgPath)
	require.NoError(t, err)

	_, err = run(t, "dlq", "remove", id, "--config", cfgPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")

	out, err = run(t, "dlq", "list", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "total: 0")
}

func TestMetricsRouter(t *testing.T) {
	srv := httptest.NewServer(metricsRouter())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(body), "bulkload_staging_cleanup_failures_total")
}
