package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruslano69/bulkload/pkg/adapters"
	"github.com/ruslano69/bulkload/pkg/staging"
)

func newTestAdapter(t *testing.T) *Adapter {
	t.Helper()
	ctx := context.Background()

	dsn := "file:" + filepath.Join(t.TempDir(), "test.db") + "?_pragma=busy_timeout(5000)"
	a, err := adapters.New(ctx, adapters.Config{Type: AdapterType, DSN: dsn})
	require.NoError(t, err)
	t.Cleanup(func() { a.Close(ctx) })

	adapter := a.(*Adapter)
	_, err = adapter.DB().ExecContext(ctx, `CREATE TABLE stock (
		code CHAR(6) PRIMARY KEY,
		open DOUBLE,
		volume BIGINT,
		time DATETIME
	)`)
	require.NoError(t, err)
	return adapter
}

func stage(t *testing.T, name string, records [][]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, staging.AppendRecords(path, records))
	return path
}

func TestBuildInsertSQL(t *testing.T) {
	req := adapters.LoadRequest{Table: "stock", Columns: []string{"code", "open"}, Strategy: adapters.StrategyIgnore}
	assert.Equal(t, `INSERT OR IGNORE INTO "stock" ("code", "open") VALUES (?, ?)`, BuildInsertSQL(req))
}

func TestBuildSelectSQL(t *testing.T) {
	req := adapters.UnloadRequest{Table: "stock", Columns: []string{"code", "open"}}
	assert.Equal(t, `SELECT IFNULL("code",'') AS "code", IFNULL("open",'') AS "open" FROM "stock"`, BuildSelectSQL(req))
}

func TestDescribeColumns(t *testing.T) {
	a := newTestAdapter(t)

	cols, err := a.DescribeColumns(context.Background(), "stock")
	require.NoError(t, err)
	require.Len(t, cols, 4)

	assert.Equal(t, "code", cols[0].Name)
	assert.Equal(t, "char(6)", cols[0].Type)
	assert.True(t, cols[0].IsPrimaryKey)
	assert.Equal(t, "datetime", cols[3].Type)

	_, err = a.DescribeColumns(context.Background(), "missing")
	require.Error(t, err)
}

func TestBulkLoad_NullMarkerAndReplace(t *testing.T) {
	ctx := context.Background()
	a := newTestAdapter(t)

	file := stage(t, "stock.csv", [][]string{
		{"000101", "10.5", "100", "2020-01-02 00:00:00"},
		{"000102", "nan", "nan", "2020-01-03 00:00:00"},
	})
	req := adapters.LoadRequest{File: file, Table: "stock", Columns: []string{"code", "open", "volume", "time"}}

	n, err := a.BulkLoad(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	// повторная загрузка с REPLACE не дублирует строки
	_, err = a.BulkLoad(ctx, req)
	require.NoError(t, err)

	var count int
	require.NoError(t, a.DB().QueryRow(`SELECT COUNT(*) FROM stock`).Scan(&count))
	assert.Equal(t, 2, count)

	var isNull bool
	require.NoError(t, a.DB().QueryRow(`SELECT open IS NULL FROM stock WHERE code = '000102'`).Scan(&isNull))
	assert.True(t, isNull)
}

func TestBulkLoad_Ignore(t *testing.T) {
	ctx := context.Background()
	a := newTestAdapter(t)
	cols := []string{"code", "open"}

	first := stage(t, "stock.csv", [][]string{{"000101", "10.5"}})
	_, err := a.BulkLoad(ctx, adapters.LoadRequest{File: first, Table: "stock", Columns: cols})
	require.NoError(t, err)

	second := stage(t, "stock.csv", [][]string{{"000101", "99"}})
	_, err = a.BulkLoad(ctx, adapters.LoadRequest{File: second, Table: "stock", Columns: cols, Strategy: adapters.StrategyIgnore})
	require.NoError(t, err)

	var open float64
	require.NoError(t, a.DB().QueryRow(`SELECT open FROM stock WHERE code = '000101'`).Scan(&open))
	assert.Equal(t, 10.5, open)
}

func TestBulkLoad_Compressed(t *testing.T) {
	ctx := context.Background()
	a := newTestAdapter(t)

	file := stage(t, "stock.csv.zst", [][]string{{"000101", "1"}, {"000102", "2"}})
	n, err := a.BulkLoad(ctx, adapters.LoadRequest{File: file, Table: "stock", Columns: []string{"code", "open"}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestBulkLoad_MissingTable(t *testing.T) {
	a := newTestAdapter(t)
	file := stage(t, "nope.csv", [][]string{{"1"}})

	_, err := a.BulkLoad(context.Background(), adapters.LoadRequest{File: file, Table: "nope", Columns: []string{"x"}})
	require.Error(t, err)
}

func TestBulkUnload(t *testing.T) {
	ctx := context.Background()
	a := newTestAdapter(t)

	_, err := a.DB().ExecContext(ctx, `INSERT INTO stock (code, open, volume, time) VALUES
		('000101', 10.5, 100, '2020-01-02 00:00:00'),
		('000102', NULL, NULL, NULL)`)
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "stock.csv")
	err = a.BulkUnload(ctx, adapters.UnloadRequest{
		File:    out,
		Table:   "stock",
		Columns: []string{"code", "open", "volume", "time"},
	})
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "000101,10.5,100,2020-01-02 00:00:00\n000102,,,\n", string(data))
}
