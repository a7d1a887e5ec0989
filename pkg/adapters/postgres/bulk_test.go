package postgres

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruslano69/bulkload/pkg/adapters"
	"github.com/ruslano69/bulkload/pkg/staging"
)

func loadRequest(strategy adapters.ImportStrategy) adapters.LoadRequest {
	return adapters.LoadRequest{
		File:           "/tmp/stock.csv",
		Table:          "stock",
		Columns:        []string{"code", "open"},
		Strategy:       strategy,
		LineTerminator: "\n",
		NullMarker:     "nan",
	}
}

func TestBuildCopyFromSQL(t *testing.T) {
	got := BuildCopyFromSQL("bulkload_stock", loadRequest(adapters.StrategyReplace))
	assert.Equal(t, `COPY "bulkload_stock" ("code", "open") FROM STDIN WITH (FORMAT csv, NULL 'nan')`, got)
}

func TestBuildTempTableSQL(t *testing.T) {
	got := BuildTempTableSQL(tempTableName("market.stock"), "market.stock")
	assert.Equal(t, `CREATE TEMP TABLE "bulkload_market_stock" (LIKE "market"."stock" INCLUDING DEFAULTS) ON COMMIT DROP`, got)
}

func TestBuildMergeSQL(t *testing.T) {
	tests := []struct {
		name     string
		strategy adapters.ImportStrategy
		pk       []string
		want     string
	}{
		{
			name:     "replace with key",
			strategy: adapters.StrategyReplace,
			pk:       []string{"code"},
			want: `INSERT INTO "stock" ("code", "open") SELECT DISTINCT ON ("code") "code", "open" FROM "bulkload_stock" ` +
				`ORDER BY "code", ctid DESC ON CONFLICT ("code") DO UPDATE SET "open" = EXCLUDED."open"`,
		},
		{
			name:     "replace without key",
			strategy: adapters.StrategyReplace,
			want:     `INSERT INTO "stock" ("code", "open") SELECT "code", "open" FROM "bulkload_stock"`,
		},
		{
			name:     "replace with key outside columns",
			strategy: adapters.StrategyReplace,
			pk:       []string{"id"},
			want:     `INSERT INTO "stock" ("code", "open") SELECT "code", "open" FROM "bulkload_stock"`,
		},
		{
			name:     "ignore",
			strategy: adapters.StrategyIgnore,
			pk:       []string{"code"},
			want:     `INSERT INTO "stock" ("code", "open") SELECT "code", "open" FROM "bulkload_stock" ON CONFLICT DO NOTHING`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BuildMergeSQL("bulkload_stock", loadRequest(tt.strategy), tt.pk))
		})
	}
}

func TestBuildMergeSQL_AllColumnsAreKey(t *testing.T) {
	req := loadRequest(adapters.StrategyReplace)
	got := BuildMergeSQL("bulkload_stock", req, []string{"code", "open"})
	assert.Contains(t, got, `ON CONFLICT ("code", "open") DO NOTHING`)
}

func TestBuildCopyToSQL(t *testing.T) {
	got := BuildCopyToSQL(adapters.UnloadRequest{Table: "stock", Columns: []string{"code", "time"}})
	assert.Equal(t, `COPY (SELECT COALESCE("code"::text,'') AS "code", COALESCE("time"::text,'') AS "time" FROM "stock") TO STDOUT WITH (FORMAT csv)`, got)
}

func TestIsRetryable(t *testing.T) {
	a := &Adapter{}
	assert.True(t, a.IsRetryable(&pgconn.PgError{Code: "40P01"}))
	assert.True(t, a.IsRetryable(fmt.Errorf("merge: %w", &pgconn.PgError{Code: "55P03"})))
	assert.False(t, a.IsRetryable(&pgconn.PgError{Code: "42P01"}))
	assert.False(t, a.IsRetryable(context.DeadlineExceeded))
	assert.True(t, a.IsRetryable(os.ErrDeadlineExceeded))
}

// testDSN берется из окружения, без него интеграционные тесты пропускаются
func testDSN(t *testing.T) string {
	dsn := os.Getenv("BULKLOAD_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("BULKLOAD_TEST_POSTGRES_DSN is not set")
	}
	return dsn
}

func TestIntegration_LoadUnload(t *testing.T) {
	dsn := testDSN(t)
	ctx := context.Background()

	adapter, err := adapters.New(ctx, adapters.Config{Type: AdapterType, DSN: dsn})
	if err != nil {
		t.Skipf("PostgreSQL not available: %v", err)
	}
	defer adapter.Close(ctx)

	pool := adapter.(*Adapter).pool
	_, err = pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS bulkload_it_stock (code char(6) PRIMARY KEY, open double precision)`)
	require.NoError(t, err)
	defer pool.Exec(ctx, `DROP TABLE IF EXISTS bulkload_it_stock`)
	_, err = pool.Exec(ctx, `TRUNCATE bulkload_it_stock`)
	require.NoError(t, err)

	dir := t.TempDir()
	file := filepath.Join(dir, "bulkload_it_stock.csv.zst")
	require.NoError(t, staging.AppendRecords(file, [][]string{{"000101", "10.5"}, {"000102", "nan"}, {"000101", "11"}}))

	req := adapters.LoadRequest{File: file, Table: "bulkload_it_stock", Columns: []string{"code", "open"}}
	_, err = adapter.BulkLoad(ctx, req)
	require.NoError(t, err)

	cols, err := adapter.DescribeColumns(ctx, "bulkload_it_stock")
	require.NoError(t, err)
	require.Len(t, cols, 2)
	assert.True(t, cols[0].IsPrimaryKey)
	assert.Equal(t, "character", cols[0].Type)

	out := filepath.Join(dir, "out.csv")
	require.NoError(t, adapter.BulkUnload(ctx, adapters.UnloadRequest{File: out, Table: "bulkload_it_stock", Columns: []string{"code", "open"}}))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), "000101,11\n")
	assert.Contains(t, string(data), "000102,\n")
}
