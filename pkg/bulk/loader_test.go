package bulk

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruslano69/bulkload/pkg/adapters"
	"github.com/ruslano69/bulkload/pkg/adapters/sqlite"
	"github.com/ruslano69/bulkload/pkg/frame"
)

func newSQLite(t *testing.T) *sqlite.Adapter {
	t.Helper()
	ctx := context.Background()

	dsn := "file:" + filepath.Join(t.TempDir(), "bulk.db") + "?_pragma=busy_timeout(5000)"
	a, err := adapters.New(ctx, adapters.Config{Type: sqlite.AdapterType, DSN: dsn})
	require.NoError(t, err)
	t.Cleanup(func() { a.Close(ctx) })

	db := a.(*sqlite.Adapter)
	_, err = db.DB().ExecContext(ctx, `CREATE TABLE stock (
		code CHAR(6) PRIMARY KEY,
		open DOUBLE,
		time DATETIME
	)`)
	require.NoError(t, err)
	return db
}

func countRows(t *testing.T, db *sqlite.Adapter) int {
	t.Helper()
	var n int
	require.NoError(t, db.DB().QueryRow("SELECT COUNT(*) FROM stock").Scan(&n))
	return n
}

func stockFrame() *frame.Frame {
	ts := func(day int) time.Time { return time.Date(2021, 5, day, 9, 30, 0, 0, time.UTC) }
	return frame.MustNew(
		frame.NewColumn("code", frame.TypeText, "000101", "000102", "000103"),
		frame.NewColumn("open", frame.TypeFloat, 10.5, nil, 7.25),
		frame.NewColumn("time", frame.TypeTimestamp, ts(1), ts(2), ts(3)),
	)
}

func TestLoader_StockScenario(t *testing.T) {
	db := newSQLite(t)
	l := newTestLoader(t, db, testOptions(t))
	ctx := context.Background()

	require.NoError(t, l.LoadTo(ctx, stockFrame(), "stock"))

	got, err := l.LoadFrom(ctx, "stock")
	require.NoError(t, err)
	require.Equal(t, 3, got.Len())

	open, ok := got.Column("open")
	require.True(t, ok)
	assert.Equal(t, frame.TypeFloat, open.Type)
	assert.Equal(t, []any{10.5, nil, 7.25}, open.Values)

	tm, ok := got.Column("time")
	require.True(t, ok)
	assert.Equal(t, frame.TypeTimestamp, tm.Type)
	assert.Equal(t, time.Date(2021, 5, 2, 9, 30, 0, 0, time.UTC), tm.Values[1])

	code, _ := got.Column("code")
	assert.Equal(t, []any{"000101", "000102", "000103"}, code.Values)

	assert.NoDirExists(t, l.Uploader().Root())
	assert.NoDirExists(t, l.Downloader().Root())
}

func TestLoader_IntegerAndTimeRoundTrip(t *testing.T) {
	db := newSQLite(t)
	ctx := context.Background()
	_, err := db.DB().ExecContext(ctx, `CREATE TABLE ticks (
		id INTEGER PRIMARY KEY,
		lot TINYINT,
		qty INT UNSIGNED,
		volume BIGINT,
		pause TIME
	)`)
	require.NoError(t, err)
	l := newTestLoader(t, db, testOptions(t))

	in := frame.MustNew(
		frame.NewColumn("id", frame.TypeBigInt, int64(3000000000), int64(1), int64(2)),
		frame.NewColumn("lot", frame.TypeTinyInt, int8(-5), nil, int8(127)),
		frame.NewColumn("qty", frame.TypeBigInt, int64(4294967295), int64(0), nil),
		frame.NewColumn("volume", frame.TypeBigInt, nil, int64(math.MaxInt64), int64(-1)),
		frame.NewColumn("pause", frame.TypeDuration, 90*time.Minute+1500*time.Millisecond, nil, -2*time.Second),
	)
	require.NoError(t, l.LoadTo(ctx, in, "ticks"))

	got, err := l.LoadFrom(ctx, "ticks")
	require.NoError(t, err)
	require.Equal(t, 3, got.Len())

	for _, name := range []string{"id", "lot", "qty", "volume"} {
		c, ok := got.Column(name)
		require.True(t, ok, name)
		assert.Equal(t, frame.TypeBigInt, c.Type, name)
	}
	pause, _ := got.Column("pause")
	assert.Equal(t, frame.TypeDuration, pause.Type)

	rows := make(map[int64][]any, got.Len())
	for i := 0; i < got.Len(); i++ {
		row := got.Row(i)
		rows[row[0].(int64)] = row
	}
	assert.Equal(t, []any{int64(3000000000), int64(-5), int64(4294967295), nil, 90*time.Minute + 1500*time.Millisecond}, rows[3000000000])
	assert.Equal(t, []any{int64(1), nil, int64(0), int64(math.MaxInt64), nil}, rows[1])
	assert.Equal(t, []any{int64(2), int64(127), nil, int64(-1), -2 * time.Second}, rows[2])
}

func TestLoader_SeriesRoundTrip(t *testing.T) {
	db := newSQLite(t)
	l := newTestLoader(t, db, testOptions(t))
	ctx := context.Background()

	codes := &frame.Series{Name: "code", Values: []any{"000201", "000202"}}
	require.NoError(t, l.LoadTo(ctx, codes, "stock"))
	assert.Equal(t, 2, countRows(t, db))

	got, err := l.LoadFrom(ctx, "stock")
	require.NoError(t, err)
	open, _ := got.Column("open")
	assert.Equal(t, []any{nil, nil}, open.Values)
}

func TestLoader_ReplaceIdempotent(t *testing.T) {
	db := newSQLite(t)
	l := newTestLoader(t, db, testOptions(t))
	ctx := context.Background()

	require.NoError(t, l.LoadTo(ctx, stockFrame(), "stock"))
	require.NoError(t, l.LoadTo(ctx, stockFrame(), "stock"))
	assert.Equal(t, 3, countRows(t, db))

	changed := stockFrame()
	open, _ := changed.Column("open")
	open.Values[0] = 99.0

	require.NoError(t, l.LoadTo(ctx, changed, "stock", WithIgnore()))
	var v float64
	require.NoError(t, db.DB().QueryRow("SELECT open FROM stock WHERE code = '000101'").Scan(&v))
	assert.Equal(t, 10.5, v)

	require.NoError(t, l.LoadTo(ctx, changed, "stock"))
	require.NoError(t, db.DB().QueryRow("SELECT open FROM stock WHERE code = '000101'").Scan(&v))
	assert.Equal(t, 99.0, v)
	assert.Equal(t, 3, countRows(t, db))
}

func TestLoader_Workers(t *testing.T) {
	const workers, rowsPerWorker = 4, 25

	db := newSQLite(t)
	opts := testOptions(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, workers)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			wopts := opts
			wopts.WorkerKey = fmt.Sprintf("w%d", w)
			l, err := NewLoader(db, wopts)
			if err != nil {
				errs[w] = err
				return
			}

			codes := make([]any, rowsPerWorker)
			opens := make([]any, rowsPerWorker)
			for i := range codes {
				codes[i] = fmt.Sprintf("%d%05d", w, i)
				opens[i] = float64(i)
			}
			errs[w] = l.BatchLoadTo(ctx, frame.MustNew(
				frame.NewColumn("code", frame.TypeText, codes...),
				frame.NewColumn("open", frame.TypeFloat, opens...),
			), "stock")
		}()
	}
	wg.Wait()
	require.NoError(t, errors.Join(errs...))

	coordinator := newTestLoader(t, db, opts)
	require.NoError(t, coordinator.Execute(ctx))

	assert.Equal(t, workers*rowsPerWorker, countRows(t, db))
	assert.NoDirExists(t, coordinator.Uploader().Root())
}

func TestFanOut(t *testing.T) {
	db := newSQLite(t)
	ctx := context.Background()

	codes := make([]any, 10)
	for i := range codes {
		codes[i] = fmt.Sprintf("%06d", i)
	}
	data := frame.MustNew(frame.NewColumn("code", frame.TypeText, codes...))

	opts := testOptions(t)
	require.NoError(t, FanOut(ctx, db, opts, data, "stock", 3, 2))
	assert.Equal(t, 10, countRows(t, db))

	require.ErrorIs(t, FanOut(ctx, db, opts, data, "", 3, 2), ErrMissingTarget)
}

func TestSession(t *testing.T) {
	db := newSQLite(t)
	opts := testOptions(t)
	l := newTestLoader(t, db, opts)
	ctx := context.Background()

	s, err := l.Begin(ctx)
	require.NoError(t, err)

	require.NoError(t, l.BatchLoadTo(ctx, stockFrame().Slice(0, 2), "stock"))
	require.NoError(t, l.BatchLoadTo(ctx, stockFrame().Slice(2, 3), "stock"))
	assert.Equal(t, 0, countRows(t, db))

	_, err = l.BatchLoadFrom(ctx, "stock")
	require.NoError(t, err)
	assert.DirExists(t, l.Downloader().Root())

	require.NoError(t, s.Close(ctx))
	require.NoError(t, s.Close(ctx))

	assert.Equal(t, 3, countRows(t, db))
	assert.NoDirExists(t, l.Uploader().Root())
	assert.NoDirExists(t, l.Downloader().Root())
}

func TestBegin_ClearsStaleScopes(t *testing.T) {
	db := &fakeAdapter{}
	l := newTestLoader(t, db, testOptions(t))
	ctx := context.Background()

	require.NoError(t, l.BatchLoadTo(ctx, quotes(), "stale"))

	s, err := l.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, s.Close(ctx))
	assert.Empty(t, db.loads)
}

func TestWithSession(t *testing.T) {
	db := newSQLite(t)
	l := newTestLoader(t, db, testOptions(t))
	ctx := context.Background()

	err := WithSession(ctx, l, func(ctx context.Context, l *Loader) error {
		return l.BatchLoadTo(ctx, stockFrame(), "stock")
	})
	require.NoError(t, err)
	assert.Equal(t, 3, countRows(t, db))
}

func TestWithSession_JoinsErrors(t *testing.T) {
	cause := errors.New("worker failed")
	db := &fakeAdapter{failLoads: 100, loadErr: errors.New("server has gone away")}
	opts := testOptions(t)
	opts.Retry.MaxAttempts = 1
	l := newTestLoader(t, db, opts)

	err := WithSession(context.Background(), l, func(ctx context.Context, l *Loader) error {
		if err := l.BatchLoadTo(ctx, quotes(), "stock"); err != nil {
			return err
		}
		return cause
	})
	require.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, db.loadErr)
	assert.Len(t, db.calls, 1)
	assert.NoDirExists(t, l.Uploader().Root())
}

func TestWithSession_ClosesOnPanic(t *testing.T) {
	db := &fakeAdapter{}
	l := newTestLoader(t, db, testOptions(t))

	assert.Panics(t, func() {
		_ = WithSession(context.Background(), l, func(ctx context.Context, l *Loader) error {
			if err := l.BatchLoadTo(ctx, quotes(), "stock"); err != nil {
				return err
			}
			panic("worker crashed")
		})
	})
	assert.Len(t, db.loads, 1)
}
