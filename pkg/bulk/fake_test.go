package bulk

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"time"

	"github.com/ruslano69/bulkload/pkg/adapters"
	"github.com/ruslano69/bulkload/pkg/staging"
)

var errTransient = errors.New("Lock wait timeout exceeded")

// fakeAdapter - адаптер со сценарием ответов, пишет все запросы
type fakeAdapter struct {
	mu sync.Mutex

	// failLoads - сколько первых BulkLoad завершатся loadErr
	failLoads int
	loadErr   error
	retryable func(error) bool

	loads    []adapters.LoadRequest
	contents []string
	calls    []time.Time

	columns     []adapters.ColumnInfo
	describeErr error
	unloadData  string
	unloadErr   error
	unloads     []adapters.UnloadRequest
}

var _ adapters.Adapter = (*fakeAdapter)(nil)

func (f *fakeAdapter) Connect(ctx context.Context, cfg adapters.Config) error { return nil }
func (f *fakeAdapter) Close(ctx context.Context) error                        { return nil }
func (f *fakeAdapter) Ping(ctx context.Context) error                         { return nil }
func (f *fakeAdapter) GetDatabaseType() string                                { return "fake" }

func (f *fakeAdapter) GetDatabaseVersion(ctx context.Context) (string, error) {
	return "fake 1.0", nil
}

func (f *fakeAdapter) DescribeColumns(ctx context.Context, table string) ([]adapters.ColumnInfo, error) {
	return f.columns, f.describeErr
}

func (f *fakeAdapter) BulkLoad(ctx context.Context, req adapters.LoadRequest) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, time.Now())
	if f.failLoads > 0 {
		f.failLoads--
		return 0, f.loadErr
	}

	src, err := staging.OpenFile(req.File)
	if err != nil {
		return 0, err
	}
	defer src.Close()
	data, err := io.ReadAll(src)
	if err != nil {
		return 0, err
	}

	f.loads = append(f.loads, req)
	f.contents = append(f.contents, string(data))
	return 1, nil
}

func (f *fakeAdapter) BulkUnload(ctx context.Context, req adapters.UnloadRequest) error {
	f.unloads = append(f.unloads, req)
	if f.unloadErr != nil {
		return f.unloadErr
	}
	return os.WriteFile(req.File, []byte(f.unloadData), 0644)
}

func (f *fakeAdapter) IsRetryable(err error) bool {
	if f.retryable == nil {
		return true
	}
	return f.retryable(err)
}

// memPublisher собирает опубликованные результаты
type memPublisher struct {
	mu      sync.Mutex
	results []Result
}

func (p *memPublisher) Publish(ctx context.Context, res Result) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.results = append(p.results, res)
	return nil
}

func (p *memPublisher) last() Result {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.results[len(p.results)-1]
}
