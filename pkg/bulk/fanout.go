package bulk

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/ruslano69/bulkload/pkg/adapters"
	"github.com/ruslano69/bulkload/pkg/frame"
)

// FanOut режет данные на части по chunk строк, стейджит их workers
// воркерами (у каждого свой Loader и ключ) и загружает все одним Execute.
// Ошибка любого воркера отменяет остальных и очищает область.
func FanOut(ctx context.Context, db adapters.Adapter, opts Options, data frame.Tabular, name string, chunk, workers int, callOpts ...CallOption) error {
	t := Target{Data: data, Name: name}
	f, err := t.Frame()
	if err != nil {
		return err
	}
	if workers < 1 {
		workers = 1
	}

	coordinator, err := NewLoader(db, opts)
	if err != nil {
		return err
	}

	loaders := make([]*Loader, workers)
	for i := range loaders {
		wopts := opts
		wopts.WorkerKey = fmt.Sprintf("%d_w%d", os.Getpid(), i)
		if loaders[i], err = NewLoader(db, wopts); err != nil {
			return err
		}
	}

	chunks := frame.Split(f, chunk)

	return Timed(coordinator.logger, "fan_out", func() error {
		coordinator.up.Reset()

		g, gctx := errgroup.WithContext(ctx)
		for w, loader := range loaders {
			g.Go(func() error {
				for i := w; i < len(chunks); i += workers {
					if err := loader.BatchLoadTo(gctx, chunks[i], name); err != nil {
						return fmt.Errorf("worker %d: %w", w, err)
					}
				}
				return nil
			})
		}

		if err := g.Wait(); err != nil {
			coordinator.up.Reset()
			return err
		}

		coordinator.logger.Debug().Int("chunks", len(chunks)).Int("workers", workers).Msg("staged by workers")
		return coordinator.up.Execute(ctx, callOpts...)
	})
}
