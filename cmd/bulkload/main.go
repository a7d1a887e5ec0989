// bulkload - загрузка CSV в таблицы и выгрузка таблиц в CSV через нативные
// bulk команды СУБД (LOAD DATA, COPY).
//
// Usage:
//
//	bulkload upload   --config bulkload.yaml --table stock --input stock.csv [--ignore] [--workers 4 --chunk 100000]
//	bulkload download --config bulkload.yaml --table stock --output stock.csv
//	bulkload config init --type mysql
//	bulkload version
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ruslano69/bulkload/cmd/bulkload/commands"

	_ "github.com/ruslano69/bulkload/pkg/adapters/mysql"
	_ "github.com/ruslano69/bulkload/pkg/adapters/postgres"
	_ "github.com/ruslano69/bulkload/pkg/adapters/sqlite"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := commands.Execute(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
