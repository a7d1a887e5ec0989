/*
Package adapters определяет bulk интерфейс СУБД и реестр адаптеров.

Адаптер умеет три вещи: описать колонки таблицы, загрузить staged CSV файл
одной нативной командой и выгрузить колонки таблицы в CSV файл.

	MySQL:      LOAD DATA LOCAL INFILE / SELECT ... INTO OUTFILE
	PostgreSQL: COPY ... FROM STDIN через временную таблицу / COPY ... TO STDOUT
	SQLite:     эмуляция: чтение CSV + INSERT OR REPLACE в одной транзакции

Реализации регистрируются в общем реестре в init(), поэтому для
использования достаточно пустого импорта:

	import (
	    "github.com/ruslano69/bulkload/pkg/adapters"
	    _ "github.com/ruslano69/bulkload/pkg/adapters/mysql"
	)

	adapter, err := adapters.New(ctx, adapters.Config{
	    Type: "mysql",
	    DSN:  "user:pass@tcp(localhost:3306)/quotes",
	})

New принимает и привычные синонимы типа (postgresql, mariadb, sqlite3) и
возвращает адаптер с проверенным подключением.

Адаптер не держит подключение между командами: каждая команда берет
подключение из пула и возвращает его, в том числе при ошибке.
*/
package adapters
