// Package bulk перемещает таблицы между фреймами в памяти и СУБД через
// нативный bulk загрузчик (LOAD DATA, COPY) вместо построчных INSERT.
//
// Загрузка проходит через staging каталог:
//
//	<base>/__tmp__to__<name>/<worker key>/<table>.csv
//	<base>/__tmp__to__<name>/str_columns
//
// Stage дописывает строки в файл своего воркера, Execute загружает все
// накопленные файлы одной командой на файл и удаляет каталог.
// Выгрузка пишет файл в __tmp_from__<name>/<worker key>/ и читает его во фрейм
// с типами колонок из живой схемы.
//
// Пример:
//
//	loader, err := bulk.NewLoader(db, bulk.DefaultOptions())
//	if err != nil {
//		return err
//	}
//	if err := loader.LoadTo(ctx, stock, "stock"); err != nil {
//		return err
//	}
//	df, err := loader.LoadFrom(ctx, "stock")
//
// Несколько воркеров со своими Loader (разные worker key) вызывают
// BatchLoadTo, после чего координатор один раз вызывает Execute.
package bulk
