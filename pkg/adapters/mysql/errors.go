package mysql

import (
	"context"
	"errors"

	"github.com/go-sql-driver/mysql"
)

// Коды ошибок сервера, после которых команду стоит повторить
var retryableCodes = map[uint16]string{
	1040: "too many connections",
	1053: "server shutdown in progress",
	1205: "lock wait timeout exceeded",
	1213: "deadlock found",
	1317: "query execution was interrupted",
	3572: "lock nowait",
}

// IsRetryable отделяет временные ошибки от постоянных, если в политике
// повторов выбран режим classify: driver. Ошибки сервера повторяются только
// по кодам из retryableCodes, сетевые ошибки драйвера повторяются всегда.
func (a *Adapter) IsRetryable(err error) bool {
	return isRetryable(err)
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		_, ok := retryableCodes[mysqlErr.Number]
		return ok
	}
	return true
}
