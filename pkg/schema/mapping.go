package schema

import (
	"strings"

	"github.com/ruslano69/bulkload/pkg/frame"
)

// typeMapping - нативный базовый тип -> каноничный тип.
// Все, чего нет в таблице, считается текстом.
var typeMapping = map[string]frame.Type{
	"tinyint": frame.TypeTinyInt,

	"smallint": frame.TypeSmallInt,

	"mediumint": frame.TypeInt,
	"int":       frame.TypeInt,
	"integer":   frame.TypeInt,

	"bigint": frame.TypeBigInt,

	"float":   frame.TypeFloat,
	"double":  frame.TypeFloat,
	"decimal": frame.TypeFloat,
	"real":    frame.TypeFloat,
	"numeric": frame.TypeFloat,

	"time": frame.TypeDuration,

	"datetime":  frame.TypeTimestamp,
	"timestamp": frame.TypeTimestamp,
	"date":      frame.TypeTimestamp,
}

// BaseType выделяет базовый токен типа из описания СУБД:
// "char(6)" -> "char", "int(11) unsigned" -> "int",
// "double precision" -> "double"
func BaseType(native string) string {
	s := strings.ToLower(strings.TrimSpace(native))
	if i := strings.IndexAny(s, "( "); i >= 0 {
		s = s[:i]
	}
	return s
}

// DialectSQLite - тип СУБД, в которой любое целое хранится в 64 битах
const DialectSQLite = "sqlite"

// unsignedMapping - unsigned целое MySQL -> следующая ширина.
// bigint unsigned не помещается в int64 и читается как текст.
var unsignedMapping = map[frame.Type]frame.Type{
	frame.TypeTinyInt:  frame.TypeSmallInt,
	frame.TypeSmallInt: frame.TypeInt,
	frame.TypeInt:      frame.TypeBigInt,
	frame.TypeBigInt:   frame.TypeText,
}

// Canonical возвращает каноничный тип для нативного описания
func Canonical(native string) frame.Type {
	return CanonicalFor("", native)
}

// CanonicalFor возвращает каноничный тип с учетом СУБД.
//
// SQLite: по правилам affinity любой тип, содержащий "INT", хранит
// 64-битное целое. MySQL: unsigned и zerofill расширяют целое на шаг.
func CanonicalFor(dialect, native string) frame.Type {
	if dialect == DialectSQLite && strings.Contains(strings.ToLower(native), "int") {
		return frame.TypeBigInt
	}

	t, ok := typeMapping[BaseType(native)]
	if !ok {
		return frame.TypeText
	}
	if t.IsInteger() && isUnsigned(native) {
		return unsignedMapping[t]
	}
	return t
}

func isUnsigned(native string) bool {
	s := strings.ToLower(native)
	return strings.Contains(s, "unsigned") || strings.Contains(s, "zerofill")
}
