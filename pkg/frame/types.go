package frame

import (
	"fmt"
	"strings"
)

// Type - каноничный тип колонки, через который согласуются типы БД
// и представление данных в памяти
type Type string

// Поддерживаемые каноничные типы
const (
	TypeTinyInt   Type = "tinyint"   // int8
	TypeSmallInt  Type = "smallint"  // int16
	TypeInt       Type = "int"       // int32
	TypeBigInt    Type = "bigint"    // int64
	TypeFloat     Type = "float"     // float64
	TypeDuration  Type = "time"      // time.Duration
	TypeTimestamp Type = "timestamp" // time.Time
	TypeText      Type = "text"      // string, тип по умолчанию
)

// AllTypes возвращает все каноничные типы в порядке объявления
func AllTypes() []Type {
	return []Type{
		TypeTinyInt, TypeSmallInt, TypeInt, TypeBigInt,
		TypeFloat, TypeDuration, TypeTimestamp, TypeText,
	}
}

// ParseType разбирает имя каноничного типа (регистр не важен)
func ParseType(s string) (Type, error) {
	t := Type(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllTypes() {
		if t == known {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown column type: %q", s)
}

// IsInteger проверяет является ли тип целочисленным
func (t Type) IsInteger() bool {
	switch t {
	case TypeTinyInt, TypeSmallInt, TypeInt, TypeBigInt:
		return true
	default:
		return false
	}
}

// IsNumeric проверяет является ли тип числовым
func (t Type) IsNumeric() bool {
	return t.IsInteger() || t == TypeFloat
}

// bitSize возвращает разрядность целочисленного типа
func (t Type) bitSize() int {
	switch t {
	case TypeTinyInt:
		return 8
	case TypeSmallInt:
		return 16
	case TypeInt:
		return 32
	default:
		return 64
	}
}
