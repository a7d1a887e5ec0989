package frame

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// TimestampLayout - формат записи временных меток в staging файлы
const TimestampLayout = "2006-01-02 15:04:05"

// timestampLayouts - форматы, которые принимаются при разборе временных меток.
// Дробная часть ".999999999" опциональна при разборе.
var timestampLayouts = []string{
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05.999999999-07",
	"2006-01-02 15:04:05.999999999-07:00",
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
}

// IsMissing проверяет является ли значение пропущенным.
// nil и NaN считаются пропуском.
func IsMissing(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case float64:
		return math.IsNaN(x)
	case float32:
		return math.IsNaN(float64(x))
	default:
		return false
	}
}

// Format конвертирует значение в текст для staging файла.
// Пропущенное значение заменяется на missing.
func Format(v any, missing string) string {
	if IsMissing(v) {
		return missing
	}

	switch x := v.(type) {
	case string:
		return x
	case []byte:
		return string(x)
	case bool:
		if x {
			return "1"
		}
		return "0"
	case int:
		return strconv.FormatInt(int64(x), 10)
	case int8:
		return strconv.FormatInt(int64(x), 10)
	case int16:
		return strconv.FormatInt(int64(x), 10)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case int64:
		return strconv.FormatInt(x, 10)
	case uint:
		return strconv.FormatUint(uint64(x), 10)
	case uint8:
		return strconv.FormatUint(uint64(x), 10)
	case uint16:
		return strconv.FormatUint(uint64(x), 10)
	case uint32:
		return strconv.FormatUint(uint64(x), 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case time.Time:
		return formatTimestamp(x)
	case time.Duration:
		return formatDuration(x)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

// formatTimestamp пишет момент времени в UTC: выгрузка читается как UTC
func formatTimestamp(t time.Time) string {
	t = t.UTC()
	if t.Nanosecond() == 0 {
		return t.Format(TimestampLayout)
	}
	return t.Format(TimestampLayout + ".000000")
}

// formatDuration пишет длительность в формате MySQL TIME: [-]HH:MM:SS[.ffffff]
func formatDuration(d time.Duration) string {
	sign := ""
	if d < 0 {
		sign = "-"
		d = -d
	}
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second
	d -= s * time.Second

	out := fmt.Sprintf("%s%02d:%02d:%02d", sign, h, m, s)
	if micros := d / time.Microsecond; micros > 0 {
		out += fmt.Sprintf(".%06d", micros)
	}
	return out
}

// Parse разбирает текстовое значение в значение каноничного типа.
// Пустая строка дает пропуск (nil) для любого типа.
func Parse(s string, t Type) (any, error) {
	if s == "" {
		return nil, nil
	}

	switch t {
	case TypeTinyInt, TypeSmallInt, TypeInt, TypeBigInt:
		n, err := strconv.ParseInt(strings.TrimSpace(s), 10, t.bitSize())
		if err != nil {
			return nil, fmt.Errorf("parse %s %q: %w", t, s, err)
		}
		switch t {
		case TypeTinyInt:
			return int8(n), nil
		case TypeSmallInt:
			return int16(n), nil
		case TypeInt:
			return int32(n), nil
		default:
			return n, nil
		}

	case TypeFloat:
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return nil, fmt.Errorf("parse %s %q: %w", t, s, err)
		}
		return f, nil

	case TypeTimestamp:
		return parseTimestamp(s)

	case TypeDuration:
		return parseDuration(s)

	case TypeText, "":
		return s, nil

	default:
		return nil, fmt.Errorf("unknown column type: %q", t)
	}
}

func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("parse timestamp %q: unsupported format", s)
}

// parseDuration разбирает [-]H+:MM:SS[.f+]
func parseDuration(s string) (time.Duration, error) {
	raw := strings.TrimSpace(s)
	neg := strings.HasPrefix(raw, "-")
	raw = strings.TrimPrefix(raw, "-")

	parts := strings.Split(raw, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("parse time %q: expected HH:MM:SS", s)
	}

	h, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse time %q: %w", s, err)
	}
	m, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse time %q: %w", s, err)
	}
	sec, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return 0, fmt.Errorf("parse time %q: %w", s, err)
	}

	d := time.Duration(h)*time.Hour + time.Duration(m)*time.Minute +
		time.Duration(math.Round(sec*1e6))*time.Microsecond
	if neg {
		d = -d
	}
	return d, nil
}
