package utils

import (
	"fmt"
	"time"
)

// time.go - работа с торговым днем
//
// Дневные лимиты и агрегаты PnL считаются по календарному дню UTC:
// БД и площадка живут в UTC, локальная таймзона процесса не должна
// влиять на границы дня.

// DayStartUTC возвращает начало дня UTC для момента t
func DayStartUTC(t time.Time) time.Time {
	return t.UTC().Truncate(24 * time.Hour)
}

// FormatDuration форматирует длительность в человекочитаемый вид:
// "2h 15m", "45s", "350ms".
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = -d
	}

	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.0fs", d.Seconds())
	case d < time.Hour:
		m := int(d.Minutes())
		s := int(d.Seconds()) - m*60
		if s == 0 {
			return fmt.Sprintf("%dm", m)
		}
		return fmt.Sprintf("%dm %ds", m, s)
	default:
		h := int(d.Hours())
		m := int(d.Minutes()) - h*60
		if m == 0 {
			return fmt.Sprintf("%dh", h)
		}
		return fmt.Sprintf("%dh %dm", h, m)
	}
}
