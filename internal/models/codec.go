package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// timestampLayout пишет микросекунды и числовой сдвиг, такую запись читают и старые клиенты хранилища.
const timestampLayout = "2006-01-02T15:04:05.999999-07:00"

// записи без зоны трактуются как локальное время
var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// ParseTimestamp разбирает ISO-8601 строку. Пустая строка означает отсутствие значения.
func ParseTimestamp(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return &t, nil
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("models: unrecognized timestamp %q", s)
}

// FormatTimestamp записывает время в формате хранилища, nil превращается в пустую строку.
func FormatTimestamp(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(timestampLayout)
}

// stamp хранит разобранное время и исходную строку, если ее не удалось разобрать.
type stamp struct {
	t   *time.Time
	raw string
}

func decodeStamp(s string) stamp {
	t, err := ParseTimestamp(s)
	if err != nil {
		return stamp{raw: s}
	}
	return stamp{t: t}
}

func (s stamp) encode() string {
	if s.t != nil {
		return FormatTimestamp(s.t)
	}
	return s.raw
}

// splitExtra возвращает поля объекта, не входящие в known.
func splitExtra(data []byte, known ...string) (map[string]json.RawMessage, error) {
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, err
	}
	for _, k := range known {
		delete(all, k)
	}
	if len(all) == 0 {
		return nil, nil
	}
	return all, nil
}

// mergeExtra сериализует v и дописывает к объекту неизвестные поля.
func mergeExtra(v any, extra map[string]json.RawMessage) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil || len(extra) == 0 {
		return data, err
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, err
	}
	for k, raw := range extra {
		if _, ok := obj[k]; !ok {
			obj[k] = raw
		}
	}
	return json.Marshal(obj)
}
