package client

import (
	"fmt"

	"github.com/valyala/fastjson"

	"qsec/internal/models"
)

// parseLogs accepts every shape /blue/logs is known to return: null, an empty
// object, a single entry object, or an array of entries (newest first).
func parseLogs(body []byte) ([]models.LogEntry, error) {
	var p fastjson.Parser
	v, err := p.ParseBytes(body)
	if err != nil {
		return nil, fmt.Errorf("decode logs: %w", err)
	}
	switch v.Type() {
	case fastjson.TypeNull:
		return nil, nil
	case fastjson.TypeObject:
		if entry, ok := entryFromValue(v); ok {
			return []models.LogEntry{entry}, nil
		}
		return nil, nil
	case fastjson.TypeArray:
		items, _ := v.Array()
		out := make([]models.LogEntry, 0, len(items))
		for _, item := range items {
			if item.Type() != fastjson.TypeObject {
				return nil, fmt.Errorf("decode logs: unexpected %s in array", item.Type())
			}
			if entry, ok := entryFromValue(item); ok {
				out = append(out, entry)
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("decode logs: unexpected %s", v.Type())
	}
}

func entryFromValue(v *fastjson.Value) (models.LogEntry, bool) {
	entry := models.LogEntry{
		Timestamp: v.GetFloat64("timestamp"),
		Level:     string(v.GetStringBytes("level")),
		Source:    string(v.GetStringBytes("source")),
		Message:   string(v.GetStringBytes("message")),
	}
	return entry, !entry.IsZero()
}
