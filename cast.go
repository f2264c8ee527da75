package actum

import (
	"encoding/json"
	"strconv"
	"time"
)

// CastType declares the type coercion applied when reading a field.
type CastType string

// Supported cast types.
const (
	CastInt       CastType = "int"
	CastFloat     CastType = "float"
	CastBool      CastType = "bool"
	CastString    CastType = "string"
	CastJSON      CastType = "json"      // array or object decoded from a JSON string
	CastDatetime  CastType = "datetime"  // time.Time
	CastTimestamp CastType = "timestamp" // unix seconds
)

// Layouts tried when parsing datetime strings, most specific first.
var datetimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// applyCast coerces v to the declared cast type. A nil value passes
// through unchanged regardless of the cast.
func applyCast(field string, cast CastType, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch cast {
	case CastInt:
		return castInt(field, v)
	case CastFloat:
		return castFloat(field, v)
	case CastBool:
		return castBool(field, v)
	case CastString:
		return castString(v), nil
	case CastJSON:
		return castJSON(field, v)
	case CastDatetime:
		return castDatetime(field, v)
	case CastTimestamp:
		t, err := castDatetime(field, v)
		if err != nil {
			return nil, err
		}
		return t.Unix(), nil
	default:
		return nil, NewCastError(field, cast, v)
	}
}

func castInt(field string, v any) (int64, error) {
	switch v := v.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case uint:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint64:
		return int64(v), nil
	case float64:
		return int64(v), nil
	case float32:
		return int64(v), nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case []byte:
		return castInt(field, string(v))
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, NewCastError(field, CastInt, v)
		}
		return n, nil
	default:
		return 0, NewCastError(field, CastInt, v)
	}
}

func castFloat(field string, v any) (float64, error) {
	switch v := v.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case int:
		return float64(v), nil
	case []byte:
		return castFloat(field, string(v))
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, NewCastError(field, CastFloat, v)
		}
		return f, nil
	default:
		return 0, NewCastError(field, CastFloat, v)
	}
}

func castBool(field string, v any) (bool, error) {
	switch v := v.(type) {
	case bool:
		return v, nil
	case int64:
		return v != 0, nil
	case int:
		return v != 0, nil
	case float64:
		return v != 0, nil
	case []byte:
		return castBool(field, string(v))
	case string:
		switch v {
		case "1", "true", "TRUE", "True":
			return true, nil
		case "0", "false", "FALSE", "False", "":
			return false, nil
		}
		return false, NewCastError(field, CastBool, v)
	default:
		return false, NewCastError(field, CastBool, v)
	}
}

func castString(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case time.Time:
		return v.Format("2006-01-02 15:04:05")
	default:
		return stringify(v)
	}
}

func castJSON(field string, v any) (any, error) {
	var raw []byte
	switch v := v.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		// Already decoded (e.g. set in memory as a map or slice).
		return v, nil
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, NewCastError(field, CastJSON, v)
	}
	return out, nil
}

func castDatetime(field string, v any) (time.Time, error) {
	switch v := v.(type) {
	case time.Time:
		return v, nil
	case int64:
		return time.Unix(v, 0).UTC(), nil
	case int:
		return time.Unix(int64(v), 0).UTC(), nil
	case []byte:
		return castDatetime(field, string(v))
	case string:
		for _, layout := range datetimeLayouts {
			if t, err := time.Parse(layout, v); err == nil {
				return t, nil
			}
		}
		return time.Time{}, NewCastError(field, CastDatetime, v)
	default:
		return time.Time{}, NewCastError(field, CastDatetime, v)
	}
}

// stringify renders a value with strconv where possible to avoid the
// reflection cost of fmt for the common scalar cases.
func stringify(v any) string {
	switch v := v.(type) {
	case int64:
		return strconv.FormatInt(v, 10)
	case int:
		return strconv.Itoa(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
