package storage

import (
	"database/sql"
	"fmt"
	"strconv"
	"time"
)

// Property values are stored as text tagged with their kind
const (
	kindNull   = "null"
	kindString = "string"
	kindInt    = "int"
	kindBool   = "bool"
	kindTime   = "time"
)

func encodeValue(v any) (string, sql.NullString, error) {
	switch val := v.(type) {
	case nil:
		return kindNull, sql.NullString{}, nil
	case string:
		return kindString, sql.NullString{String: val, Valid: true}, nil
	case int:
		return kindInt, sql.NullString{String: strconv.Itoa(val), Valid: true}, nil
	case int32:
		return kindInt, sql.NullString{String: strconv.FormatInt(int64(val), 10), Valid: true}, nil
	case int64:
		return kindInt, sql.NullString{String: strconv.FormatInt(val, 10), Valid: true}, nil
	case bool:
		return kindBool, sql.NullString{String: strconv.FormatBool(val), Valid: true}, nil
	case time.Time:
		return kindTime, sql.NullString{String: val.UTC().Format(time.RFC3339Nano), Valid: true}, nil
	default:
		return "", sql.NullString{}, fmt.Errorf("unsupported property type %T", v)
	}
}

func decodeValue(kind string, value sql.NullString) (any, error) {
	switch kind {
	case kindNull:
		return nil, nil
	case kindString:
		return value.String, nil
	case kindInt:
		return strconv.ParseInt(value.String, 10, 64)
	case kindBool:
		return strconv.ParseBool(value.String)
	case kindTime:
		return time.Parse(time.RFC3339Nano, value.String)
	default:
		return nil, fmt.Errorf("unknown property kind %q", kind)
	}
}

// uniqueValue is the representation stored in unique_keys
func uniqueValue(kind string, value sql.NullString) string {
	return kind + ":" + value.String
}
