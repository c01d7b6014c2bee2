package executor

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/AntonStoeckl/embedded-query-engine-go/queryengine"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var ErrInvalidFieldValue = errors.New("invalid field value")

// datetime layouts SQLite drivers store or return
var dateTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
}

// toDBValue coerces a GraphQL input value into the driver value for the field.
func toDBValue(field queryengine.Field, value any) (any, error) {
	if value == nil {
		return nil, nil
	}

	switch field.Type {
	case queryengine.ScalarString:
		if s, ok := value.(string); ok {
			return s, nil
		}

	case queryengine.ScalarInt, queryengine.ScalarBigInt:
		if i, ok := toInt64(value); ok {
			return i, nil
		}

	case queryengine.ScalarFloat:
		switch v := value.(type) {
		case float64:
			return v, nil
		case int64:
			return float64(v), nil
		case int:
			return float64(v), nil
		}

	case queryengine.ScalarBoolean:
		if b, ok := value.(bool); ok {
			return b, nil
		}

	case queryengine.ScalarDateTime:
		if s, ok := value.(string); ok {
			if t, ok := parseDateTime(s); ok {
				return t.UTC(), nil
			}
		}

	case queryengine.ScalarJSON:
		encoded, err := json.MarshalToString(value)
		if err != nil {
			return nil, errors.Join(ErrInvalidFieldValue, err)
		}

		return encoded, nil
	}

	return nil, fmt.Errorf("%w: %s expects %s, got %T", ErrInvalidFieldValue, field.Name, field.Type, value)
}

// fromDBValue turns a driver value into the JSON shape of the field.
func fromDBValue(field queryengine.Field, value any) any {
	if value == nil {
		return nil
	}

	if b, ok := value.([]byte); ok {
		value = string(b)
	}

	switch field.Type {
	case queryengine.ScalarInt:
		if i, ok := toInt64(value); ok {
			return i
		}

	case queryengine.ScalarBigInt:
		if i, ok := toInt64(value); ok {
			return strconv.FormatInt(i, 10)
		}

	case queryengine.ScalarFloat:
		switch v := value.(type) {
		case float32:
			return float64(v)
		case int64:
			return float64(v)
		}

	case queryengine.ScalarBoolean:
		if i, ok := toInt64(value); ok {
			return i != 0
		}

	case queryengine.ScalarDateTime:
		switch v := value.(type) {
		case time.Time:
			return formatDateTime(v)
		case string:
			if t, ok := parseDateTime(v); ok {
				return formatDateTime(t)
			}
		}

	case queryengine.ScalarJSON:
		if s, ok := value.(string); ok {
			var decoded any
			if err := json.UnmarshalFromString(s, &decoded); err == nil {
				return decoded
			}
		}
	}

	return value
}

// rawValue normalizes a column of a raw query, whose type is unknown.
func rawValue(value any) any {
	switch v := value.(type) {
	case []byte:
		return string(v)
	case time.Time:
		return formatDateTime(v)
	case int32:
		return int64(v)
	case float32:
		return float64(v)
	default:
		return v
	}
}

// rawParameters decodes the parameters argument of raw queries: a JSON array, as value or as encoded string.
func rawParameters(value any) ([]any, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case []any:
		return v, nil
	case string:
		var decoded []any
		if err := json.UnmarshalFromString(v, &decoded); err != nil {
			return nil, fmt.Errorf("%w: parameters must be a JSON array", ErrInvalidFieldValue)
		}

		return decoded, nil
	default:
		return nil, fmt.Errorf("%w: parameters must be a JSON array", ErrInvalidFieldValue)
	}
}

func toInt64(value any) (int64, bool) {
	switch v := value.(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case int16:
		return int64(v), true
	case float64:
		if v != math.Trunc(v) {
			return 0, false
		}

		return int64(v), true
	case bool:
		if v {
			return 1, true
		}

		return 0, true
	case string:
		i, err := strconv.ParseInt(v, 10, 64)
		return i, err == nil
	default:
		return 0, false
	}
}

func parseDateTime(value string) (time.Time, bool) {
	for _, layout := range dateTimeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}

	return time.Time{}, false
}

func formatDateTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
