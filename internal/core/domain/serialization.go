package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Serialization tags how a record's Value must be decoded on read.
// The numeric codes are persisted and must never be renumbered.
type Serialization int

const (
	SerializationString Serialization = iota
	SerializationInt
	SerializationBoolean
	SerializationDouble
	SerializationLong
	SerializationJSONObject
	SerializationJSONArray
	SerializationStringArray
	SerializationIntArray
	SerializationBooleanArray
	SerializationDoubleArray
	SerializationLongArray
)

var serializationNames = [...]string{
	SerializationString:       "STRING",
	SerializationInt:          "INT",
	SerializationBoolean:      "BOOLEAN",
	SerializationDouble:       "DOUBLE",
	SerializationLong:         "LONG",
	SerializationJSONObject:   "JSON_OBJECT",
	SerializationJSONArray:    "JSON_ARRAY",
	SerializationStringArray:  "STRING_ARRAY",
	SerializationIntArray:     "INT_ARRAY",
	SerializationBooleanArray: "BOOLEAN_ARRAY",
	SerializationDoubleArray:  "DOUBLE_ARRAY",
	SerializationLongArray:    "LONG_ARRAY",
}

// Code returns the persisted integer code.
func (s Serialization) Code() int { return int(s) }

// Valid reports whether s is a known serialization.
func (s Serialization) Valid() bool {
	return s >= SerializationString && int(s) < len(serializationNames)
}

// String implements fmt.Stringer.
func (s Serialization) String() string {
	if !s.Valid() {
		return fmt.Sprintf("Serialization(%d)", int(s))
	}
	return serializationNames[s]
}

// SerializationFromCode maps a persisted code to a Serialization. Unknown
// codes fall back to STRING and report ok == false.
func SerializationFromCode(code int) (s Serialization, ok bool) {
	s = Serialization(code)
	if !s.Valid() {
		return SerializationString, false
	}
	return s, true
}

// ParseSerialization parses a serialization name such as "INT" or "json_object".
func ParseSerialization(name string) (Serialization, error) {
	for i, n := range serializationNames {
		if strings.EqualFold(n, name) {
			return Serialization(i), nil
		}
	}
	return SerializationString, ErrInvalidArgument.WithDetails(fmt.Sprintf("unknown serialization %q", name))
}

// Decode converts a stored payload into a Go value according to s:
// string, int, bool, float64, int64, map[string]any, []any, []string,
// []int, []bool, []float64 or []int64.
func (s Serialization) Decode(value string) (any, error) {
	var (
		v   any
		err error
	)
	switch s {
	case SerializationString:
		return value, nil
	case SerializationInt:
		v, err = strconv.Atoi(value)
	case SerializationBoolean:
		v, err = strconv.ParseBool(value)
	case SerializationDouble:
		v, err = strconv.ParseFloat(value, 64)
	case SerializationLong:
		v, err = strconv.ParseInt(value, 10, 64)
	case SerializationJSONObject:
		v, err = decodeJSON[map[string]any](value)
	case SerializationJSONArray:
		v, err = decodeJSON[[]any](value)
	case SerializationStringArray:
		v, err = decodeJSON[[]string](value)
	case SerializationIntArray:
		v, err = decodeJSON[[]int](value)
	case SerializationBooleanArray:
		v, err = decodeJSON[[]bool](value)
	case SerializationDoubleArray:
		v, err = decodeJSON[[]float64](value)
	case SerializationLongArray:
		v, err = decodeJSON[[]int64](value)
	default:
		return value, nil
	}
	if err != nil {
		return nil, ErrMalformedRecord.WithDetails(fmt.Sprintf("decode %s", s)).WithCause(err)
	}
	return v, nil
}

func decodeJSON[T any](value string) (T, error) {
	var out T
	err := json.Unmarshal([]byte(value), &out)
	return out, err
}

// EncodeValue serializes a Go value and reports the Serialization it maps
// to. Supported types mirror Decode.
func EncodeValue(v any) (string, Serialization, error) {
	switch x := v.(type) {
	case string:
		return x, SerializationString, nil
	case int:
		return strconv.Itoa(x), SerializationInt, nil
	case int32:
		return strconv.FormatInt(int64(x), 10), SerializationInt, nil
	case bool:
		return strconv.FormatBool(x), SerializationBoolean, nil
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64), SerializationDouble, nil
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32), SerializationDouble, nil
	case int64:
		return strconv.FormatInt(x, 10), SerializationLong, nil
	case map[string]any:
		return encodeJSON(x, SerializationJSONObject)
	case []any:
		return encodeJSON(x, SerializationJSONArray)
	case []string:
		return encodeJSON(x, SerializationStringArray)
	case []int:
		return encodeJSON(x, SerializationIntArray)
	case []bool:
		return encodeJSON(x, SerializationBooleanArray)
	case []float64:
		return encodeJSON(x, SerializationDoubleArray)
	case []int64:
		return encodeJSON(x, SerializationLongArray)
	default:
		return "", SerializationString, ErrInvalidArgument.WithDetails(fmt.Sprintf("unsupported value type %T", v))
	}
}

func encodeJSON(v any, s Serialization) (string, Serialization, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", s, ErrInvalidArgument.WithDetails(fmt.Sprintf("encode %s", s)).WithCause(err)
	}
	return string(data), s, nil
}
