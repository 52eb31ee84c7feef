package rules

import (
	"encoding/json"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"
)

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func toNumber(v Value) (float64, bool) {
	var f float64

	switch v.kind {
	case ValueNumber:
		f = v.num
	case ValueBool:
		if v.b {
			f = 1
		}
	case ValueString:
		s := strings.TrimSpace(v.str)
		if s == "" {
			return 0, true
		}

		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}

		f = parsed
	case ValueDate:
		f = float64(v.t.UnixMilli())
	default:
		return 0, false
	}

	if math.IsNaN(f) {
		return 0, false
	}

	return f, true
}

func toString(v Value) string {
	switch v.kind {
	case ValueString:
		return v.str
	case ValueNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case ValueBool:
		return strconv.FormatBool(v.b)
	case ValueDate:
		return v.t.Format(time.RFC3339)
	case ValueOther:
		data, err := json.Marshal(v.raw)
		if err != nil {
			return ""
		}

		return string(data)
	default:
		return ""
	}
}

// truthy follows the usual dynamic-language rules: any non-empty string is
// true, including "false".
func truthy(v Value) bool {
	switch v.kind {
	case ValueBool:
		return v.b
	case ValueNumber:
		return v.num != 0 && !math.IsNaN(v.num)
	case ValueString:
		return v.str != ""
	case ValueDate, ValueOther:
		return true
	default:
		return false
	}
}

func toTime(v Value) (time.Time, bool) {
	switch v.kind {
	case ValueDate:
		return v.t, true
	case ValueNumber:
		if math.IsNaN(v.num) || math.IsInf(v.num, 0) {
			return time.Time{}, false
		}

		return time.UnixMilli(int64(v.num)).UTC(), true
	case ValueString:
		return parseDate(v.str)
	default:
		return time.Time{}, false
	}
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}

	return time.Time{}, false
}

// bounds destructures a [min, max] pair from a rule value.
func bounds(v any) (Value, Value, bool) {
	if v == nil {
		return Missing, Missing, false
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return Missing, Missing, false
	}

	if rv.Len() != 2 {
		return Missing, Missing, false
	}

	return ValueOf(rv.Index(0).Interface()), ValueOf(rv.Index(1).Interface()), true
}

func isTuple(v any) bool {
	if v == nil {
		return false
	}

	kind := reflect.ValueOf(v).Kind()

	return kind == reflect.Slice || kind == reflect.Array
}
