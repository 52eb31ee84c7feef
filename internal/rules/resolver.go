package rules

import (
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/kx0101/sessioncheck/internal/models"
)

type accessor func(models.Session) Value

// legacyFields maps the dotted names rule authors use to the flat attribute
// names older API schemas return.
var legacyFields = map[string]string{
	"fps.min":             "fpsMin",
	"fps.max":             "fpsMax",
	"fps.median":          "fpsMedian",
	"fps.avg":             "fpsAvg",
	"fps.stability":       "fpsStability",
	"fps.onePercentLow":   "fpsOnePercentLow",
	"cpu.avg":             "cpuUsageAvg",
	"cpu.max":             "cpuUsageMax",
	"cpu.min":             "cpuUsageMin",
	"gpu.avg":             "gpuUsageAvg",
	"gpu.max":             "gpuUsageMax",
	"memory.avg":          "memUsageAvg",
	"memory.max":          "memUsageMax",
	"battery.first":       "firstBat",
	"battery.last":        "lastBat",
	"power.avg":           "powerAvg",
	"janks.total":         "jankCount",
	"janks.big":           "bigJankCount",
	"network.received":    "networkRxBytes",
	"network.sent":        "networkTxBytes",
	"session.id":          "id",
	"session.duration":    "timePlayed",
	"session.date":        "sessionDate",
	"session.timePushed":  "timePushed",
	"session.isActive":    "isActive",
	"session.isCharging":  "isCharging",
	"session.recordedBy":  "recordedBy",
	"app.name":            "appName",
	"app.packageName":     "packageName",
	"app.version":         "appVersion",
	"device.model":        "deviceModel",
	"device.manufacturer": "manufacturer",
}

var derivedFields = map[string]accessor{
	"battery.drain":    batteryDrain,
	"device.cpu.cores": pathAccessor("device.cpu.numCores"),
}

var aliases = buildAliases()

func buildAliases() map[string]accessor {
	table := make(map[string]accessor, len(legacyFields)+len(derivedFields))
	for path, legacy := range legacyFields {
		table[path] = pathAccessor(legacy)
	}

	for path, get := range derivedFields {
		table[path] = get
	}

	return table
}

func pathAccessor(path string) accessor {
	segments := strings.Split(path, ".")
	return func(s models.Session) Value {
		return traverse(s, segments)
	}
}

// batteryDrain is first minus last reading, so a depleting battery is
// positive. Both readings must be numeric; a blank reading counts as absent.
func batteryDrain(s models.Session) Value {
	first, ok := batteryReading(s, "firstBat")
	if !ok {
		return Missing
	}

	last, ok := batteryReading(s, "lastBat")
	if !ok {
		return Missing
	}

	return NumberValue(first - last)
}

func batteryReading(s models.Session, key string) (float64, bool) {
	v := traverse(s, []string{key})
	if v.Kind() == ValueString && strings.TrimSpace(v.str) == "" {
		return 0, false
	}

	return toNumber(v)
}

// Resolve returns the value at path inside session, or Missing. Curated
// aliases are consulted first; when an alias finds nothing the dotted path is
// walked as-is so nested schemas keep working.
func Resolve(session models.Session, path string) Value {
	if session == nil || path == "" {
		return Missing
	}

	if get, ok := aliases[path]; ok {
		if v := get(session); !v.IsMissing() {
			return v
		}
	}

	return traverse(session, strings.Split(path, "."))
}

func traverse(session models.Session, segments []string) Value {
	var current any = map[string]any(session)

	for _, segment := range segments {
		if segment == "" {
			return Missing
		}

		next, ok := step(current, segment)
		if !ok || next == nil {
			return Missing
		}

		current = next
	}

	return ValueOf(current)
}

func step(current any, segment string) (any, bool) {
	switch node := current.(type) {
	case map[string]any:
		v, ok := node[segment]
		return v, ok
	case models.Session:
		v, ok := node[segment]
		return v, ok
	case []any:
		idx, err := strconv.Atoi(segment)
		if err != nil || idx < 0 || idx >= len(node) {
			return nil, false
		}

		return node[idx], true
	}

	rv := reflect.ValueOf(current)
	if rv.Kind() == reflect.Map && rv.Type().Key().Kind() == reflect.String {
		v := rv.MapIndex(reflect.ValueOf(segment).Convert(rv.Type().Key()))
		if !v.IsValid() {
			return nil, false
		}

		return v.Interface(), true
	}

	return nil, false
}

// LegacyName reports the flat attribute a curated path maps to.
func LegacyName(path string) (string, bool) {
	legacy, ok := legacyFields[path]
	return legacy, ok
}

// KnownFields lists every curated path, sorted.
func KnownFields() []string {
	fields := make([]string, 0, len(aliases))
	for path := range aliases {
		fields = append(fields, path)
	}

	sort.Strings(fields)

	return fields
}
