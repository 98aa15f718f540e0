package remoteconfig

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/goliatone/go-authgate"
)

var truthy = map[string]bool{
	"1": true, "true": true, "t": true, "yes": true, "y": true, "on": true,
}

// Value is a single remote config value with its source.
type Value struct {
	raw    string
	source authgate.ValueSource
}

var _ authgate.ConfigValue = Value{}

// NewValue builds a value.
func NewValue(raw string, source authgate.ValueSource) Value {
	return Value{raw: raw, source: source}
}

func (v Value) AsString() string {
	return v.raw
}

// AsBoolean treats 1, true, t, yes, y and on as true, case insensitive.
func (v Value) AsBoolean() bool {
	return truthy[strings.ToLower(strings.TrimSpace(v.raw))]
}

// AsNumber returns 0 for values that do not parse.
func (v Value) AsNumber() float64 {
	n, err := strconv.ParseFloat(strings.TrimSpace(v.raw), 64)
	if err != nil {
		return 0
	}
	return n
}

func (v Value) Source() authgate.ValueSource {
	return v.source
}

func stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}
