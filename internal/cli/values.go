package cli

import (
	"fmt"
	"strconv"
	"strings"
)

// parseAssignments turns col=value arguments into a column map.
func parseAssignments(args []string) (map[string]any, error) {
	values := make(map[string]any, len(args))
	for _, arg := range args {
		col, raw, ok := strings.Cut(arg, "=")
		if !ok || col == "" {
			return nil, fmt.Errorf("invalid assignment %q: want col=value", arg)
		}
		if _, dup := values[col]; dup {
			return nil, fmt.Errorf("column %q assigned twice", col)
		}
		values[col] = parseValue(raw)
	}
	return values, nil
}

// parseValue converts a command line value: "null" is nil, integers and
// floats become numbers, quoted text is unquoted, anything else is a string.
func parseValue(raw string) any {
	if raw == "null" {
		return nil
	}
	if len(raw) >= 2 {
		if q := raw[0]; (q == '\'' || q == '"') && raw[len(raw)-1] == q {
			return raw[1 : len(raw)-1]
		}
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n
	}
	if strings.ContainsAny(raw, ".eE") {
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return f
		}
	}
	return raw
}
