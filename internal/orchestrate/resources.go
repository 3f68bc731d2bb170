package orchestrate

import (
	"strconv"
	"strings"

	"lmake/internal/backend"
)

// parseResources decodes a rendered resources attribute, a whitespace
// separated list of key=value pairs ("cpu=2 mem_mb=1024 tokens=1"),
// falling back to def for any field absent or unparsable (spec §4.6
// "rsrcs" is whatever the rule's resources attribute evaluates to; this
// driver reads it as flat key=value pairs).
func parseResources(rendered string, def backend.Resources) backend.Resources {
	out := def
	for _, field := range strings.Fields(rendered) {
		key, val, ok := strings.Cut(field, "=")
		if !ok {
			continue
		}
		switch strings.ToLower(key) {
		case "cpu":
			if f, err := strconv.ParseFloat(val, 64); err == nil {
				out.CPU = f
			}
		case "mem_mb", "mem":
			if n, err := strconv.ParseInt(val, 10, 64); err == nil {
				out.MemMB = n
			}
		case "tokens":
			if n, err := strconv.Atoi(val); err == nil {
				out.Tokens = n
			}
		}
	}
	return out
}
