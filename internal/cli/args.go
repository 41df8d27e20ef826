package cli

import (
	"strconv"
	"strings"

	"github.com/mesh-intelligence/crudkit/pkg/hydrate"
	"github.com/mesh-intelligence/crudkit/pkg/types"
)

// parseRecord turns either one JSON object or key=value pairs into a
// record. Values that parse as JSON keep their type; anything else is a
// string.
func parseRecord(args []string) (types.Record, error) {
	if len(args) == 1 && strings.HasPrefix(strings.TrimSpace(args[0]), "{") {
		rec, err := hydrate.Decode([]byte(args[0]))
		if err != nil {
			return nil, usagef("invalid JSON object: %w", err)
		}
		return rec, nil
	}

	rec := make(types.Record, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, usagef("invalid assignment %q (expected key=value)", arg)
		}
		parsed, err := hydrate.DecodeAny([]byte(value))
		if err != nil {
			parsed = value
		}
		rec[key] = parsed
	}
	return rec, nil
}

// parseIDs parses positive integer ids.
func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil || id <= 0 {
			return nil, usagef("invalid id %q", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
