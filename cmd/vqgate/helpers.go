package main

import (
	"cmp"
	"fmt"
	"maps"
	"slices"
	"strings"

	"vqgate/internal/services"
)

func sortedKeys[K cmp.Ordered, V any](m map[K]V) []K {
	return slices.Sorted(maps.Keys(m))
}

// videoMap validates scenario=path flag pairs.
func videoMap(flag string, raw map[string]string) (map[string]string, error) {
	if len(raw) == 0 {
		return nil, services.Wrap(services.ErrValidation, "cli", flag, fmt.Sprintf("at least one --%s scenario=path is required", flag), nil)
	}
	out := make(map[string]string, len(raw))
	for id, path := range raw {
		id, path = strings.TrimSpace(id), strings.TrimSpace(path)
		if id == "" || path == "" {
			return nil, services.Wrap(services.ErrValidation, "cli", flag, fmt.Sprintf("invalid --%s value %q=%q", flag, id, path), nil)
		}
		out[id] = path
	}
	return out, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
