package config

import (
	"strconv"
	"strings"
)

// parseBool accepts the spellings found in deployed config files.
func parseBool(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "y", "true", "on", "1":
		return true, true
	case "no", "n", "false", "off", "0":
		return false, true
	}
	return false, false
}

func parseInt(s string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, false
	}
	return n, true
}

// parseModuleList splits a comma-separated module filter into a set.
func parseModuleList(s string) map[string]struct{} {
	mods := make(map[string]struct{})
	for _, m := range strings.Split(s, ",") {
		m = strings.TrimSpace(m)
		if m != "" {
			mods[m] = struct{}{}
		}
	}
	return mods
}
