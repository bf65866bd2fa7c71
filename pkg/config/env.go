package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ToolEnvPrefix namespaces the settings read by the CLI and the scripts,
// which sit outside the App configuration loaded by Load.
const ToolEnvPrefix = "FX_"

func toolValue(name string) string {
	return strings.TrimSpace(os.Getenv(ToolEnvPrefix + name))
}

// ToolEnv returns FX_<name>, or def when it is unset or blank.
func ToolEnv(name, def string) string {
	if v := toolValue(name); v != "" {
		return v
	}
	return def
}

// ToolDuration parses FX_<name> as a duration. A value that does not parse
// is an error rather than a silent fallback to def.
func ToolDuration(name string, def time.Duration) (time.Duration, error) {
	v := toolValue(name)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s%s: %w", ErrInvalidConfig, ToolEnvPrefix, name, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%w: %s%s must be positive", ErrInvalidConfig, ToolEnvPrefix, name)
	}
	return d, nil
}

// ToolFlag reports whether FX_<name> holds a true boolean.
func ToolFlag(name string) bool {
	b, err := strconv.ParseBool(toolValue(name))
	return err == nil && b
}

// ToolList splits FX_<name> on commas, dropping blank items. def is used
// when nothing is left.
func ToolList(name string, def ...string) []string {
	var out []string
	for _, item := range strings.Split(toolValue(name), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
