// Package logging builds the process-wide hclog logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	hclog "github.com/hashicorp/go-hclog"
)

// New returns a named root logger writing to w (stderr when nil). Unknown
// levels are rejected so config typos surface at startup.
func New(level string, json bool, w io.Writer) (hclog.Logger, error) {
	if w == nil {
		w = os.Stderr
	}
	lvl := hclog.LevelFromString(strings.TrimSpace(level))
	if lvl == hclog.NoLevel {
		return nil, fmt.Errorf("unknown log level %q", level)
	}
	return hclog.New(&hclog.LoggerOptions{
		Name:       "geoattend",
		Level:      lvl,
		Output:     w,
		JSONFormat: json,
	}), nil
}
