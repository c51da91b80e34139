// Package duration parses the short human durations accepted in service and
// healthcheck configuration ("2s", "500ms", "1m", "1h") into millisecond counts.
package duration

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/captjt/devproc/internal/domain/apperr"
)

// pattern matches an unsigned integer followed by one of the accepted units.
var pattern = regexp.MustCompile(`^(\d+)(ms|s|m|h)$`)

// unitMillis maps each accepted unit suffix to its millisecond multiplier.
var unitMillis = map[string]int64{
	"ms": 1,
	"s":  1000,
	"m":  60 * 1000,
	"h":  60 * 60 * 1000,
}

// ParseMillis parses a duration string into a millisecond count.
//
// Params:
//   - s: the duration string, e.g. "500ms", "2s", "1m", "1h".
//
// Returns:
//   - int64: the duration in milliseconds.
//   - error: apperr.ErrInvalidConfig if s does not match the accepted grammar.
func ParseMillis(s string) (int64, error) {
	m := pattern.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("%w: invalid duration %q, want e.g. \"2s\", \"500ms\", \"1m\", \"1h\"", apperr.ErrInvalidConfig, s)
	}

	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		// The regexp already guarantees digits only; this only trips on overflow.
		return 0, fmt.Errorf("%w: duration %q out of range", apperr.ErrInvalidConfig, s)
	}

	return n * unitMillis[m[2]], nil
}
