// Package spawner tokenizes a service's command string into the argv that
// the supervisor hands to the process.Executor port (§4.D); the launch
// itself happens in the supervisor.
package spawner

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/captjt/devproc/internal/domain/apperr"
)

// Tokenize splits cmd on unquoted whitespace, respecting single and double
// quotes. It does not interpret backslash escapes or perform environment
// expansion — a deliberate scope limit (§4.D); a service that needs shell
// semantics should invoke a shell explicitly, e.g. `bash -c "..."`.
func Tokenize(cmd string) ([]string, error) {
	var tokens []string
	var cur strings.Builder
	inToken := false
	var quote rune

	flush := func() {
		if inToken {
			tokens = append(tokens, cur.String())
			cur.Reset()
			inToken = false
		}
	}

	for _, r := range cmd {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				cur.WriteRune(r)
			}
		case r == '\'' || r == '"':
			quote = r
			inToken = true
		case unicode.IsSpace(r):
			flush()
		default:
			inToken = true
			cur.WriteRune(r)
		}
	}

	if quote != 0 {
		return nil, fmt.Errorf("%w: unterminated %c quote in command %q", apperr.ErrInvalidConfig, quote, cmd)
	}
	flush()

	if len(tokens) == 0 {
		return nil, fmt.Errorf("%w: empty command", apperr.ErrInvalidConfig)
	}
	return tokens, nil
}
