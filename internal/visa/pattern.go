package visa

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// CompilePattern converts a VISA search expression into a regular expression.
//
// The expression matches the whole resource string, case-insensitively:
//   - `?` matches any one character
//   - `*` matches zero or more occurrences of the preceding character or expression
//   - `+` matches one or more occurrences of the preceding character or expression
//   - `[list]` matches any one character from the list, `[^list]` any character not in it
//   - `(exp)` groups, `exp|exp` alternates
//
// For example `?*0x0699?*::INSTR` selects any Tektronix USB instrument.
func CompilePattern(expr string) (*regexp.Regexp, error) {
	if expr == "" {
		return nil, fmt.Errorf("empty search expression")
	}

	var sb strings.Builder
	sb.WriteString("(?i)^(?:")

	runes := []rune(expr)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		switch c {
		case '?':
			sb.WriteByte('.')

		case '*', '+', '(', ')', '|':
			sb.WriteRune(c)

		case '[':
			end := slices.Index(runes[i+1:], ']')
			if end < 0 {
				return nil, fmt.Errorf("invalid search expression %q: unterminated character class", expr)
			}

			class := runes[i+1 : i+1+end]
			sb.WriteByte('[')
			if len(class) > 0 && class[0] == '^' {
				sb.WriteByte('^')
				class = class[1:]
			}
			for _, r := range class {
				if r == '-' {
					sb.WriteByte('-')
					continue
				}
				sb.WriteString(regexp.QuoteMeta(string(r)))
			}
			sb.WriteByte(']')
			i += end + 1

		default:
			sb.WriteString(regexp.QuoteMeta(string(c)))
		}
	}

	sb.WriteString(")$")

	re, err := regexp.Compile(sb.String())
	if err != nil {
		return nil, fmt.Errorf("invalid search expression %q: %w", expr, err)
	}
	return re, nil
}
