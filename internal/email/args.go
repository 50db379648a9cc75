package email

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Args holds the process arguments, argv[0] included. Lossy is set when at
// least one argument was not valid UTF-8 and had to be repaired for display.
type Args struct {
	Values []string
	Lossy  bool
}

// NewArgs captures raw process arguments.
func NewArgs(raw []string) Args {
	args := Args{Values: make([]string, 0, len(raw))}
	for _, a := range raw {
		if !utf8.ValidString(a) {
			args.Lossy = true
			a = strings.ToValidUTF8(a, "�")
		}
		args.Values = append(args.Values, a)
	}
	return args
}

// String renders the arguments for the diagnostic report.
func (a Args) String() string {
	quoted := make([]string, 0, len(a.Values))
	for _, v := range a.Values {
		quoted = append(quoted, fmt.Sprintf("%q", v))
	}
	s := "[" + strings.Join(quoted, ", ") + "]"
	if a.Lossy {
		return "(non-utf-8) " + s
	}
	return s
}
