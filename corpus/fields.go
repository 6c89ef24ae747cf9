package corpus

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ErrBadLine marks a line that does not have the layout its task expects.
// Builders skip such lines.
var ErrBadLine = errors.New("malformed line")

// ParseLabeled splits a `label<TAB>text` line. Extra tab-separated columns
// are ignored.
func ParseLabeled(line string) (int, string, error) {
	fields := strings.Split(strings.TrimSpace(line), "\t")
	if len(fields) < 2 {
		return 0, "", errors.Wrap(ErrBadLine, "expected label<TAB>text")
	}
	label, err := strconv.Atoi(strings.TrimSpace(fields[0]))
	if err != nil {
		return 0, "", errors.Wrapf(ErrBadLine, "label %q", fields[0])
	}
	return label, fields[1], nil
}

// ParsePair splits a source/target line. A tab separates the two sides when
// present; otherwise the line must hold exactly two whitespace-separated
// fields.
func ParsePair(line string) (string, string, error) {
	line = strings.TrimSpace(line)
	if src, tgt, ok := strings.Cut(line, "\t"); ok {
		src, tgt = strings.TrimSpace(src), strings.TrimSpace(tgt)
		if src == "" || tgt == "" {
			return "", "", errors.Wrap(ErrBadLine, "empty side")
		}
		return src, tgt, nil
	}
	fields := strings.Fields(line)
	if len(fields) != 2 {
		return "", "", errors.Wrapf(ErrBadLine,
			"expected 2 fields, found %d", len(fields))
	}
	return fields[0], fields[1], nil
}
