package sale

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
)

const (
	numberSeqDigits = 5
	numberSeqMax    = 99999
)

// NumberPrefix returns the monthly numbering prefix for t, e.g. "V202610".
func NumberPrefix(t time.Time) string {
	return "V" + t.Format("200601")
}

// NextNumber returns the number following last within prefix. An empty last
// starts the sequence at 1.
func NextNumber(prefix, last string) (string, error) {
	seq := 1
	if last != "" {
		if !strings.HasPrefix(last, prefix) || len(last) != len(prefix)+numberSeqDigits {
			return "", errors.Errorf("malformed sale number %q for prefix %q", last, prefix)
		}
		n, err := strconv.Atoi(last[len(prefix):])
		if err != nil {
			return "", errors.Wrapf(err, "parse sale number %q", last)
		}
		seq = n + 1
	}
	if seq > numberSeqMax {
		return "", errors.Errorf("sale sequence exhausted for %s", prefix)
	}
	return fmt.Sprintf("%s%0*d", prefix, numberSeqDigits, seq), nil
}
