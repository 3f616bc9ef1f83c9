// Package numeric normalizes the free-text numeric columns produced by the
// import scripts ("1,200", "12.5", " 3 400 ").
package numeric

import (
	"math"
	"regexp"
	"strings"
	"sync/atomic"

	"github.com/spf13/cast"
)

var digitsOnly = regexp.MustCompile(`^[0-9.,]+$`)

var spaces = strings.NewReplacer(" ", "", "\u00a0", "", "\u202f", "")

// Parse returns the cleaned value and true, or 0 and false when the text is
// empty or not a plain non-negative decimal.
func Parse(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}
	s = spaces.Replace(s)
	if !digitsOnly.MatchString(s) {
		return 0, false
	}
	v, err := cast.ToFloat64E(strings.ReplaceAll(s, ",", ""))
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// Tally counts values skipped by Parse. Safe for concurrent use.
type Tally struct {
	skipped atomic.Int64
}

// Parse behaves like the package-level Parse and counts rejects.
func (t *Tally) Parse(raw string) (float64, bool) {
	v, ok := Parse(raw)
	if !ok && t != nil {
		t.skipped.Add(1)
	}
	return v, ok
}

func (t *Tally) Skipped() int64 {
	if t == nil {
		return 0
	}
	return t.skipped.Load()
}
