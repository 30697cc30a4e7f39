package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// Quarter is an expected handover quarter. The zero value means the
// building is already delivered.
type Quarter struct {
	Year int
	Q    int
}

func (q Quarter) IsZero() bool { return q.Year == 0 && q.Q == 0 }

func (q Quarter) Valid() bool {
	return q.IsZero() || (q.Year >= 1900 && q.Year <= 2200 && q.Q >= 1 && q.Q <= 4)
}

// Index maps a quarter onto a monotonically increasing integer line.
func (q Quarter) Index() int {
	if q.IsZero() {
		return 0
	}
	return q.Year*4 + q.Q - 1
}

func (q Quarter) Before(o Quarter) bool { return q.Index() < o.Index() }
func (q Quarter) After(o Quarter) bool  { return q.Index() > o.Index() }

func (q Quarter) String() string {
	if q.IsZero() {
		return "delivered"
	}
	return fmt.Sprintf("%d-Q%d", q.Year, q.Q)
}

// ParseQuarter accepts "2026-Q3", "2026Q3" and "delivered" (or empty).
func ParseQuarter(s string) (Quarter, error) {
	s = strings.TrimSpace(strings.ToUpper(s))
	if s == "" || s == "DELIVERED" {
		return Quarter{}, nil
	}
	s = strings.ReplaceAll(s, "-", "")
	i := strings.Index(s, "Q")
	if i <= 0 || i == len(s)-1 {
		return Quarter{}, eris.Errorf("domain: bad quarter %q", s)
	}
	year, err := strconv.Atoi(s[:i])
	if err != nil {
		return Quarter{}, eris.Wrapf(err, "domain: bad quarter year %q", s)
	}
	qn, err := strconv.Atoi(s[i+1:])
	if err != nil {
		return Quarter{}, eris.Wrapf(err, "domain: bad quarter number %q", s)
	}
	q := Quarter{Year: year, Q: qn}
	if !q.Valid() {
		return Quarter{}, eris.Errorf("domain: quarter out of range %q", s)
	}
	return q, nil
}

func (q Quarter) MarshalJSON() ([]byte, error) {
	if q.IsZero() {
		return []byte(`""`), nil
	}
	return json.Marshal(q.String())
}

func (q *Quarter) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return eris.Wrap(err, "domain: quarter must be a string")
	}
	parsed, err := ParseQuarter(s)
	if err != nil {
		return err
	}
	*q = parsed
	return nil
}
