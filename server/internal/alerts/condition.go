package alerts

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/obsidianstack/trafficpulse/pkg/traffic"
)

// Condition is a parsed "<field> <op> <value>" rule expression.
//
// Supported fields:
//
//	critical    number of CRITICAL events
//	warning     number of WARNING events
//	normal      number of NORMAL events
//	increased   number of INCREASED events
//	total       number of scored events
//	min_score   lowest event score (never fires on a report without events)
//
// Operators: > >= < <= == !=
type Condition struct {
	Field     string
	Op        string
	Threshold float64
}

// ParseCondition parses a rule expression.
func ParseCondition(expr string) (Condition, error) {
	parts := strings.Fields(expr)
	if len(parts) != 3 {
		return Condition{}, fmt.Errorf("condition %q: want \"<field> <op> <value>\"", expr)
	}
	c := Condition{Field: parts[0], Op: parts[1]}

	switch c.Field {
	case "critical", "warning", "normal", "increased", "total", "min_score":
	default:
		return Condition{}, fmt.Errorf("condition %q: unknown field %q", expr, c.Field)
	}
	switch c.Op {
	case ">", ">=", "<", "<=", "==", "!=":
	default:
		return Condition{}, fmt.Errorf("condition %q: unknown operator %q", expr, c.Op)
	}
	v, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return Condition{}, fmt.Errorf("condition %q: value: %w", expr, err)
	}
	c.Threshold = v
	return c, nil
}

func (c Condition) String() string {
	return fmt.Sprintf("%s %s %s", c.Field, c.Op, strconv.FormatFloat(c.Threshold, 'f', -1, 64))
}

// Eval tests the condition against rep and returns the field value it saw.
func (c Condition) Eval(rep *traffic.Report) (bool, float64) {
	v, ok := reportField(c.Field, rep)
	if !ok {
		return false, 0
	}
	return compareFloat(v, c.Op, c.Threshold), v
}

// reportField maps a field name to its value in the report.
func reportField(field string, rep *traffic.Report) (float64, bool) {
	st := rep.Stats
	switch field {
	case "critical":
		return float64(st.Critical), true
	case "warning":
		return float64(st.Warning), true
	case "normal":
		return float64(st.Normal), true
	case "increased":
		return float64(st.Increased), true
	case "total":
		return float64(st.Total), true
	case "min_score":
		if len(rep.Events) == 0 {
			return 0, false
		}
		// Events are sorted ascending by score.
		return float64(rep.Events[0].Score), true
	default:
		return 0, false
	}
}

// compareFloat applies a comparison operator to two float64 values.
func compareFloat(v float64, op string, threshold float64) bool {
	switch op {
	case ">":
		return v > threshold
	case ">=":
		return v >= threshold
	case "<":
		return v < threshold
	case "<=":
		return v <= threshold
	case "==":
		return v == threshold
	case "!=":
		return v != threshold
	default:
		return false
	}
}
