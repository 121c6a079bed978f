package validate

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

type ErrField struct {
	Field string `json:"field"`
	Msg   string `json:"msg"`
}

type Errs []ErrField

func (e Errs) Error() string { // error interface
	var b strings.Builder
	for i, ef := range e {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(ef.Field + ": " + ef.Msg)
	}
	return b.String()
}

// Collect drops nil results; it returns nil when every check passed.
func Collect(checks ...*ErrField) Errs {
	var out Errs
	for _, c := range checks {
		if c != nil {
			out = append(out, *c)
		}
	}
	return out
}

// Helpers
func Required(field, value string) *ErrField {
	if strings.TrimSpace(value) == "" {
		return &ErrField{Field: field, Msg: "required"}
	}
	return nil
}

func MinInt(field string, v, min int64) *ErrField {
	if v < min {
		return &ErrField{Field: field, Msg: "must be >= " + strconv.FormatInt(min, 10)}
	}
	return nil
}

func MaxLen(field, value string, max int) *ErrField {
	if len(value) > max {
		return &ErrField{Field: field, Msg: "must be at most " + strconv.Itoa(max) + " characters"}
	}
	return nil
}

// PositiveInt parses a JSON number or numeric string holding a whole number
// greater than zero. "25", 25 and 25.0 are accepted; "25.5", -1, "abc" and
// absent values are not.
func PositiveInt(field string, raw json.RawMessage) (int64, *ErrField) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, &ErrField{Field: field, Msg: "required"}
	}
	s := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, &ErrField{Field: field, Msg: "must be a number"}
		}
		s = strings.TrimSpace(s)
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return 0, &ErrField{Field: field, Msg: "must be a number"}
		}
		if f != float64(int64(f)) || f > 1<<53 {
			return 0, &ErrField{Field: field, Msg: "must be a whole number"}
		}
		n = int64(f)
	}
	if n <= 0 {
		return 0, &ErrField{Field: field, Msg: "must be > 0"}
	}
	return n, nil
}
