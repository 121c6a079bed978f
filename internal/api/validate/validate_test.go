package validate

import (
	"encoding/json"
	"testing"
)

func TestPositiveInt(t *testing.T) {
	tests := []struct {
		raw  string
		want int64
		ok   bool
	}{
		{`25`, 25, true},
		{`"25"`, 25, true},
		{`" 30 "`, 30, true},
		{`25.0`, 25, true},
		{`25.5`, 0, false},
		{`"25.5"`, 0, false},
		{`0`, 0, false},
		{`-3`, 0, false},
		{`"abc"`, 0, false},
		{`"NaN"`, 0, false},
		{`true`, 0, false},
		{`null`, 0, false},
		{``, 0, false},
	}
	for _, tt := range tests {
		got, ferr := PositiveInt("amount", json.RawMessage(tt.raw))
		if (ferr == nil) != tt.ok {
			t.Fatalf("%q: expected ok=%v, got err %+v", tt.raw, tt.ok, ferr)
		}
		if got != tt.want {
			t.Fatalf("%q: expected %d, got %d", tt.raw, tt.want, got)
		}
		if ferr != nil && ferr.Field != "amount" {
			t.Fatalf("%q: expected field amount, got %q", tt.raw, ferr.Field)
		}
	}
}

func TestCollect(t *testing.T) {
	if errs := Collect(nil, Required("a", "x")); errs != nil {
		t.Fatalf("expected nil, got %v", errs)
	}
	errs := Collect(Required("teamId", " "), MinInt("amount", 0, 1))
	if len(errs) != 2 {
		t.Fatalf("expected 2 errors, got %d", len(errs))
	}
	if errs.Error() != "teamId: required; amount: must be >= 1" {
		t.Fatalf("unexpected message %q", errs.Error())
	}
}
