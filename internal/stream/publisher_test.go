package stream

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
)

func TestEncodeValue(t *testing.T) {
	cases := []struct {
		name string
		in   any
		want string
	}{
		{"string", "hello", "hello"},
		{"bytes", []byte("raw"), "raw"},
		{"int", 42, "42"},
		{"int64", int64(1700000000123), "1700000000123"},
		{"bool", true, "true"},
		{"decimal exact", decimal.RequireFromString("0.70"), "0.7"},
		{"float", 1.5, "1.5"},
	}
	for _, c := range cases {
		if got := encodeValue(c.in); got != c.want {
			t.Errorf("%s: encodeValue(%v) = %q, want %q", c.name, c.in, got, c.want)
		}
	}
}

func TestEncodeValue_JSONForComposites(t *testing.T) {
	got := encodeValue(map[string]string{"side": "BUY"})
	var decoded map[string]string
	if err := json.Unmarshal([]byte(got), &decoded); err != nil {
		t.Fatalf("map did not encode as JSON: %q (%v)", got, err)
	}
	if decoded["side"] != "BUY" {
		t.Errorf("decoded = %v", decoded)
	}

	got = encodeValue([]float64{1, 2.5})
	if got != "[1,2.5]" {
		t.Errorf("slice = %q, want [1,2.5]", got)
	}
}

func TestEncodeFields(t *testing.T) {
	fields := map[string]any{
		"symbol":     "BTC_JPY",
		"confidence": decimal.RequireFromString("0.7"),
		"indicators": map[string]float64{"rsi": 50},
	}
	out := encodeFields(fields)
	if len(out) != 3 {
		t.Fatalf("len = %d, want 3", len(out))
	}
	if out["symbol"] != "BTC_JPY" {
		t.Errorf("symbol = %v", out["symbol"])
	}
	if out["confidence"] != "0.7" {
		t.Errorf("confidence = %v", out["confidence"])
	}
	if out["indicators"] != `{"rsi":50}` {
		t.Errorf("indicators = %v", out["indicators"])
	}
}
