package mathexpr

import (
	"errors"
	"math"
	"testing"
)

func TestEval(t *testing.T) {
	tests := []struct {
		expr string
		want float64
	}{
		{"1 + 2", 3},
		{"2 * (3 + 4)", 14},
		{"2 * 3 ^ 2", 18},
		{"2 ^ 3 ^ 2", 512},
		{"-2 ^ 2", -4},
		{"10 % 4", 2},
		{"7 / 2", 3.5},
		{"sqrt(16) + abs(-2)", 6},
		{"2 * pi", 2 * math.Pi},
		{"SQRT(9)", 3},
		{"-5", -5},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := Eval(tt.expr)
			if err != nil {
				t.Fatalf("Eval(%q): %v", tt.expr, err)
			}
			if math.Abs(got-tt.want) > 1e-9 {
				t.Fatalf("Eval(%q) = %v, want %v", tt.expr, got, tt.want)
			}
		})
	}
}

func TestEvalRejectsSearchQueries(t *testing.T) {
	for _, q := range []string{
		"",
		"2024",
		"pi",
		"golang tutorial",
		"c++",
		"1 +",
		"(1 + 2",
		"1 / 0",
		"sqrt",
		"web 2.0",
	} {
		if _, err := Eval(q); !errors.Is(err, ErrNotExpression) {
			t.Fatalf("Eval(%q) error = %v, want ErrNotExpression", q, err)
		}
	}
}

func TestEvaluatorFormat(t *testing.T) {
	tests := map[string]string{
		"1 + 2":  "3",
		"7 / 2":  "3.5",
		"1 / 3":  "0.333333333333",
		"2 ^ 60": "1.15292150461e+18",
		"2 ^ 10": "1024",
	}
	for expr, want := range tests {
		got, err := Evaluator{}.Evaluate(expr)
		if err != nil {
			t.Fatalf("Evaluate(%q): %v", expr, err)
		}
		if got != want {
			t.Fatalf("Evaluate(%q) = %q, want %q", expr, got, want)
		}
	}
}
