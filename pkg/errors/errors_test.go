package errors

import (
	"fmt"
	"strings"
	"testing"
)

func TestNewDataError(t *testing.T) {
	tests := []struct {
		name    string
		op      string
		column  string
		reason  string
		wantMsg string
	}{
		{
			name:    "with column",
			op:      "Encode",
			column:  "aleator",
			reason:  `unknown category "PKU 3"`,
			wantMsg: `pkuir: Encode: column "aleator": unknown category "PKU 3"`,
		},
		{
			name:    "without column",
			op:      "ReadCSV",
			reason:  "empty file",
			wantMsg: "pkuir: ReadCSV: empty file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewDataError(tt.op, tt.column, tt.reason)

			if err.Error() != tt.wantMsg {
				t.Errorf("Error() = %v, want %v", err.Error(), tt.wantMsg)
			}

			// スタックトレースの存在確認
			formatted := fmt.Sprintf("%+v", err)
			if !strings.Contains(formatted, "errors_test.go") {
				t.Error("Expected stack trace to contain test file name")
			}

			var dataErr *DataError
			if !As(err, &dataErr) {
				t.Fatal("Error should be castable to *DataError")
			}
			if dataErr.Column != tt.column {
				t.Errorf("Column = %q, want %q", dataErr.Column, tt.column)
			}
		})
	}
}

func TestTrainingErrorUnwrap(t *testing.T) {
	cause := New("single class in fold")
	err := NewTrainingError("Train", 3, cause)

	if !Is(err, cause) {
		t.Error("TrainingError should unwrap to its cause")
	}
	if got := err.Error(); got != "pkuir: Train (fold 3): single class in fold" {
		t.Errorf("Error() = %q", got)
	}

	noFold := NewTrainingError("ParseParams", -1, nil)
	if got := noFold.Error(); got != "pkuir: ParseParams" {
		t.Errorf("Error() = %q", got)
	}
}

func TestTypedErrorsAreDistinct(t *testing.T) {
	errs := []error{
		NewConfigError("train.seed", "missing"),
		NewEvaluationError("roc_auc", "only one class present"),
		NewUnsupportedCohortError([]float64{0, 1, 2}),
	}

	var cfgErr *ConfigError
	var evalErr *EvaluationError
	var cohortErr *UnsupportedCohortError

	if !As(errs[0], &cfgErr) || cfgErr.Key != "train.seed" {
		t.Error("expected ConfigError for train.seed")
	}
	if As(errs[0], &evalErr) {
		t.Error("ConfigError must not match EvaluationError")
	}
	if !As(errs[1], &evalErr) || evalErr.Metric != "roc_auc" {
		t.Error("expected EvaluationError for roc_auc")
	}
	if !As(errs[2], &cohortErr) || len(cohortErr.Labels) != 3 {
		t.Error("expected UnsupportedCohortError with three labels")
	}
}

func TestRecover(t *testing.T) {
	run := func() (err error) {
		defer Recover(&err, "explode")
		panic("boom")
	}

	err := run()
	var panicErr *PanicError
	if !As(err, &panicErr) {
		t.Fatalf("expected PanicError, got %v", err)
	}
	if panicErr.Operation != "explode" || panicErr.StackTrace == "" {
		t.Errorf("unexpected panic error: %+v", panicErr)
	}

	runWithErr := func() (err error) {
		defer Recover(&err, "explode")
		err = New("first")
		panic("boom")
	}
	if err := runWithErr(); !strings.Contains(err.Error(), "panic in explode") {
		t.Errorf("expected wrapped panic, got %v", err)
	}
}
