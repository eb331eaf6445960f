package errors

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestSeverity_String(t *testing.T) {
	tests := []struct {
		severity Severity
		want     string
	}{
		{SeverityDebug, "debug"},
		{SeverityInfo, "info"},
		{SeverityWarning, "warning"},
		{SeverityError, "error"},
		{SeverityCritical, "critical"},
		{Severity(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.severity.String(); got != tt.want {
				t.Errorf("Severity.String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPhaseError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *PhaseError
		want string
	}{
		{
			name: "no context",
			err:  NewPhaseError("runner failed", nil),
			want: "phase error: runner failed",
		},
		{
			name: "full context with cause",
			err: NewPhaseError("runner failed", New("boom")).
				WithProject("p1").WithPhase("spec").WithStep("system"),
			want: "phase error [project=p1, phase=spec, step=system]: runner failed: boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCouncilError_IsCause(t *testing.T) {
	err := NewCouncilError("synthesis skipped", ErrNoEvaluations).WithProject("p1").WithRunID("r1")

	if !Is(err, ErrNoEvaluations) {
		t.Error("CouncilError should match its cause")
	}
	want := "council error [project=p1, run=r1]: synthesis skipped: no agent evaluations completed"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
	if !IsRetryable(err) {
		t.Error("council errors are retryable")
	}
}

func TestNotFoundError(t *testing.T) {
	err := NewProjectNotFound("abc")

	if err.Error() != "project 'abc' not found" {
		t.Errorf("Error() = %q", err.Error())
	}
	if !Is(err, ErrProjectNotFound) {
		t.Error("NewProjectNotFound should match ErrProjectNotFound")
	}
	if !IsNotFound(fmt.Errorf("load: %w", err)) {
		t.Error("IsNotFound should see through wrapping")
	}
	if IsRetryable(err) {
		t.Error("not-found is not retryable")
	}
}

func TestValidationError(t *testing.T) {
	err := NewValidationError("phase is not awaiting review").
		WithField("sub_state").
		WithValue("working").
		WithCause(ErrNotInReview)

	want := "validation error [field=sub_state, value=working]: phase is not awaiting review: phase is not awaiting review"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
	if !Is(err, ErrNotInReview) {
		t.Error("ValidationError should match its cause")
	}
	if !Is(err, ErrInvalidInput) {
		t.Error("ValidationError should match ErrInvalidInput")
	}
	if !IsValidation(fmt.Errorf("review: %w", err)) {
		t.Error("IsValidation should see through wrapping")
	}
	if !IsUserFacing(err) {
		t.Error("validation errors are user facing")
	}
	if GetSeverity(err) != SeverityWarning {
		t.Errorf("GetSeverity = %v, want warning", GetSeverity(err))
	}
}

func TestTimeoutError(t *testing.T) {
	err := NewTimeoutError("council deadline", 10*time.Minute)

	if err.Error() != "timeout error: council deadline (timeout: 10m0s)" {
		t.Errorf("Error() = %q", err.Error())
	}
	if !Is(err, ErrTimeout) {
		t.Error("TimeoutError should match ErrTimeout")
	}
	if !IsRetryable(err) {
		t.Error("timeouts are retryable")
	}
}

func TestRender(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"plain", errors.New(" boom \n"), "boom"},
		{"phase error drops context prefix", NewPhaseError("spec runner failed", New("timeout")).WithPhase("spec"), "spec runner failed: timeout"},
		{"phase error without cause", NewPhaseError("no panel proposed", nil), "no panel proposed"},
		{"council error drops context prefix", NewCouncilError("synthesis failed", New("bad json")).WithRunID("r1"), "synthesis failed: bad json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Render(tt.err); got != tt.want {
				t.Errorf("Render() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClassification_PlainErrors(t *testing.T) {
	plain := errors.New("x")
	if IsRetryable(plain) || IsUserFacing(plain) || IsValidation(plain) || IsNotFound(plain) {
		t.Error("plain errors should not classify")
	}
	if GetSeverity(plain) != SeverityError {
		t.Errorf("GetSeverity(plain) = %v, want error", GetSeverity(plain))
	}
	if GetSeverity(nil) != SeverityDebug {
		t.Errorf("GetSeverity(nil) = %v, want debug", GetSeverity(nil))
	}
}
