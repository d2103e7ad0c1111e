package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		publicMsg string
		retryable bool
		detailsOK bool
	}{
		{code: CodeValidation, status: http.StatusBadRequest, publicMsg: "validation failed", detailsOK: true},
		{code: CodeUnauthorized, status: http.StatusUnauthorized, publicMsg: "authentication required"},
		{code: CodeForbidden, status: http.StatusForbidden, publicMsg: "access denied"},
		{code: CodeNotFound, status: http.StatusNotFound, publicMsg: "resource not found"},
		{code: CodeConflict, status: http.StatusConflict, publicMsg: "conflict detected"},
		{code: CodeStateConflict, status: http.StatusUnprocessableEntity, publicMsg: "payment is not in a state that allows this operation", detailsOK: true},
		{code: CodeInternal, status: http.StatusInternalServerError, publicMsg: "internal server error", retryable: true},
		{code: CodeDependency, status: http.StatusServiceUnavailable, publicMsg: "dependency unavailable", retryable: true, detailsOK: true},
		{code: CodeResourceBusy, status: http.StatusLocked, publicMsg: "payment is being processed by another request", retryable: true},
		{code: CodeConnector, status: http.StatusBadGateway, publicMsg: "connector request failed", detailsOK: true},
		{code: CodeNotImpl, status: http.StatusNotImplemented, publicMsg: "not implemented"},
		{code: CodeRateLimit, status: http.StatusTooManyRequests, publicMsg: "rate limit exceeded", retryable: true},
		{code: CodeIdempotency, status: http.StatusConflict, publicMsg: "idempotency key reused", detailsOK: true},
	}

	for _, tt := range tests {
		meta := MetadataFor(tt.code)
		if meta.HTTPStatus != tt.status {
			t.Fatalf("code %s expected status %d got %d", tt.code, tt.status, meta.HTTPStatus)
		}
		if meta.PublicMessage != tt.publicMsg {
			t.Fatalf("code %s expected public message %q got %q", tt.code, tt.publicMsg, meta.PublicMessage)
		}
		if meta.Retryable != tt.retryable {
			t.Fatalf("code %s expected retryable %v got %v", tt.code, tt.retryable, meta.Retryable)
		}
		if meta.DetailsAllowed != tt.detailsOK {
			t.Fatalf("code %s expected details allowed %v got %v", tt.code, tt.detailsOK, meta.DetailsAllowed)
		}
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	meta := MetadataFor("SOMETHING_UNKNOWN")
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal status, got %d", meta.HTTPStatus)
	}
}

func TestErrorConstructors(t *testing.T) {
	base := New(CodeValidation, "missing foo")
	if base.Code() != CodeValidation {
		t.Fatalf("expected validation code, got %s", base.Code())
	}
	if base.Message() != "missing foo" {
		t.Fatalf("unexpected message %q", base.Message())
	}
	if base.Details() != nil {
		t.Fatalf("details should be nil by default")
	}

	detail := map[string]any{"field": "foo"}
	base.WithDetails(detail)
	if base.Details() == nil {
		t.Fatalf("details should be preserved")
	}

	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeConflict, cause, "ctx")
	if !stdErrors.Is(wrapped, cause) {
		t.Fatalf("Wrap did not preserve cause")
	}
	if wrapped.Code() != CodeConflict {
		t.Fatalf("unexpected code %s", wrapped.Code())
	}
}

func TestAsReturnsTypedError(t *testing.T) {
	err := New(CodeForbidden, "no entry")
	if got := As(err); got == nil || got.Code() != CodeForbidden {
		t.Fatalf("As failed to return typed error")
	}
	if As(nil) != nil {
		t.Fatalf("As(nil) should return nil")
	}
}

func TestIsMatchesWrappedTypedError(t *testing.T) {
	err := fmt.Errorf("outer: %w", New(CodeResourceBusy, "locked"))
	if !Is(err, CodeResourceBusy) {
		t.Fatalf("expected resource busy code to be detected")
	}
	if Is(err, CodeInternal) {
		t.Fatalf("unexpected internal code match")
	}
	if Is(nil, CodeInternal) {
		t.Fatalf("nil error should never match")
	}
}

func TestNewUnexpectedStateCarriesDetails(t *testing.T) {
	err := NewUnexpectedState(UnexpectedState{
		CurrentFlow:   "capture",
		FieldName:     "payment.status",
		CurrentValue:  "succeeded",
		AllowedStates: []string{"requires_capture", "partially_captured_and_capturable"},
	})
	if err.Code() != CodeStateConflict {
		t.Fatalf("expected state conflict, got %s", err.Code())
	}
	details, ok := err.Details().(UnexpectedState)
	if !ok {
		t.Fatalf("expected UnexpectedState details, got %T", err.Details())
	}
	if len(details.AllowedStates) != 2 || details.CurrentValue != "succeeded" {
		t.Fatalf("unexpected details %+v", details)
	}
}

func TestDumpMarksSerializationFailureRetryable(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "40001", TableName: "process_tracker", Message: "could not serialize access"}
	err := Wrap(CodeInternal, fmt.Errorf("update tracker: %w", pgErr), "persist tracker")

	d := Dump(err)
	if d.PGCode != "40001" || d.PGTable != "process_tracker" {
		t.Fatalf("unexpected pg fields %+v", d)
	}
	if !d.Retryable || !IsTransientDB(err) {
		t.Fatal("serialization failures must be retryable")
	}
	if len(d.Chain) < 3 {
		t.Fatalf("expected full unwrap chain, got %v", d.Chain)
	}
}

func TestDumpUsesCodeRetryability(t *testing.T) {
	if !Dump(New(CodeResourceBusy, "locked")).Retryable {
		t.Fatal("resource busy is retryable")
	}
	if Dump(New(CodeValidation, "bad")).Retryable {
		t.Fatal("validation errors are not retryable")
	}
	if IsTransientDB(nil) {
		t.Fatal("nil is not transient")
	}
}
