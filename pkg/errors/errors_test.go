package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		publicMsg string
		retryable bool
		detailsOK bool
	}{
		{code: CodeValidation, status: http.StatusBadRequest, publicMsg: "ongeldige invoer", detailsOK: true},
		{code: CodeUnauthorized, status: http.StatusUnauthorized, publicMsg: "niet ingelogd"},
		{code: CodeForbidden, status: http.StatusForbidden, publicMsg: "geen toegang"},
		{code: CodeNotFound, status: http.StatusNotFound, publicMsg: "niet gevonden"},
		{code: CodeConflict, status: http.StatusConflict, publicMsg: "bestaat al"},
		{code: CodeGone, status: http.StatusGone, publicMsg: "verlopen"},
		{code: CodeStateConflict, status: http.StatusUnprocessableEntity, publicMsg: "statuswijziging niet toegestaan", detailsOK: true},
		{code: CodeInternal, status: http.StatusInternalServerError, publicMsg: "interne serverfout", retryable: true},
		{code: CodeDependency, status: http.StatusServiceUnavailable, publicMsg: "dienst tijdelijk niet beschikbaar", retryable: true, detailsOK: true},
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

func TestClassificationHelpers(t *testing.T) {
	wrapped := fmt.Errorf("submit review: %w", New(CodeGone, "link verlopen"))
	if !Is(wrapped, CodeGone) {
		t.Fatalf("Is should see through fmt wrapping")
	}
	if Is(wrapped, CodeNotFound) {
		t.Fatalf("Is matched the wrong code")
	}
	if CodeOf(stdErrors.New("plain")) != CodeInternal {
		t.Fatalf("untyped errors should classify as internal")
	}
	if IsRetryable(wrapped) {
		t.Fatalf("gone is not retryable")
	}
	if !IsRetryable(stdErrors.New("connection reset")) {
		t.Fatalf("untyped errors are treated as internal and retryable")
	}
	if IsRetryable(nil) {
		t.Fatalf("nil is not retryable")
	}
}

func TestErrorStringIncludesCause(t *testing.T) {
	err := Wrap(CodeDependency, stdErrors.New("dial tcp: refused"), "redis niet bereikbaar")
	if got := err.Error(); got != "DEPENDENCY_ERROR: redis niet bereikbaar: dial tcp: refused" {
		t.Fatalf("unexpected error string %q", got)
	}
	if got := Newf(CodeValidation, "rating %d ongeldig", 7).Message(); got != "rating 7 ongeldig" {
		t.Fatalf("unexpected message %q", got)
	}
}
