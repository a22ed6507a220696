package translate

import (
	"errors"
	"strings"
	"testing"
)

func TestStatusError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err       *StatusError
		wantMsg   string
		retryable bool
	}{
		{&StatusError{Provider: "google", Code: 403}, "translate: google: status 403", false},
		{&StatusError{Provider: "deepl", Code: 429, Body: "slow down"}, "translate: deepl: status 429: slow down", true},
		{&StatusError{Provider: "gtx", Code: 503}, "translate: gtx: status 503", true},
	}
	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.wantMsg {
			t.Errorf("Error() = %q, want %q", got, tt.wantMsg)
		}
		if got := tt.err.Retryable(); got != tt.retryable {
			t.Errorf("%d Retryable() = %v, want %v", tt.err.Code, got, tt.retryable)
		}
	}

	var wrapped error = errors.Join(errors.New("outer"), &StatusError{Provider: "x", Code: 500})
	var se *StatusError
	if !errors.As(wrapped, &se) || se.Code != 500 {
		t.Errorf("errors.As did not find StatusError in %v", wrapped)
	}
	if !strings.Contains(wrapped.Error(), "status 500") {
		t.Errorf("wrapped message = %q", wrapped.Error())
	}
}

func TestSourceOrAuto(t *testing.T) {
	t.Parallel()

	if got := SourceOrAuto(""); got != Auto {
		t.Errorf("SourceOrAuto(\"\") = %q, want %q", got, Auto)
	}
	if got := SourceOrAuto("ja"); got != "ja" {
		t.Errorf("SourceOrAuto(ja) = %q", got)
	}
}
