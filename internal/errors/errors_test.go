package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorFormatting(t *testing.T) {
	plain := New(Timeout, "documentSymbol did not complete", nil)
	if got := plain.Error(); got != "TIMEOUT: documentSymbol did not complete" {
		t.Errorf("unexpected message: %q", got)
	}

	cause := stderrors.New("broken pipe")
	wrapped := New(TransportFailure, "write failed", cause)
	if !strings.Contains(wrapped.Error(), "broken pipe") {
		t.Errorf("cause missing from message: %q", wrapped.Error())
	}
}

func TestUnwrap(t *testing.T) {
	cause := stderrors.New("exit status 1")
	err := New(TransportFailure, "server died", cause)
	if !stderrors.Is(err, cause) {
		t.Error("errors.Is does not reach the cause")
	}
}

func TestCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{"direct", New(ServerUnavailable, "no server", nil), ServerUnavailable},
		{"wrapped", fmt.Errorf("extract: %w", New(ChannelNotReady, "not ready", nil)), ChannelNotReady},
		{"foreign", stderrors.New("plain"), InternalError},
		{"nil cause chain", New(ParseFailure, "bad grammar", nil), ParseFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CodeOf(tt.err); got != tt.want {
				t.Errorf("CodeOf() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestIsCode(t *testing.T) {
	err := New(Timeout, "slow", nil).WithHint("increase requestTimeoutMs")
	if !IsCode(err, Timeout) {
		t.Error("IsCode(Timeout) = false")
	}
	if IsCode(err, TransportFailure) {
		t.Error("IsCode matched wrong code")
	}
	if err.Hint == "" {
		t.Error("WithHint did not set hint")
	}
}
