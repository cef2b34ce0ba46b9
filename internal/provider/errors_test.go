package provider

import (
	"errors"
	"testing"
)

func TestIsRetryableClassesMatchSpec(t *testing.T) {
	retryable := []*Error{
		NewRateLimitError(nil),
		NewTimeoutError("wait_ready", "5s"),
		NewNetworkError(errors.New("reset")),
	}
	for _, e := range retryable {
		if !e.IsRetryable() {
			t.Errorf("%s: expected retryable", e.Type)
		}
		if !IsRetryable(e) {
			t.Errorf("%s: IsRetryable(err) disagreed with e.IsRetryable()", e.Type)
		}
	}

	nonRetryable := []*Error{
		NewAuthenticationError("digitalocean", "bad token"),
		NewNotFoundError("instance", "abc"),
		NewQuotaExceededError("droplets", "limit reached"),
		NewInvalidConfigError("region", "unknown region"),
		NewNotSupportedError("gpu"),
		NewAPIError(500, "boom"),
		NewNotImplementedError("resize"),
		NewUnknownProviderError("aws", []string{"mock", "digitalocean"}),
	}
	for _, e := range nonRetryable {
		if e.IsRetryable() {
			t.Errorf("%s: expected non-retryable", e.Type)
		}
	}
}

func TestIsRetryableNilAndWrapped(t *testing.T) {
	if IsRetryable(nil) {
		t.Error("nil error must not be retryable")
	}
	if IsRetryable(errors.New("plain error")) {
		t.Error("a plain error with no *Error in its chain must not be retryable")
	}

	wrapped := errorsWrap(NewNetworkError(errors.New("down")))
	if !IsRetryable(wrapped) {
		t.Error("expected errors.As to find the *Error through a wrapping layer")
	}
}

func errorsWrap(err error) error {
	return errWrapper{err}
}

type errWrapper struct{ err error }

func (w errWrapper) Error() string { return "wrapped: " + w.err.Error() }
func (w errWrapper) Unwrap() error { return w.err }

func TestErrorMessages(t *testing.T) {
	cases := []struct {
		err  *Error
		want string
	}{
		{NewNotFoundError("instance", "abc123"), `instance "abc123" not found`},
		{NewNotSupportedError("gpu"), `feature "gpu" not supported`},
	}
	for _, c := range cases {
		if got := c.err.Error(); got != c.want {
			t.Errorf("Error() = %q, want %q", got, c.want)
		}
	}
}

func TestRateLimitErrorMessageWithRetryAfter(t *testing.T) {
	secs := 2
	err := NewRateLimitError(&secs)
	want := "rate limited, retry after 2s"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
