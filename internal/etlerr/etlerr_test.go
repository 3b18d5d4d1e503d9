package etlerr

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestWrapAndKindOf(t *testing.T) {
	t.Parallel()

	base := errors.New("boom")

	cases := []struct {
		name string
		err  error
		want Kind
	}{
		{name: "nil", err: nil, want: KindUnknown},
		{name: "plain", err: base, want: KindUnknown},
		{name: "tagged", err: Wrap(KindSchema, "extract", base), want: KindSchema},
		{name: "fmt_wrapped", err: fmt.Errorf("outer: %w", Wrap(KindIntegrity, "load", base)), want: KindIntegrity},
		{name: "inner_kind_wins", err: Wrap(KindCritical, "pipeline", Wrap(KindConnection, "open", base)), want: KindConnection},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := KindOf(tc.err); got != tc.want {
				t.Fatalf("KindOf = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestWrapNil(t *testing.T) {
	t.Parallel()
	if err := Wrap(KindFormat, "x", nil); err != nil {
		t.Fatalf("Wrap(nil) = %v, want nil", err)
	}
}

func TestErrorMessageAndUnwrap(t *testing.T) {
	t.Parallel()

	base := errors.New("missing column")
	err := Wrap(KindSchema, "extract redemptions", base)

	if !errors.Is(err, base) {
		t.Fatalf("errors.Is(err, base) = false")
	}
	msg := err.Error()
	for _, part := range []string{"extract redemptions", "SchemaError", "missing column"} {
		if !strings.Contains(msg, part) {
			t.Fatalf("message %q missing %q", msg, part)
		}
	}
	if !Is(err, KindSchema) || Is(err, KindFormat) {
		t.Fatalf("Is mismatch for %v", err)
	}
}

func TestNewFormats(t *testing.T) {
	t.Parallel()

	err := New(KindFormat, "", "unsupported extension %q", ".pdf")
	if got, want := err.Error(), `FormatError: unsupported extension ".pdf"`; got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
	text, _ := err.Kind.MarshalText()
	if string(text) != "FormatError" {
		t.Fatalf("MarshalText = %q", text)
	}
}
