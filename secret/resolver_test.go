package secret

import (
	"context"
	"errors"
	"testing"
)

type stubProvider struct {
	name    string
	values  map[string]string
	resolve func(ref string) (string, error)
	closed  bool
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Resolve(_ context.Context, ref string) (string, error) {
	if s.resolve != nil {
		return s.resolve(ref)
	}
	return s.values[ref], nil
}

func (s *stubProvider) Close() error {
	s.closed = true
	return nil
}

func TestParseSecretRef(t *testing.T) {
	tests := []struct {
		in       string
		provider string
		ref      string
		ok       bool
	}{
		{"secretref:env:GEMINI_API_KEY", "env", "GEMINI_API_KEY", true},
		{"secretref:file:/run/secrets/key:2", "file", "/run/secrets/key:2", true},
		{"secretref:env:", "", "", false},
		{"secretref::x", "", "", false},
		{"AIza-literal", "", "", false},
	}
	for _, tt := range tests {
		provider, ref, ok := ParseSecretRef(tt.in)
		if ok != tt.ok || provider != tt.provider || ref != tt.ref {
			t.Errorf("ParseSecretRef(%q) = %q, %q, %v", tt.in, provider, ref, ok)
		}
	}
}

func TestResolver_ResolvesFullSecretRef(t *testing.T) {
	r := NewResolver(true, &stubProvider{name: "stub", values: map[string]string{"alpha": "one"}})

	got, err := r.ResolveValue(context.Background(), "secretref:stub:alpha")
	if err != nil {
		t.Fatalf("ResolveValue() error = %v", err)
	}
	if got != "one" {
		t.Fatalf("ResolveValue() = %q, want %q", got, "one")
	}
}

func TestResolver_LiteralPassesThrough(t *testing.T) {
	r := NewResolver(true)
	got, err := r.ResolveValue(context.Background(), "prefix secretref:stub:beta")
	if err != nil {
		t.Fatalf("ResolveValue() error = %v", err)
	}
	if got != "prefix secretref:stub:beta" {
		t.Fatalf("only whole-value references are resolved, got %q", got)
	}
}

func TestResolver_RefAfterEnvExpansion(t *testing.T) {
	t.Setenv("KEY_REF", "secretref:stub:alpha")
	r := NewResolver(true, &stubProvider{name: "stub", values: map[string]string{"alpha": "one"}})

	got, err := r.ResolveValue(context.Background(), "${KEY_REF}")
	if err != nil || got != "one" {
		t.Fatalf("ResolveValue() = %q, %v", got, err)
	}
}

func TestResolver_Errors(t *testing.T) {
	explode := errors.New("explode")
	r := NewResolver(true, &stubProvider{
		name: "stub",
		resolve: func(ref string) (string, error) {
			if ref == "boom" {
				return "", explode
			}
			return "", nil
		},
	})

	tests := []struct {
		value string
		want  error
	}{
		{"secretref:stub:boom", explode},
		{"secretref:stub:empty", ErrEmptyValue},
		{"secretref:vault:x", ErrUnknownProvider},
		{"${TOOLIFY_TEST_UNSET_VAR}", ErrMissingEnv},
	}
	for _, tt := range tests {
		if _, err := r.ResolveValue(context.Background(), tt.value); !errors.Is(err, tt.want) {
			t.Errorf("ResolveValue(%q) error = %v, want %v", tt.value, err, tt.want)
		}
	}
}

func TestResolver_NonStrictAllowsEmpty(t *testing.T) {
	r := NewResolver(false, &stubProvider{name: "stub"})
	got, err := r.ResolveValue(context.Background(), "secretref:stub:empty")
	if err != nil || got != "" {
		t.Fatalf("ResolveValue() = %q, %v", got, err)
	}
}

func TestResolver_ResolveSlice(t *testing.T) {
	r := NewResolver(true, &stubProvider{name: "stub", values: map[string]string{"alpha": "one"}})

	slice, err := r.ResolveSlice(context.Background(), []string{"a", "secretref:stub:alpha"})
	if err != nil {
		t.Fatalf("ResolveSlice() error = %v", err)
	}
	if slice[0] != "a" || slice[1] != "one" {
		t.Fatalf("unexpected slice: %#v", slice)
	}

	_, err = r.ResolveSlice(context.Background(), []string{"a", "secretref:stub:missing"})
	if !errors.Is(err, ErrEmptyValue) {
		t.Fatalf("ResolveSlice() error = %v, want ErrEmptyValue", err)
	}
}

func TestResolver_NilResolver(t *testing.T) {
	var r *Resolver
	got, err := r.ResolveValue(context.Background(), "secretref:env:X")
	if err != nil || got != "secretref:env:X" {
		t.Fatalf("nil resolver should only expand env, got %q, %v", got, err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
}

func TestResolver_Close(t *testing.T) {
	p := &stubProvider{name: "stub"}
	r := NewResolver(true, p, nil)
	if err := r.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !p.closed {
		t.Fatal("provider should be closed")
	}
}
