package bootstrap

import "testing"

func lookupFrom(env map[string]string) func(string) (string, bool) {
	return func(name string) (string, bool) {
		v, ok := env[name]
		return v, ok
	}
}

func TestResolveEnvDefaultWhenUnset(t *testing.T) {
	got := ResolveEnv("${LOG_LEVEL:-info}", lookupFrom(nil))
	if got != "info" {
		t.Errorf("got %q, want %q", got, "info")
	}
}

func TestResolveEnvDefaultOverriddenWhenSet(t *testing.T) {
	env := map[string]string{"LOG_LEVEL": "debug"}
	got := ResolveEnv("${LOG_LEVEL:-info}", lookupFrom(env))
	if got != "debug" {
		t.Errorf("got %q, want %q", got, "debug")
	}
}

func TestResolveEnvBareNameUnsetIsEmpty(t *testing.T) {
	got := ResolveEnv("$KEY", lookupFrom(nil))
	if got != "" {
		t.Errorf("got %q, want empty string", got)
	}
	got = ResolveEnv("${KEY}", lookupFrom(nil))
	if got != "" {
		t.Errorf("got %q, want empty string", got)
	}
}

func TestResolveEnvBareNameSet(t *testing.T) {
	env := map[string]string{"KEY": "abc123"}
	if got := ResolveEnv("$KEY", lookupFrom(env)); got != "abc123" {
		t.Errorf("got %q, want %q", got, "abc123")
	}
	if got := ResolveEnv("${KEY}", lookupFrom(env)); got != "abc123" {
		t.Errorf("got %q, want %q", got, "abc123")
	}
}

func TestResolveEnvLiteralDollarEscape(t *testing.T) {
	got := ResolveEnv("price: $$5", lookupFrom(nil))
	if got != "price: $5" {
		t.Errorf("got %q, want %q", got, "price: $5")
	}
}

func TestResolveEnvMultipleOccurrences(t *testing.T) {
	env := map[string]string{"HOST": "db.local", "PORT": "5432"}
	got := ResolveEnv("postgres://$HOST:${PORT}/app", lookupFrom(env))
	want := "postgres://db.local:5432/app"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestResolveEnvMapAppliesToEveryValue(t *testing.T) {
	env := map[string]string{"LOG_LEVEL": "debug"}
	m := map[string]string{
		"LOG_LEVEL": "${LOG_LEVEL:-info}",
		"KEY":       "$KEY",
	}
	got := ResolveEnvMap(m, lookupFrom(env))
	if got["LOG_LEVEL"] != "debug" {
		t.Errorf("LOG_LEVEL = %q", got["LOG_LEVEL"])
	}
	if got["KEY"] != "" {
		t.Errorf("KEY = %q, want empty", got["KEY"])
	}
}
