package cmd

import "testing"

func TestEnvPrefix(t *testing.T) {
	tests := []struct{ in, want string }{
		{"digitalocean", "DIGITALOCEAN"},
		{"mock", "MOCK"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := envPrefix(tt.in); got != tt.want {
			t.Errorf("envPrefix(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestProviderTokenFallsBackToGenericVar(t *testing.T) {
	t.Setenv("DIGITALOCEAN_TOKEN", "")
	t.Setenv("SPUFF_API_TOKEN", "generic-token")
	if got := providerToken("digitalocean"); got != "generic-token" {
		t.Errorf("providerToken fallback = %q, want %q", got, "generic-token")
	}

	t.Setenv("DIGITALOCEAN_TOKEN", "specific-token")
	if got := providerToken("digitalocean"); got != "specific-token" {
		t.Errorf("providerToken specific = %q, want %q", got, "specific-token")
	}
}
