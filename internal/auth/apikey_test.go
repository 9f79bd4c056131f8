package auth

import (
	"strings"
	"testing"
)

func TestGenerateAPIKey(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		key, err := GenerateAPIKey()
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if !strings.HasPrefix(key, apiKeyPrefix) {
			t.Fatalf("key %q missing prefix %q", key, apiKeyPrefix)
		}
		if len(key) != len(apiKeyPrefix)+48 {
			t.Fatalf("key length = %d", len(key))
		}
		if seen[key] {
			t.Fatalf("duplicate key generated: %q", key)
		}
		seen[key] = true
	}
}

func TestVerifyAPIKey(t *testing.T) {
	key, err := GenerateAPIKey()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	hash := HashAPIKey(key)

	if !VerifyAPIKey(key, hash) {
		t.Fatal("valid key rejected")
	}
	if VerifyAPIKey(key+"x", hash) {
		t.Fatal("tampered key accepted")
	}
	if VerifyAPIKey("", hash) {
		t.Fatal("empty key accepted")
	}

	other, err := GenerateAPIKey()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if VerifyAPIKey(other, hash) {
		t.Fatal("different key accepted")
	}
}

func TestHashAPIKeyIsDeterministic(t *testing.T) {
	if HashAPIKey("atl_ak_abc") != HashAPIKey("atl_ak_abc") {
		t.Fatal("hash not deterministic")
	}
	if HashAPIKey("atl_ak_abc") == HashAPIKey("atl_ak_abd") {
		t.Fatal("distinct keys collide")
	}
	if len(HashAPIKey("anything")) != 64 {
		t.Fatal("hash is not hex sha-256")
	}
}

func TestBearerToken(t *testing.T) {
	cases := []struct {
		header string
		want   string
	}{
		{"Bearer atl_ak_abc", "atl_ak_abc"},
		{"Bearer   atl_ak_abc  ", "atl_ak_abc"},
		{"bearer atl_ak_abc", ""},
		{"Basic dXNlcg==", ""},
		{"", ""},
		{"Bearer ", ""},
	}
	for _, tc := range cases {
		if got := BearerToken(tc.header); got != tc.want {
			t.Fatalf("BearerToken(%q) = %q, want %q", tc.header, got, tc.want)
		}
	}
}
