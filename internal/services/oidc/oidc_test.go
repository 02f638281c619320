package oidc

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

const testIssuer = "https://issuer.example.com"

type keyServer struct {
	priv    jwk.Key
	server  *httptest.Server
	fetches atomic.Int32
}

func newKeyServer(t *testing.T) *keyServer {
	t.Helper()
	raw, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	priv, err := jwk.FromRaw(raw)
	if err != nil {
		t.Fatalf("failed to wrap key: %v", err)
	}
	_ = priv.Set(jwk.KeyIDKey, "test-key")
	_ = priv.Set(jwk.AlgorithmKey, jwa.RS256)

	pub, err := jwk.PublicKeyOf(priv)
	if err != nil {
		t.Fatalf("failed to derive public key: %v", err)
	}
	set := jwk.NewSet()
	_ = set.AddKey(pub)

	ks := &keyServer{priv: priv}
	ks.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ks.fetches.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(set)
	}))
	t.Cleanup(ks.server.Close)
	return ks
}

func (ks *keyServer) sign(t *testing.T, build func(*jwt.Builder) *jwt.Builder) string {
	t.Helper()
	tok, err := build(jwt.NewBuilder()).Build()
	if err != nil {
		t.Fatalf("failed to build token: %v", err)
	}
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.RS256, ks.priv))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return string(signed)
}

func TestVerifier_Verify(t *testing.T) {
	t.Parallel()

	ks := newKeyServer(t)
	now := time.Now()

	tests := []struct {
		name     string
		audience string
		build    func(*jwt.Builder) *jwt.Builder
		wantSub  string
		wantErr  bool
	}{
		{
			name:     "valid token",
			audience: "planner",
			build: func(b *jwt.Builder) *jwt.Builder {
				return b.Subject("user-1").Issuer(testIssuer).Audience([]string{"planner"}).
					IssuedAt(now).Expiration(now.Add(time.Hour))
			},
			wantSub: "user-1",
		},
		{
			name: "audience not checked when unset",
			build: func(b *jwt.Builder) *jwt.Builder {
				return b.Subject("user-2").Issuer(testIssuer).Audience([]string{"other"}).
					Expiration(now.Add(time.Hour))
			},
			wantSub: "user-2",
		},
		{
			name:     "wrong audience",
			audience: "planner",
			build: func(b *jwt.Builder) *jwt.Builder {
				return b.Subject("user-1").Issuer(testIssuer).Audience([]string{"other"}).
					Expiration(now.Add(time.Hour))
			},
			wantErr: true,
		},
		{
			name: "wrong issuer",
			build: func(b *jwt.Builder) *jwt.Builder {
				return b.Subject("user-1").Issuer("https://evil.example.com").Expiration(now.Add(time.Hour))
			},
			wantErr: true,
		},
		{
			name: "expired",
			build: func(b *jwt.Builder) *jwt.Builder {
				return b.Subject("user-1").Issuer(testIssuer).Expiration(now.Add(-time.Hour))
			},
			wantErr: true,
		},
		{
			name: "missing subject",
			build: func(b *jwt.Builder) *jwt.Builder {
				return b.Issuer(testIssuer).Expiration(now.Add(time.Hour))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			v := NewVerifier(NewJWKSManager(nil, 0), ks.server.URL, testIssuer, tt.audience)
			claims, err := v.Verify(context.Background(), ks.sign(t, tt.build))
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got claims %+v", claims)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if claims.Subject != tt.wantSub {
				t.Errorf("expected subject %q, got %q", tt.wantSub, claims.Subject)
			}
		})
	}
}

func TestVerifier_GarbageToken(t *testing.T) {
	t.Parallel()

	ks := newKeyServer(t)
	v := NewVerifier(NewJWKSManager(nil, 0), ks.server.URL, testIssuer, "")
	if _, err := v.Verify(context.Background(), "not-a-jwt"); err == nil {
		t.Fatal("expected error for garbage token")
	}
}

func TestJWKSManager_Caches(t *testing.T) {
	t.Parallel()

	ks := newKeyServer(t)
	m := NewJWKSManager(nil, time.Minute)
	current := time.Now()
	m.now = func() time.Time { return current }

	for i := 0; i < 3; i++ {
		if _, err := m.GetJWKS(context.Background(), ks.server.URL); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if got := ks.fetches.Load(); got != 1 {
		t.Errorf("expected 1 fetch while cached, got %d", got)
	}

	current = current.Add(2 * time.Minute)
	if _, err := m.GetJWKS(context.Background(), ks.server.URL); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := ks.fetches.Load(); got != 2 {
		t.Errorf("expected refetch after ttl, got %d fetches", got)
	}
}

func TestJWKSManager_BadStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	if _, err := NewJWKSManager(nil, 0).GetJWKS(context.Background(), srv.URL); err == nil {
		t.Fatal("expected error for non-200 JWKS response")
	}
}
