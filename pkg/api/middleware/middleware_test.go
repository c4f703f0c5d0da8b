package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"

	"github.com/shelfd/shelfd/internal/logger"
	"github.com/shelfd/shelfd/pkg/config"
)

func TestCorrelationID(t *testing.T) {
	t.Run("mints an id when absent", func(t *testing.T) {
		var seen string
		h := CorrelationID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if lc := logger.FromContext(r.Context()); lc != nil {
				seen = lc.CorrelationID
			}
		}))

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		echoed := rec.Header().Get(CorrelationIDHeader)
		if echoed == "" {
			t.Fatal("response missing correlation header")
		}
		if seen != echoed {
			t.Errorf("log context id %q != header %q", seen, echoed)
		}
	})

	t.Run("echoes a supplied id", func(t *testing.T) {
		h := CorrelationID(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(CorrelationIDHeader, "corr-42")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if got := rec.Header().Get(CorrelationIDHeader); got != "corr-42" {
			t.Errorf("header = %q", got)
		}
	})

	t.Run("captures the client ip without port", func(t *testing.T) {
		var ip string
		h := CorrelationID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if lc := logger.FromContext(r.Context()); lc != nil {
				ip = lc.ClientIP
			}
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.1.2.3:4567"
		h.ServeHTTP(httptest.NewRecorder(), req)

		if ip != "10.1.2.3" {
			t.Errorf("client ip = %q", ip)
		}
	})
}

func TestRequireVersion(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h := RequireVersion(ok)

	tests := []struct {
		accept string
		status int
	}{
		{"", http.StatusOK},
		{"*/*", http.StatusOK},
		{"application/json", http.StatusOK},
		{VersionedMediaType, http.StatusOK},
		{"application/json; charset=utf-8", http.StatusOK},
		{"text/html, application/json", http.StatusOK},
		{"application/vnd.shelfd.v2+json", http.StatusNotAcceptable},
		{"text/html", http.StatusNotAcceptable},
	}
	for _, tt := range tests {
		t.Run("accept "+tt.accept, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.accept != "" {
				req.Header.Set("Accept", tt.accept)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
		})
	}
}

func TestAuthenticateDevMode(t *testing.T) {
	auth := NewAuthenticator(config.AuthConfig{VerifyToken: false, ClientID: "shelfd"})

	capture := func(id **Identity) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			*id = IdentityFromContext(r.Context())
		})
	}

	t.Run("missing token maps to the dev identity", func(t *testing.T) {
		var id *Identity
		rec := httptest.NewRecorder()
		auth.Authenticate(capture(&id)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		if id == nil || id.Subject != "dev" {
			t.Fatalf("identity = %+v", id)
		}
	})

	t.Run("token claims are read without verification", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"sub":                "user-7",
			"preferred_username": "ada",
			"email":              "ada@example.com",
			"guest":              true,
			"groups":             []string{"/research"},
			"realm_access":       map[string]any{"roles": []string{"librarian"}},
			"resource_access": map[string]any{
				"shelfd": map[string]any{"roles": []string{"uploader"}},
				"other":  map[string]any{"roles": []string{"ignored"}},
			},
		}).SignedString([]byte("any-key"))
		if err != nil {
			t.Fatal(err)
		}

		var id *Identity
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		auth.Authenticate(capture(&id)).ServeHTTP(httptest.NewRecorder(), req)

		if id == nil {
			t.Fatal("no identity")
		}
		if id.Subject != "user-7" || id.Username != "ada" || id.Email != "ada@example.com" {
			t.Errorf("identity = %+v", id)
		}
		if !id.Guest {
			t.Error("guest flag lost")
		}
		if !id.HasRole("librarian") || !id.HasRole("uploader") {
			t.Errorf("roles = %v", id.Roles)
		}
		if id.HasRole("ignored") {
			t.Errorf("foreign client roles leaked: %v", id.Roles)
		}
	})

	t.Run("garbage token is 401", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer not-a-jwt")
		rec := httptest.NewRecorder()
		auth.Authenticate(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})).ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d", rec.Code)
		}
	})
}

func TestAuthenticateVerifiedModeRequiresToken(t *testing.T) {
	auth := NewAuthenticator(config.AuthConfig{VerifyToken: true, URL: "https://auth.example.com", Realm: "shelfd"})

	rec := httptest.NewRecorder()
	auth.Authenticate(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d", rec.Code)
	}
}
