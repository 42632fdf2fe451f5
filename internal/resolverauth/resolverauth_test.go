package resolverauth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/goex/swaprelayer/libs/resolverkey"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newProtectedRouter(registry Registry) *gin.Engine {
	r := gin.New()
	r.GET("/protected", RequireResolverKey(registry), func(c *gin.Context) {
		resolver, ok := ResolverFromContext(c)
		if !ok {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "resolver missing from context"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"resolver": resolver})
	})
	return r
}

func TestRequireResolverKeyAcceptsValidKey(t *testing.T) {
	registry := NewMemRegistry()
	fullKey, prefix, hash, err := resolverkey.Generate("test")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	registry.Add(prefix, resolverkey.Record{Resolver: "0x000000000000000000000000000000000000aa", KeyHash: hash})

	router := newProtectedRouter(registry)
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "ApiKey "+fullKey)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestRequireResolverKeyRejectsMissingHeader(t *testing.T) {
	router := newProtectedRouter(NewMemRegistry())
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestRequireResolverKeyRejectsMalformedKey(t *testing.T) {
	router := newProtectedRouter(NewMemRegistry())
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "ApiKey not-a-real-key")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestRequireResolverKeyRejectsUnknownPrefix(t *testing.T) {
	registry := NewMemRegistry()
	fullKey, _, _, err := resolverkey.Generate("test")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	// registry never populated with this key's prefix.
	router := newProtectedRouter(registry)
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "ApiKey "+fullKey)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestRequireResolverKeyRejectsRevokedKey(t *testing.T) {
	registry := NewMemRegistry()
	fullKey, prefix, hash, err := resolverkey.Generate("test")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	revokedAt := time.Now().Add(-time.Minute)
	registry.Add(prefix, resolverkey.Record{
		Resolver:  "0x000000000000000000000000000000000000bb",
		KeyHash:   hash,
		RevokedAt: &revokedAt,
	})

	router := newProtectedRouter(registry)
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "ApiKey "+fullKey)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestMemRegistryLookup(t *testing.T) {
	registry := NewMemRegistry()
	if _, ok := registry.Lookup("missing"); ok {
		t.Fatal("expected lookup miss on empty registry")
	}
	registry.Add("abc123", resolverkey.Record{Resolver: "0x000000000000000000000000000000000000cc"})
	record, ok := registry.Lookup("abc123")
	if !ok {
		t.Fatal("expected lookup hit")
	}
	if record.Resolver != "0x000000000000000000000000000000000000cc" {
		t.Fatalf("resolver = %q", record.Resolver)
	}
}
