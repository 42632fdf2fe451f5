// Package resolverauth adapts libs/resolverkey into gin middleware for the
// coordinator's resolver-facing control-plane endpoints (commit,
// escrows-ready, settlement, rescue, orderSecret).
package resolverauth

import (
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/goex/swaprelayer/libs/resolverkey"
)

const resolverContextKey = "resolver_address"

// Registry holds the resolver key records the coordinator trusts. A real
// deployment backs this with a table; tests and small deployments can use
// the in-memory implementation below.
type Registry interface {
	Lookup(keyHashPrefix string) (resolverkey.Record, bool)
}

// MemRegistry is a mutex-guarded in-memory Registry, keyed by the key's
// prefix component (the segment after the env and before the '.'
// separating prefix from secret), so lookup does not require scanning
// every record's hash.
type MemRegistry struct {
	mu      sync.RWMutex
	records map[string]resolverkey.Record
}

func NewMemRegistry() *MemRegistry {
	return &MemRegistry{records: map[string]resolverkey.Record{}}
}

func (r *MemRegistry) Add(prefix string, record resolverkey.Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[prefix] = record
}

func (r *MemRegistry) Lookup(prefix string) (resolverkey.Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	record, ok := r.records[prefix]
	return record, ok
}

// RequireResolverKey extracts the "Authorization: ApiKey <key>" header,
// verifies it against registry, and stores the bound resolver address in
// gin's context for handlers to compare against an order's resolver field.
func RequireResolverKey(registry Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		const prefix = "ApiKey "
		if !strings.HasPrefix(header, prefix) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing resolver api key"})
			return
		}
		key := strings.TrimPrefix(header, prefix)

		_, keyPrefix, _, err := resolverkey.Parse(key)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "malformed resolver api key"})
			return
		}
		record, ok := registry.Lookup(keyPrefix)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unknown resolver api key"})
			return
		}

		resolver, _, err := resolverkey.Verify(key, record, c.ClientIP())
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}

		c.Set(resolverContextKey, resolver)
		c.Next()
	}
}

// ResolverFromContext returns the authenticated resolver address
// RequireResolverKey bound to this request, if any.
func ResolverFromContext(c *gin.Context) (string, bool) {
	v, ok := c.Get(resolverContextKey)
	if !ok {
		return "", false
	}
	resolver, ok := v.(string)
	return resolver, ok
}
