// Package resolverkey issues and verifies the API keys the resolver fleet
// uses to authenticate against the coordinator's mutating control-plane
// endpoints (commit, escrows-ready, settlement, rescue) and the
// authenticated secret query. A resolver's on-chain address is bound to
// its key at issuance time; verification never trusts a caller-supplied
// address, only the address baked into the record the key hashes to.
package resolverkey

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base32"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

var (
	ErrInvalidKey       = errors.New("invalid resolver key")
	ErrRevokedKey       = errors.New("revoked resolver key")
	ErrIPNotAllowed     = errors.New("ip not allowed")
	ErrInvalidWhitelist = errors.New("invalid ip whitelist")
)

// Record is the durable side of a resolver key: everything needed to
// verify a presented key and recover the resolver identity behind it.
type Record struct {
	ID          string
	Resolver    string // on-chain address bound to this key
	KeyHash     string
	Scopes      []string
	IPWhitelist []string
	RevokedAt   *time.Time
}

func Generate(env string) (fullKey, prefix, hash string, err error) {
	prefix, err = generatePrefix()
	if err != nil {
		return "", "", "", err
	}
	secret, err := generateSecret()
	if err != nil {
		return "", "", "", err
	}
	fullKey = fmt.Sprintf("rk_%s_%s.%s", env, prefix, secret)
	hash = Hash(prefix, secret)
	return fullKey, prefix, hash, nil
}

func Parse(key string) (env, prefix, secret string, err error) {
	parts := strings.SplitN(key, ".", 2)
	if len(parts) != 2 {
		return "", "", "", ErrInvalidKey
	}
	head := parts[0]
	secret = parts[1]

	headParts := strings.SplitN(head, "_", 3)
	if len(headParts) != 3 || headParts[0] != "rk" {
		return "", "", "", ErrInvalidKey
	}
	env = headParts[1]
	prefix = headParts[2]
	if env == "" || prefix == "" || secret == "" {
		return "", "", "", ErrInvalidKey
	}
	return env, prefix, secret, nil
}

func Hash(prefix, secret string) string {
	sum := sha256.Sum256([]byte(prefix + "." + secret))
	return hex.EncodeToString(sum[:])
}

// Verify checks the presented key against record and returns the bound
// resolver address on success. It never trusts anything other than the
// hash match and the IP whitelist to decide identity.
func Verify(key string, record Record, clientIP string) (string, []string, error) {
	_, prefix, secret, err := Parse(key)
	if err != nil {
		return "", nil, err
	}

	if !strings.EqualFold(Hash(prefix, secret), record.KeyHash) {
		return "", nil, ErrInvalidKey
	}
	if record.RevokedAt != nil {
		return "", nil, ErrRevokedKey
	}
	if !IPAllowed(clientIP, record.IPWhitelist) {
		return "", nil, ErrIPNotAllowed
	}
	return record.Resolver, record.Scopes, nil
}

func ValidateIPWhitelist(whitelist []string) error {
	for _, entry := range whitelist {
		if strings.TrimSpace(entry) == "" {
			return ErrInvalidWhitelist
		}
		if strings.Contains(entry, "/") {
			if _, _, err := net.ParseCIDR(entry); err != nil {
				return ErrInvalidWhitelist
			}
			continue
		}
		if net.ParseIP(entry) == nil {
			return ErrInvalidWhitelist
		}
	}
	return nil
}

func IPAllowed(clientIP string, whitelist []string) bool {
	if len(whitelist) == 0 {
		return true
	}
	ip := net.ParseIP(clientIP)
	if ip == nil {
		return false
	}
	for _, entry := range whitelist {
		if strings.Contains(entry, "/") {
			_, netw, err := net.ParseCIDR(entry)
			if err == nil && netw.Contains(ip) {
				return true
			}
			continue
		}
		if parsed := net.ParseIP(entry); parsed != nil && parsed.Equal(ip) {
			return true
		}
	}
	return false
}

func generatePrefix() (string, error) {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	enc := base32.StdEncoding.WithPadding(base32.NoPadding)
	return strings.ToLower(enc.EncodeToString(buf)), nil
}

func generateSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
