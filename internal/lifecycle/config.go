package lifecycle

import (
	"math/big"
	"time"
)

// Config collects the tunables spec.md §6 enumerates. Zero-value fields are
// replaced with the documented default by NewController.
type Config struct {
	// DefaultOrderDuration is the lifetime of an ACTIVE order (expiresAt =
	// createdAt + OrderDuration from the intent; admission replaces a
	// non-positive duration, or one longer than this ceiling, with this
	// value).
	DefaultOrderDuration time.Duration
	// FastAuctionDuration is the Dutch-auction decay window attached to
	// every newly admitted order.
	FastAuctionDuration time.Duration
	// ResolverCommitmentWindow is the deadline offset applied at commit
	// time: commitmentDeadline = commitmentTime + ResolverCommitmentWindow.
	ResolverCommitmentWindow time.Duration
	// SecretRevealDelay is the pause between both escrows verified funded
	// and the secret's publication to the competition bus.
	SecretRevealDelay time.Duration
	// CompetitionWindow is the SecretBroadcast TTL: competitionDeadline =
	// now + CompetitionWindow.
	CompetitionWindow time.Duration
	// ConfirmationsPerChain maps a chain-id to the confirmation count
	// AwaitConfirmations must observe before a deposit counts as settled.
	ConfirmationsPerChain map[uint64]uint64
	// MinSafetyDepositPerChain maps a chain-id to the minimum escrow
	// balance escrowsReady requires before releasing user funds.
	MinSafetyDepositPerChain map[uint64]*big.Int
	// DefaultConfirmations is used for a chain absent from
	// ConfirmationsPerChain.
	DefaultConfirmations uint64
}

func (c *Config) applyDefaults() {
	if c.DefaultOrderDuration <= 0 {
		c.DefaultOrderDuration = 300 * time.Second
	}
	if c.FastAuctionDuration <= 0 {
		c.FastAuctionDuration = 60 * time.Second
	}
	if c.ResolverCommitmentWindow <= 0 {
		c.ResolverCommitmentWindow = 5 * time.Minute
	}
	if c.SecretRevealDelay <= 0 {
		c.SecretRevealDelay = 10 * time.Second
	}
	if c.CompetitionWindow <= 0 {
		c.CompetitionWindow = 5 * time.Minute
	}
	if c.DefaultConfirmations == 0 {
		c.DefaultConfirmations = 1
	}
	if c.ConfirmationsPerChain == nil {
		c.ConfirmationsPerChain = map[uint64]uint64{}
	}
	if c.MinSafetyDepositPerChain == nil {
		c.MinSafetyDepositPerChain = map[uint64]*big.Int{}
	}
}

func (c *Config) confirmations(chain uint64) uint64 {
	if n, ok := c.ConfirmationsPerChain[chain]; ok && n > 0 {
		return n
	}
	return c.DefaultConfirmations
}

func (c *Config) minSafetyDeposit(chain uint64) *big.Int {
	if v, ok := c.MinSafetyDepositPerChain[chain]; ok && v != nil {
		return v
	}
	return big.NewInt(0)
}
