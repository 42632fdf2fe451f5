package config

import (
	"testing"
)

func clearRelayerEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"RELAYER_CHAINS",
		"RELAYER_CHAIN_1_RPC",
		"RELAYER_CHAIN_1_ESCROW_FACTORY",
		"RELAYER_BUS_BROKERS",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadRequiresAtLeastOneChain(t *testing.T) {
	clearRelayerEnv(t)
	t.Setenv("RELAYER_BUS_BROKERS", "localhost:9092")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when RELAYER_CHAINS is unset")
	}
}

func TestLoadParsesChainConfig(t *testing.T) {
	clearRelayerEnv(t)
	t.Setenv("RELAYER_CHAINS", "1,10")
	t.Setenv("RELAYER_CHAIN_1_RPC", "https://chain1.example")
	t.Setenv("RELAYER_CHAIN_1_ESCROW_FACTORY", "0x00000000000000000000000000000000000001")
	t.Setenv("RELAYER_CHAIN_1_MIN_SAFETY_DEPOSIT", "1000")
	t.Setenv("RELAYER_CHAIN_10_RPC", "https://chain10.example")
	t.Setenv("RELAYER_CHAIN_10_ESCROW_FACTORY", "0x00000000000000000000000000000000000002")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if len(cfg.Chains) != 2 {
		t.Fatalf("expected 2 chains, got %d", len(cfg.Chains))
	}
	chain1, ok := cfg.Chains[1]
	if !ok {
		t.Fatal("expected chain 1 to be configured")
	}
	if chain1.RPCEndpoint != "https://chain1.example" {
		t.Fatalf("chain1.RPCEndpoint = %q", chain1.RPCEndpoint)
	}
	if chain1.MinSafetyDeposit.String() != "1000" {
		t.Fatalf("chain1.MinSafetyDeposit = %s", chain1.MinSafetyDeposit.String())
	}
	chain10, ok := cfg.Chains[10]
	if !ok {
		t.Fatal("expected chain 10 to be configured")
	}
	if chain10.MinSafetyDeposit.Sign() != 0 {
		t.Fatalf("expected zero default min safety deposit, got %s", chain10.MinSafetyDeposit.String())
	}
}

func TestLoadRejectsMissingEscrowFactory(t *testing.T) {
	clearRelayerEnv(t)
	t.Setenv("RELAYER_CHAINS", "1")
	t.Setenv("RELAYER_CHAIN_1_RPC", "https://chain1.example")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when escrow factory is missing")
	}
}
