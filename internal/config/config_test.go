package config

import (
	"testing"

	"empower1.com/sleepycore/internal/mempool"
)

func TestParseRequiredFields(t *testing.T) {
	args := []string{
		"--id-card=1",
		"--signer-private-key=0102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f20",
	}
	cfg, err := Parse(args)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if cfg.IDCard != 1 {
		t.Fatalf("expected id-card 1, got %d", cfg.IDCard)
	}
	if cfg.HZ != 10 {
		t.Fatalf("expected default hz 10, got %d", cfg.HZ)
	}
	if cfg.PackageLimit != 1000 {
		t.Fatalf("expected default package-limit 1000, got %d", cfg.PackageLimit)
	}
}

func TestParseMissingRequiredFieldFails(t *testing.T) {
	if _, err := Parse([]string{"--hz=5"}); err == nil {
		t.Fatal("expected Parse to fail without the required id-card flag")
	}
}

func TestParseWithoutSignerKeySucceeds(t *testing.T) {
	cfg, err := Parse([]string{"--id-card=1"})
	if err != nil {
		t.Fatalf("expected a peer-ingest-only node (no signer key) to parse, got: %v", err)
	}
	if cfg.SignerPrivateKey != "" {
		t.Fatalf("expected empty signer-private-key, got %q", cfg.SignerPrivateKey)
	}
}

func TestPrivateKeyBytesRejectsWrongLength(t *testing.T) {
	cfg := &Config{SignerPrivateKey: "abcd"}
	if _, err := cfg.PrivateKeyBytes(); err == nil {
		t.Fatal("expected PrivateKeyBytes to reject a key shorter than 32 bytes")
	}
}

func TestPrivateKeyBytesDecodes(t *testing.T) {
	cfg := &Config{SignerPrivateKey: "0102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f20"}
	raw, err := cfg.PrivateKeyBytes()
	if err != nil {
		t.Fatalf("PrivateKeyBytes returned error: %v", err)
	}
	if raw[0] != 0x01 || raw[31] != 0x20 {
		t.Fatalf("unexpected decoded bytes: %x", raw)
	}
}

func TestStrategyResolution(t *testing.T) {
	cases := map[string]mempool.Strategy{
		"fifo":     mempool.FIFO,
		"priority": mempool.PRIORITY,
		"vip":      mempool.VIP,
		"":         mempool.FIFO,
		"bogus":    mempool.FIFO,
	}
	for raw, want := range cases {
		cfg := &Config{PoolStrategy: raw}
		if got := cfg.Strategy(); got != want {
			t.Errorf("Strategy() for PoolStrategy=%q = %v, want %v", raw, got, want)
		}
	}
}
