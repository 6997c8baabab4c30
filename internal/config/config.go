// Package config defines the node's typed configuration, loaded from
// command-line flags and config-file sections via go-flags, matching the
// recognized options of spec §6.
package config

import (
	"encoding/hex"
	"fmt"

	"github.com/jessevdk/go-flags"

	"empower1.com/sleepycore/internal/mempool"
)

// Peer is one entry of the peers list: another node's id_card and dial
// address.
type Peer struct {
	IDCard uint32 `long:"id-card" description:"peer's node identifier" required:"true"`
	IP     string `long:"ip" description:"peer's dial address" required:"true"`
	Port   int    `long:"port" description:"peer's dial port" required:"true"`
}

// Config is the full set of options a node reads at startup.
type Config struct {
	// HZ is the future-replay worker's tick rate, ticks per second.
	HZ int `long:"hz" default:"10" description:"future-replay tick rate, ticks per second"`

	// IDCard identifies this node among its configured peers.
	IDCard uint32 `long:"id-card" description:"this node's identifier" required:"true"`

	// ConfigFile, if set, names an INI file holding the repeated [Peer]
	// sections LoadIniFile reads.
	ConfigFile string `long:"config" description:"path to an INI file listing peers"`

	// ListenPort is the TCP port this node accepts inbound peer
	// connections on.
	ListenPort int `long:"listen-port" default:"30333" description:"TCP port for inbound peer connections"`

	// SignerPrivateKey is this node's miner signing key, hex-encoded.
	// Optional: a node that only ingests and relays signed blocks from
	// its peers never signs anything and can leave this unset.
	SignerPrivateKey string `long:"signer-private-key" description:"hex-encoded 32-byte ECDSA private key, required only for mining"`

	// PackageLimit bounds how many transactions Pool.Package returns per call.
	PackageLimit int `long:"package-limit" default:"1000" description:"max transactions packaged per block"`

	// PoolCapacity bounds the transaction pool's dedup filter.
	PoolCapacity int `long:"pool-capacity" default:"100000" description:"transaction pool dedup filter capacity"`

	// PoolStrategy selects the pool's packaging order: fifo, priority, or vip.
	PoolStrategy string `long:"pool-strategy" default:"fifo" description:"transaction pool ordering strategy"`

	// Peers lists every other node this one dials. The command line has
	// no natural way to repeat a structured group, so this is populated
	// by LoadIniFile from repeated [Peer] sections rather than by Parse.
	Peers []Peer `group:"peer" description:"configured peer, one [Peer] section per entry"`
}

// Parse reads Config from args (typically os.Args[1:]), applying
// go-flags' usual flag-parsing conventions. It does not populate Peers;
// call LoadIniFile for that.
func Parse(args []string) (*Config, error) {
	var cfg Config
	parser := flags.NewParser(&cfg, flags.Default)
	if _, err := parser.ParseArgs(args); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadIniFile merges settings from an INI config file into cfg,
// including repeated [Peer] sections into cfg.Peers. CLI flags parsed
// first with Parse take precedence over file values that go-flags
// considers already set.
func LoadIniFile(cfg *Config, path string) error {
	parser := flags.NewParser(cfg, flags.Default)
	iniParser := flags.NewIniParser(parser)
	return iniParser.ParseFile(path)
}

// PrivateKeyBytes decodes SignerPrivateKey into its raw 32 bytes.
func (c *Config) PrivateKeyBytes() ([32]byte, error) {
	var out [32]byte
	raw, err := hex.DecodeString(c.SignerPrivateKey)
	if err != nil {
		return out, fmt.Errorf("config: signer_private_key: %w", err)
	}
	if len(raw) != len(out) {
		return out, fmt.Errorf("config: signer_private_key: want 32 bytes, got %d", len(raw))
	}
	copy(out[:], raw)
	return out, nil
}

// Strategy resolves PoolStrategy into a mempool.Strategy, defaulting to
// FIFO for an unrecognized value.
func (c *Config) Strategy() mempool.Strategy {
	switch c.PoolStrategy {
	case "priority":
		return mempool.PRIORITY
	case "vip":
		return mempool.VIP
	default:
		return mempool.FIFO
	}
}
