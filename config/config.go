package config

import (
	"fmt"
	"io"
	"strings"

	"github.com/BurntSushi/toml"

	"custodia/native/fees"
)

// Config is the on-disk configuration of a custody deployment: the custodian
// identity, the accepted asset and the fee defaults applied at genesis. The
// program section is optional; deployments without a pooled-balance program
// simply omit it.
type Config struct {
	Custody CustodyConfig  `toml:"custody"`
	Program *ProgramConfig `toml:"program"`
}

// CustodyConfig holds the custody section.
type CustodyConfig struct {
	Admin string       `toml:"admin"`
	Token string       `toml:"token"`
	Fees  *fees.Config `toml:"fees"`
}

// ProgramConfig describes the pooled-balance program account created at first
// boot.
type ProgramConfig struct {
	ID        string `toml:"id"`
	PayoutKey string `toml:"payout_key"`
	Token     string `toml:"token"`
}

// Load reads and validates the configuration at the given path.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Decode reads and validates a configuration from the supplied reader.
func Decode(r io.Reader) (*Config, error) {
	cfg := &Config{}
	if _, err := toml.NewDecoder(r).Decode(cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.Custody.Token) == "" {
		return fmt.Errorf("config: custody token must not be empty")
	}
	admin, err := c.AdminAddress()
	if err != nil {
		return err
	}
	if admin == ([20]byte{}) {
		return fmt.Errorf("config: custody admin must not be empty")
	}
	// Rates inside the fees table are validated by its decoder; here we only
	// guard the enabled/recipient pairing when no recipient was supplied.
	if c.Custody.Fees != nil && c.Custody.Fees.Enabled && c.Custody.Fees.Recipient == ([20]byte{}) {
		return fees.ErrRecipientUnset
	}
	if c.Program != nil {
		if strings.TrimSpace(c.Program.ID) == "" {
			return fmt.Errorf("config: program id must not be empty")
		}
		if strings.TrimSpace(c.Program.Token) == "" {
			return fmt.Errorf("config: program token must not be empty")
		}
		payoutKey, err := c.PayoutKeyAddress()
		if err != nil {
			return err
		}
		if payoutKey == ([20]byte{}) {
			return fmt.Errorf("config: program payout key must not be empty")
		}
	}
	return nil
}

// AdminAddress decodes the configured custodian identity.
func (c *Config) AdminAddress() ([20]byte, error) {
	addr, err := fees.ParseAddress(c.Custody.Admin)
	if err != nil {
		return [20]byte{}, fmt.Errorf("config: custody admin: %w", err)
	}
	return addr, nil
}

// PayoutKeyAddress decodes the configured program payout key. It returns the
// zero address when no program section was supplied.
func (c *Config) PayoutKeyAddress() ([20]byte, error) {
	if c.Program == nil {
		return [20]byte{}, nil
	}
	addr, err := fees.ParseAddress(c.Program.PayoutKey)
	if err != nil {
		return [20]byte{}, fmt.Errorf("config: program payout key: %w", err)
	}
	return addr, nil
}

// FeeDefaults returns the configured fee defaults, or the disabled zero-rate
// config pointing at the admin when no fees table was supplied.
func (c *Config) FeeDefaults() (fees.Config, error) {
	if c.Custody.Fees != nil {
		return *c.Custody.Fees, nil
	}
	admin, err := c.AdminAddress()
	if err != nil {
		return fees.Config{}, err
	}
	return fees.DefaultConfig(admin), nil
}
