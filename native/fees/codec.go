package fees

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

type configAlias struct {
	LockFeeBps   int64  `json:"lockFeeBps"`
	SettleFeeBps int64  `json:"settleFeeBps"`
	Recipient    string `json:"feeRecipient"`
	Enabled      bool   `json:"feeEnabled"`
}

// MarshalJSON renders the configuration with a hex-encoded recipient so the
// payload survives round trips through config files and RPC surfaces.
func (c Config) MarshalJSON() ([]byte, error) {
	return json.Marshal(configAlias{
		LockFeeBps:   c.LockFeeBps,
		SettleFeeBps: c.SettleFeeBps,
		Recipient:    hex.EncodeToString(c.Recipient[:]),
		Enabled:      c.Enabled,
	})
}

// UnmarshalJSON decodes the camelCase JSON form. Rates are validated so an
// out-of-range value never reaches the stored configuration.
func (c *Config) UnmarshalJSON(data []byte) error {
	var decoded configAlias
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	return c.fromAlias(decoded)
}

// UnmarshalTOML performs a best-effort conversion from snake_case TOML keys
// into the camelCase JSON structure used throughout the fee engine.
func (c *Config) UnmarshalTOML(data interface{}) error {
	table, ok := data.(map[string]interface{})
	if !ok {
		return fmt.Errorf("fees: fee config must decode from a table")
	}
	normalized := make(map[string]interface{}, len(table))
	for key, value := range table {
		switch {
		case strings.EqualFold(key, "lock_fee_bps"), strings.EqualFold(key, "lockFeeBps"):
			normalized["lockFeeBps"] = value
		case strings.EqualFold(key, "settle_fee_bps"), strings.EqualFold(key, "settleFeeBps"):
			normalized["settleFeeBps"] = value
		case strings.EqualFold(key, "fee_recipient"), strings.EqualFold(key, "feeRecipient"):
			normalized["feeRecipient"] = value
		case strings.EqualFold(key, "fee_enabled"), strings.EqualFold(key, "feeEnabled"):
			normalized["feeEnabled"] = value
		default:
			normalized[key] = value
		}
	}
	blob, err := json.Marshal(normalized)
	if err != nil {
		return err
	}
	var decoded configAlias
	if err := json.Unmarshal(blob, &decoded); err != nil {
		return err
	}
	return c.fromAlias(decoded)
}

func (c *Config) fromAlias(decoded configAlias) error {
	if err := ValidateRate(decoded.LockFeeBps); err != nil {
		return fmt.Errorf("fees: lock fee rate %d: %w", decoded.LockFeeBps, err)
	}
	if err := ValidateRate(decoded.SettleFeeBps); err != nil {
		return fmt.Errorf("fees: settle fee rate %d: %w", decoded.SettleFeeBps, err)
	}
	recipient, err := ParseAddress(decoded.Recipient)
	if err != nil {
		return err
	}
	*c = Config{
		LockFeeBps:   decoded.LockFeeBps,
		SettleFeeBps: decoded.SettleFeeBps,
		Recipient:    recipient,
		Enabled:      decoded.Enabled,
	}
	if c.Enabled && c.Recipient == ([20]byte{}) {
		return ErrRecipientUnset
	}
	return nil
}

// ParseAddress decodes a 20-byte identity from its hex form. An empty string
// yields the zero address. A 0x prefix is tolerated.
func ParseAddress(raw string) ([20]byte, error) {
	var addr [20]byte
	trimmed := strings.TrimSpace(raw)
	trimmed = strings.TrimPrefix(trimmed, "0x")
	if trimmed == "" {
		return addr, nil
	}
	decoded, err := hex.DecodeString(trimmed)
	if err != nil {
		return addr, fmt.Errorf("fees: invalid fee recipient %q: %w", raw, err)
	}
	if len(decoded) != len(addr) {
		return addr, fmt.Errorf("fees: fee recipient must be %d bytes, got %d", len(addr), len(decoded))
	}
	copy(addr[:], decoded)
	return addr, nil
}
