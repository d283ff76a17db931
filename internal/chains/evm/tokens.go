package evm

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
)

// Token describes a non-native asset a donation may claim: its contract
// address and decimal scale on one network.
type Token struct {
	Symbol    string `toml:"symbol"`
	NetworkID int    `toml:"networkId"`
	Address   string `toml:"address"`
	Decimals  int    `toml:"decimals"`
}

type tokensFile struct {
	Tokens []Token `toml:"token"`
}

// TokenRegistry resolves (symbol, network) to a token definition.
type TokenRegistry struct {
	tokens map[string]Token
}

// NewTokenRegistry builds a registry from token definitions.
func NewTokenRegistry(tokens []Token) *TokenRegistry {
	r := &TokenRegistry{tokens: make(map[string]Token, len(tokens))}
	for _, t := range tokens {
		r.tokens[tokenKey(t.Symbol, t.NetworkID)] = t
	}
	return r
}

// LoadTokensFile parses the TOML token registry file.
func LoadTokensFile(path string) (*TokenRegistry, error) {
	var f tokensFile
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return nil, fmt.Errorf("parsing tokens file: %w", err)
	}
	for _, t := range f.Tokens {
		if t.Symbol == "" || t.Address == "" || t.NetworkID <= 0 {
			return nil, fmt.Errorf("incomplete token entry %+v in %s", t, path)
		}
		if t.Decimals <= 0 {
			return nil, fmt.Errorf("token %s on network %d has invalid decimals %d", t.Symbol, t.NetworkID, t.Decimals)
		}
	}
	return NewTokenRegistry(f.Tokens), nil
}

// Lookup returns the token for a symbol on a network.
func (r *TokenRegistry) Lookup(symbol string, networkID int) (Token, bool) {
	t, ok := r.tokens[tokenKey(symbol, networkID)]
	return t, ok
}

func tokenKey(symbol string, networkID int) string {
	return fmt.Sprintf("%s@%d", strings.ToUpper(symbol), networkID)
}
