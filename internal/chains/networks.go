package chains

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// NetworkConfig describes one supported network as loaded from the
// networks YAML file.
type NetworkConfig struct {
	ID   int    `yaml:"id"`
	Name string `yaml:"name"`
	// NativeSymbol is the currency of plain value transfers (ETH, XDAI).
	NativeSymbol string `yaml:"nativeSymbol"`
	// RPCEndpoint is the JSON-RPC URL used for hash and nonce lookups.
	RPCEndpoint string `yaml:"rpcEndpoint"`
	// ScanAPIEndpoint is an etherscan/blockscout style account API used to
	// list a sender's mined transactions for the speedup chase.
	ScanAPIEndpoint string `yaml:"scanApiEndpoint"`
	ScanAPIKey      string `yaml:"scanApiKey"`
	// RequestsPerSecond throttles all outbound calls for this network.
	RequestsPerSecond float64 `yaml:"requestsPerSecond"`
}

type networksFile struct {
	Networks []NetworkConfig `yaml:"networks"`
}

// LoadNetworksFile parses the networks YAML file. ${VAR} references in the
// file are expanded from the environment, so API keys stay out of it.
func LoadNetworksFile(path string) ([]NetworkConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading networks file: %w", err)
	}
	var f networksFile
	if err := yaml.Unmarshal([]byte(os.Expand(string(data), os.Getenv)), &f); err != nil {
		return nil, fmt.Errorf("parsing networks file: %w", err)
	}
	if len(f.Networks) == 0 {
		return nil, fmt.Errorf("networks file %s lists no networks", path)
	}
	for _, n := range f.Networks {
		if n.ID <= 0 {
			return nil, fmt.Errorf("network %q has invalid id %d", n.Name, n.ID)
		}
		if n.RPCEndpoint == "" {
			return nil, fmt.Errorf("network %q has no rpcEndpoint", n.Name)
		}
	}
	return f.Networks, nil
}
