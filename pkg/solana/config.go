package solana

import (
	"net/url"
	"strings"

	"github.com/pkg/errors"
)

// Environment is a Solana JSON RPC endpoint.
type Environment string

const (
	EnvironmentDev  Environment = "https://api.devnet.solana.com"
	EnvironmentTest Environment = "https://api.testnet.solana.com"
	EnvironmentProd Environment = "https://api.mainnet-beta.solana.com"
)

// ParseEnvironment resolves a cluster moniker (devnet, testnet, mainnet) or an
// http(s) URL into an Environment.
func ParseEnvironment(value string) (Environment, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "devnet", "dev":
		return EnvironmentDev, nil
	case "testnet", "test":
		return EnvironmentTest, nil
	case "mainnet", "mainnet-beta", "prod":
		return EnvironmentProd, nil
	}

	parsed, err := url.Parse(value)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return "", errors.Errorf("unknown solana environment %q", value)
	}
	return Environment(value), nil
}

func (e Environment) String() string {
	return string(e)
}
