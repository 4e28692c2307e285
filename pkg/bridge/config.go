package bridge

import (
	"time"

	"github.com/spf13/viper"

	"github.com/code-payments/composability-codec/pkg/config"
	"github.com/code-payments/composability-codec/pkg/config/env"
	"github.com/code-payments/composability-codec/pkg/config/memory"
	viperconfig "github.com/code-payments/composability-codec/pkg/config/viper"
	"github.com/code-payments/composability-codec/pkg/config/wrapper"
)

const (
	envConfigPrefix = "BRIDGE_CLIENT_"

	ConfirmationDepthConfigEnvName = envConfigPrefix + "CONFIRMATION_DEPTH"
	defaultConfirmationDepth       = 1

	PollIntervalConfigEnvName = envConfigPrefix + "POLL_INTERVAL"
	defaultPollInterval       = time.Second

	ConfirmationTimeoutConfigEnvName = envConfigPrefix + "CONFIRMATION_TIMEOUT"
	defaultConfirmationTimeout       = 2 * time.Minute

	GasLimitConfigEnvName = envConfigPrefix + "GAS_LIMIT"
	defaultGasLimit       = 0

	ReadAttemptsConfigEnvName = envConfigPrefix + "READ_ATTEMPTS"
	defaultReadAttempts       = 3

	NeonAddressCacheSizeConfigEnvName = envConfigPrefix + "NEON_ADDRESS_CACHE_SIZE"
	defaultNeonAddressCacheSize       = 10_000
)

// Keys read by WithViperConfigs.
const (
	ConfirmationDepthConfigKey    = "confirmation_depth"
	PollIntervalConfigKey         = "poll_interval"
	ConfirmationTimeoutConfigKey  = "confirmation_timeout"
	GasLimitConfigKey             = "gas_limit"
	ReadAttemptsConfigKey         = "read_attempts"
	NeonAddressCacheSizeConfigKey = "neon_address_cache_size"
)

type conf struct {
	confirmationDepth    config.Uint64
	pollInterval         config.Duration
	confirmationTimeout  config.Duration
	gasLimit             config.Uint64
	readAttempts         config.Uint64
	neonAddressCacheSize config.Uint64
}

// ConfigProvider defines how config values are pulled
type ConfigProvider func() *conf

// WithEnvConfigs returns configuration pulled from environment variables
func WithEnvConfigs() ConfigProvider {
	return func() *conf {
		return &conf{
			confirmationDepth:    env.NewUint64Config(ConfirmationDepthConfigEnvName, defaultConfirmationDepth),
			pollInterval:         env.NewDurationConfig(PollIntervalConfigEnvName, defaultPollInterval),
			confirmationTimeout:  env.NewDurationConfig(ConfirmationTimeoutConfigEnvName, defaultConfirmationTimeout),
			gasLimit:             env.NewUint64Config(GasLimitConfigEnvName, defaultGasLimit),
			readAttempts:         env.NewUint64Config(ReadAttemptsConfigEnvName, defaultReadAttempts),
			neonAddressCacheSize: env.NewUint64Config(NeonAddressCacheSizeConfigEnvName, defaultNeonAddressCacheSize),
		}
	}
}

// WithViperConfigs returns configuration pulled from v, which typically has
// command line flags, a config file and the environment bound to it.
func WithViperConfigs(v *viper.Viper) ConfigProvider {
	return func() *conf {
		return &conf{
			confirmationDepth:    viperconfig.NewUint64Config(v, ConfirmationDepthConfigKey, defaultConfirmationDepth),
			pollInterval:         viperconfig.NewDurationConfig(v, PollIntervalConfigKey, defaultPollInterval),
			confirmationTimeout:  viperconfig.NewDurationConfig(v, ConfirmationTimeoutConfigKey, defaultConfirmationTimeout),
			gasLimit:             viperconfig.NewUint64Config(v, GasLimitConfigKey, defaultGasLimit),
			readAttempts:         viperconfig.NewUint64Config(v, ReadAttemptsConfigKey, defaultReadAttempts),
			neonAddressCacheSize: viperconfig.NewUint64Config(v, NeonAddressCacheSizeConfigKey, defaultNeonAddressCacheSize),
		}
	}
}

type testOverrides struct {
	confirmationDepth   uint64
	pollInterval        time.Duration
	confirmationTimeout time.Duration
	gasLimit            uint64
}

func withManualTestOverrides(overrides *testOverrides) ConfigProvider {
	return func() *conf {
		return &conf{
			confirmationDepth:    wrapper.NewUint64Config(memory.NewConfig(overrides.confirmationDepth), defaultConfirmationDepth),
			pollInterval:         wrapper.NewDurationConfig(memory.NewConfig(overrides.pollInterval), defaultPollInterval),
			confirmationTimeout:  wrapper.NewDurationConfig(memory.NewConfig(overrides.confirmationTimeout), defaultConfirmationTimeout),
			gasLimit:             wrapper.NewUint64Config(memory.NewConfig(overrides.gasLimit), defaultGasLimit),
			readAttempts:         wrapper.NewUint64Config(memory.NewConfig(uint64(1)), defaultReadAttempts),
			neonAddressCacheSize: wrapper.NewUint64Config(memory.NewConfig(uint64(2)), defaultNeonAddressCacheSize),
		}
	}
}
