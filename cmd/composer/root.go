package main

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/code-payments/composability-codec/pkg/composability"
	"github.com/code-payments/composability-codec/pkg/metrics"
)

const (
	envPrefix = "COMPOSER"

	configFlag          = "config"
	logLevelFlag        = "log-level"
	outputFlag          = "output"
	byteOrderFlag       = "byte-order"
	seedVersionFlag     = "seed-version"
	newRelicAppFlag     = "newrelic-app"
	newRelicLicenseFlag = "newrelic-license"

	outputText = "text"
	outputJSON = "json"
)

// app holds the state shared by every subcommand for one invocation.
type app struct {
	v   *viper.Viper
	log *logrus.Entry
	nr  *newrelic.Application
}

// NewRootCmd constructs the composer command tree. Every flag can also be set
// through a COMPOSER_ prefixed environment variable or the config file.
func NewRootCmd() *cobra.Command {
	a := &app{
		v:   viper.New(),
		log: logrus.StandardLogger().WithField("type", "cmd/composer"),
	}

	var endTxn func()
	rootCmd := &cobra.Command{
		Use:           "composer",
		Short:         "Encode, decode and submit Solana instructions through an EVM composability bridge",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := a.init(cmd); err != nil {
				return err
			}

			ctx := metrics.NewContext(cmd.Context(), a.nr)
			ctx, endTxn = metrics.StartTransaction(ctx, cmd.CommandPath())
			cmd.SetContext(ctx)
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if endTxn != nil {
				endTxn()
			}
			if a.nr != nil {
				a.nr.Shutdown(5 * time.Second)
			}
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.String(configFlag, "", "Path to a config file (yaml, json or toml)")
	flags.String(logLevelFlag, "info", "Log level (trace, debug, info, warn, error)")
	flags.StringP(outputFlag, "o", outputText, "Output format: text|json")
	flags.String(byteOrderFlag, "big", "Byte order of length prefixes: big|little")
	flags.Uint8(seedVersionFlag, composability.DefaultSeedVersion, "Seed version used for bridge account derivations")
	flags.String(newRelicAppFlag, "composer", "New Relic application name")
	flags.String(newRelicLicenseFlag, "", "New Relic license key; tracing is disabled when empty")

	rootCmd.AddCommand(
		newEncodeCmd(a),
		newDecodeCmd(a),
		newAddressCmd(a),
		newDeriveCmd(a),
		newBuildCmd(a),
		newSubmitCmd(a),
		newNeonAddressCmd(a),
		newRentCmd(a),
		newAccountCmd(a),
	)

	rootCmd.SetContext(context.Background())
	return rootCmd
}

func (a *app) init(cmd *cobra.Command) error {
	a.v.SetEnvPrefix(envPrefix)
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()

	if err := a.v.BindPFlags(cmd.Flags()); err != nil {
		return errors.Wrap(err, "failed to bind flags")
	}

	if path := a.v.GetString(configFlag); path != "" {
		a.v.SetConfigFile(path)
		if err := a.v.ReadInConfig(); err != nil {
			return errors.Wrapf(err, "failed to read config file %s", path)
		}
	}

	level, err := logrus.ParseLevel(a.v.GetString(logLevelFlag))
	if err != nil {
		return errors.Wrap(err, "invalid log level")
	}
	logrus.SetLevel(level)

	if license := a.v.GetString(newRelicLicenseFlag); license != "" {
		a.nr, err = newrelic.NewApplication(
			newrelic.ConfigAppName(a.v.GetString(newRelicAppFlag)),
			newrelic.ConfigLicense(license),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			return errors.Wrap(err, "failed to create new relic application")
		}
		logrus.SetFormatter(metrics.NewLogFormatter(a.nr, &logrus.TextFormatter{}))
	}

	return nil
}

func (a *app) codec() (*composability.Codec, error) {
	switch strings.ToLower(a.v.GetString(byteOrderFlag)) {
	case "", "big":
		return composability.NewCodec(), nil
	case "little":
		return composability.NewCodec(composability.WithByteOrder(binary.LittleEndian)), nil
	default:
		return nil, errors.Errorf("invalid byte order %q", a.v.GetString(byteOrderFlag))
	}
}

func (a *app) deriver() *composability.Deriver {
	return composability.NewDeriver(composability.DerivationOptions{
		SeedVersion: uint8(a.v.GetUint(seedVersionFlag)),
	})
}

// print writes value as indented JSON, or text through the provided function
// when the output format is text.
func (a *app) print(cmd *cobra.Command, value interface{}, text func() string) error {
	switch a.v.GetString(outputFlag) {
	case outputJSON:
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(value)
	case outputText, "":
		_, err := fmt.Fprintln(cmd.OutOrStdout(), text())
		return err
	default:
		return errors.Errorf("invalid --output: %s (use json|text)", a.v.GetString(outputFlag))
	}
}
