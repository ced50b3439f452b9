// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package cmd

import (
	"github.com/spf13/cobra"

	"github.com/mia-platform/logkit/internal/security"
)

const (
	cryptoConfigFlagName  = "crypto-config"
	cryptoConfigFlagShort = "c"
	cryptoConfigFlagUsage = "Path to a YAML file with the crypto configuration. When missing the SECURITY_* environment variables are used."

	keyAliasFlagName  = "key-alias"
	keyAliasFlagUsage = "Alias of the signing key, defaults to the keystore alias"

	keyPasswordFlagName  = "key-password"
	keyPasswordFlagUsage = "Password of the signing key, defaults to the keystore password"
)

// flags collects the CLI options shared by the serve, sign and validate commands.
type flags struct {
	cryptoConfigPath string
	keyAlias         string
	keyPassword      string
}

// addFlags registers the CLI flags on cmd.
func (f *flags) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.cryptoConfigPath, cryptoConfigFlagName, cryptoConfigFlagShort, "", cryptoConfigFlagUsage)
	cmd.Flags().StringVar(&f.keyAlias, keyAliasFlagName, "", keyAliasFlagUsage)
	cmd.Flags().StringVar(&f.keyPassword, keyPasswordFlagName, "", keyPasswordFlagUsage)
}

// toOptions builds an options instance from the parsed flags and CLI arguments.
func (f *flags) toOptions(cmd *cobra.Command, args []string) (*options, error) {
	input := stdinArg
	if len(args) > 0 {
		input = args[0]
	}

	var (
		config *security.CryptoConfig
		err    error
	)
	if f.cryptoConfigPath != "" {
		config, err = security.LoadCryptoConfigFromFile(f.cryptoConfigPath)
	} else {
		config, err = security.LoadCryptoConfig()
	}
	if err != nil {
		return nil, err
	}

	if f.keyAlias != "" {
		config.KeyAlias = f.keyAlias
	}
	if f.keyPassword != "" {
		config.KeyPassword = f.keyPassword
	}

	return &options{
		cryptoConfig: config,
		input:        input,
		stdin:        cmd.InOrStdin(),
		stdout:       cmd.OutOrStdout(),
		serverGetter: defaultServerGetter,
	}, nil
}
