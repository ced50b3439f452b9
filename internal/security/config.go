// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package security

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const (
	ProviderMerlin = "merlin"

	KeystoreTypePKCS12 = "pkcs12"
	KeystoreTypePEM    = "pem"

	PropertyProvider         = "crypto.provider"
	PropertyKeystoreType     = "crypto.keystore.type"
	PropertyKeystorePassword = "crypto.keystore.password"
	PropertyKeystoreAlias    = "crypto.keystore.alias"
	PropertyKeystoreFile     = "crypto.keystore.file"

	redactedValue = "******"
)

var (
	ErrConfigNotValid = errors.New("crypto configuration not valid")

	supportedProviders     = []string{ProviderMerlin}
	supportedKeystoreTypes = []string{KeystoreTypePKCS12, KeystoreTypePEM}
)

// CryptoConfig describes where the signing material lives.
type CryptoConfig struct {
	Provider         string `env:"SECURITY_CRYPTO_PROVIDER" envDefault:"merlin" yaml:"provider"`
	KeystoreType     string `env:"SECURITY_CRYPTO_KEYSTORE_TYPE" envDefault:"pkcs12" yaml:"keystoreType"`
	KeystorePassword string `env:"SECURITY_CRYPTO_KEYSTORE_PASSWORD" yaml:"keystorePassword"`
	KeystoreAlias    string `env:"SECURITY_CRYPTO_KEYSTORE_ALIAS" yaml:"keystoreAlias"`
	KeystoreFile     string `env:"SECURITY_CRYPTO_KEYSTORE_FILE" yaml:"keystoreFile"`

	KeyAlias    string `env:"SECURITY_KEY_ALIAS" yaml:"keyAlias"`
	KeyPassword string `env:"SECURITY_KEY_PASSWORD" yaml:"keyPassword"`
}

// Properties is the flat property set consumed by NewCrypto.
type Properties map[string]string

// Redacted returns a copy of p safe to be logged.
func (p Properties) Redacted() Properties {
	redacted := make(Properties, len(p))
	for key, value := range p {
		if key == PropertyKeystorePassword && value != "" {
			value = redactedValue
		}
		redacted[key] = value
	}
	return redacted
}

// LoadCryptoConfig reads the crypto configuration from the environment.
func LoadCryptoConfig() (*CryptoConfig, error) {
	var config CryptoConfig
	if err := env.Parse(&config); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrConfigNotValid, err.Error())
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// LoadCryptoConfigFromFile reads the crypto configuration from a YAML file. Fields
// missing from the file keep the same defaults used for the environment.
func LoadCryptoConfigFromFile(path string) (*CryptoConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfigNotValid, err)
	}

	config := CryptoConfig{
		Provider:     ProviderMerlin,
		KeystoreType: KeystoreTypePKCS12,
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrConfigNotValid, path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate reports every invalid field at once.
func (c *CryptoConfig) Validate() error {
	configErrors := make([]string, 0)

	if !slices.Contains(supportedProviders, strings.ToLower(c.Provider)) {
		configErrors = append(configErrors, fmt.Sprintf("unsupported crypto provider %q", c.Provider))
	}
	if !slices.Contains(supportedKeystoreTypes, strings.ToLower(c.KeystoreType)) {
		configErrors = append(configErrors, fmt.Sprintf("unsupported keystore type %q", c.KeystoreType))
	}
	if c.KeystoreFile == "" {
		configErrors = append(configErrors, "keystore file is required")
	}
	if c.KeystoreAlias == "" {
		configErrors = append(configErrors, "keystore alias is required")
	}

	if len(configErrors) > 0 {
		return fmt.Errorf("%w: %s", ErrConfigNotValid, strings.Join(configErrors, ", "))
	}
	return nil
}

// Properties returns the crypto properties described by c.
func (c *CryptoConfig) Properties() Properties {
	return Properties{
		PropertyProvider:         c.Provider,
		PropertyKeystoreType:     c.KeystoreType,
		PropertyKeystorePassword: c.KeystorePassword,
		PropertyKeystoreAlias:    c.KeystoreAlias,
		PropertyKeystoreFile:     c.KeystoreFile,
	}
}
