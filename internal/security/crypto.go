// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package security

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/pkcs12"
)

var (
	ErrCrypto         = errors.New("crypto initialization failed")
	ErrUnknownAlias   = errors.New("unknown key alias")
	ErrUnsupportedKey = errors.New("unsupported private key type")
)

// Crypto gives access to the certificates and private keys of a keystore.
type Crypto interface {
	// DefaultAlias is the alias configured for the keystore.
	DefaultAlias() string
	// Certificate returns the certificate stored under alias, or under the default
	// alias when alias is empty.
	Certificate(alias string) (*x509.Certificate, error)
	// PrivateKey returns the RSA key stored under alias, unlocked with password.
	PrivateKey(alias, password string) (*rsa.PrivateKey, error)
}

// NewCrypto builds a Crypto from its properties.
func NewCrypto(props Properties) (Crypto, error) {
	if provider := strings.ToLower(props[PropertyProvider]); provider != ProviderMerlin {
		return nil, fmt.Errorf("%w: unsupported provider %q", ErrCrypto, props[PropertyProvider])
	}

	alias := props[PropertyKeystoreAlias]
	file := props[PropertyKeystoreFile]
	if file == "" {
		return nil, fmt.Errorf("%w: missing %s", ErrCrypto, PropertyKeystoreFile)
	}

	switch keystoreType := strings.ToLower(props[PropertyKeystoreType]); keystoreType {
	case KeystoreTypePKCS12:
		return newPKCS12Crypto(file, alias, props[PropertyKeystorePassword])
	case KeystoreTypePEM:
		return newPEMCrypto(file, alias)
	default:
		return nil, fmt.Errorf("%w: unsupported keystore type %q", ErrCrypto, keystoreType)
	}
}

// pkcs12Crypto holds the single entry of a PKCS#12 bundle under the configured alias.
type pkcs12Crypto struct {
	alias       string
	key         *rsa.PrivateKey
	certificate *x509.Certificate
}

func newPKCS12Crypto(file, alias, password string) (*pkcs12Crypto, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCrypto, err)
	}

	key, certificate, err := pkcs12.Decode(data, password)
	if err != nil {
		return nil, fmt.Errorf("%w: decoding %s: %w", ErrCrypto, file, err)
	}

	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedKey, key)
	}

	return &pkcs12Crypto{
		alias:       alias,
		key:         rsaKey,
		certificate: certificate,
	}, nil
}

func (c *pkcs12Crypto) DefaultAlias() string {
	return c.alias
}

func (c *pkcs12Crypto) Certificate(alias string) (*x509.Certificate, error) {
	if err := c.checkAlias(alias); err != nil {
		return nil, err
	}
	return c.certificate, nil
}

func (c *pkcs12Crypto) PrivateKey(alias, _ string) (*rsa.PrivateKey, error) {
	if err := c.checkAlias(alias); err != nil {
		return nil, err
	}
	return c.key, nil
}

func (c *pkcs12Crypto) checkAlias(alias string) error {
	if alias != "" && alias != c.alias {
		return fmt.Errorf("%w: %s", ErrUnknownAlias, alias)
	}
	return nil
}

// pemCrypto reads <alias>.crt and <alias>.key from a directory.
type pemCrypto struct {
	dir   string
	alias string
}

func newPEMCrypto(dir, alias string) (*pemCrypto, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCrypto, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: keystore %s is not a directory", ErrCrypto, dir)
	}

	return &pemCrypto{dir: dir, alias: alias}, nil
}

func (c *pemCrypto) DefaultAlias() string {
	return c.alias
}

func (c *pemCrypto) Certificate(alias string) (*x509.Certificate, error) {
	block, err := c.readBlock(alias, ".crt")
	if err != nil {
		return nil, err
	}

	certificate, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing certificate: %w", ErrCrypto, err)
	}
	return certificate, nil
}

func (c *pemCrypto) PrivateKey(alias, password string) (*rsa.PrivateKey, error) {
	block, err := c.readBlock(alias, ".key")
	if err != nil {
		return nil, err
	}

	der := block.Bytes
	if x509.IsEncryptedPEMBlock(block) { //nolint:staticcheck // SA1019
		der, err = x509.DecryptPEMBlock(block, []byte(password)) //nolint:staticcheck // SA1019
		if err != nil {
			return nil, fmt.Errorf("%w: decrypting key: %w", ErrCrypto, err)
		}
	}

	return parseRSAKey(der)
}

func (c *pemCrypto) readBlock(alias, extension string) (*pem.Block, error) {
	if alias == "" {
		alias = c.alias
	}
	if alias == "" || strings.ContainsAny(alias, `/\`) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAlias, alias)
	}

	path := filepath.Join(c.dir, alias+extension)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownAlias, alias)
		}
		return nil, fmt.Errorf("%w: %w", ErrCrypto, err)
	}

	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("%w: no PEM data in %s", ErrCrypto, path)
	}
	return block, nil
}

func parseRSAKey(der []byte) (*rsa.PrivateKey, error) {
	if key, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return key, nil
	}

	key, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing private key: %w", ErrCrypto, err)
	}

	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedKey, key)
	}
	return rsaKey, nil
}
