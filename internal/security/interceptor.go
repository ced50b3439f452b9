// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package security

import (
	"context"
	"sync"

	"github.com/mia-platform/logkit/internal/logger"
)

const loggerName = "logkit.security"

// Interceptor secures outgoing SOAP envelopes and validates incoming ones.
type Interceptor interface {
	SecureMessage(ctx context.Context, envelope []byte) ([]byte, error)
	ValidateMessage(ctx context.Context, envelope []byte) error
}

// EncryptionInterceptor carries the crypto configuration shared by the interceptors
// that need signing or encryption material.
type EncryptionInterceptor struct {
	config *CryptoConfig
	log    logger.Logger

	lock        sync.Mutex
	crypto      Crypto
	keyAlias    string
	keyPassword string
}

func newEncryptionInterceptor(config *CryptoConfig, log logger.Logger) EncryptionInterceptor {
	return EncryptionInterceptor{
		config:      config,
		log:         log.WithName(loggerName),
		keyAlias:    config.KeyAlias,
		keyPassword: config.KeyPassword,
	}
}

// RetrieveCryptoProps logs and returns the properties used to create the crypto.
func (e *EncryptionInterceptor) RetrieveCryptoProps() Properties {
	props := e.config.Properties()
	redacted := props.Redacted()

	e.log.Info("retrieving crypto properties",
		PropertyProvider, redacted[PropertyProvider],
		PropertyKeystoreType, redacted[PropertyKeystoreType],
		PropertyKeystorePassword, redacted[PropertyKeystorePassword],
		PropertyKeystoreAlias, redacted[PropertyKeystoreAlias],
		PropertyKeystoreFile, redacted[PropertyKeystoreFile],
	)
	return props
}

// Crypto returns the configured crypto, nil until set or first used.
func (e *EncryptionInterceptor) Crypto() Crypto {
	e.lock.Lock()
	defer e.lock.Unlock()
	return e.crypto
}

func (e *EncryptionInterceptor) SetCrypto(crypto Crypto) {
	e.lock.Lock()
	defer e.lock.Unlock()
	e.crypto = crypto
}

// KeyAlias returns the alias of the signing key, falling back to the keystore alias.
func (e *EncryptionInterceptor) KeyAlias() string {
	e.lock.Lock()
	defer e.lock.Unlock()
	if e.keyAlias == "" {
		return e.config.KeystoreAlias
	}
	return e.keyAlias
}

func (e *EncryptionInterceptor) SetKeyAlias(alias string) {
	e.lock.Lock()
	defer e.lock.Unlock()
	e.keyAlias = alias
}

// KeyPassword returns the password of the signing key, falling back to the keystore password.
func (e *EncryptionInterceptor) KeyPassword() string {
	e.lock.Lock()
	defer e.lock.Unlock()
	if e.keyPassword == "" {
		return e.config.KeystorePassword
	}
	return e.keyPassword
}

func (e *EncryptionInterceptor) SetKeyPassword(password string) {
	e.lock.Lock()
	defer e.lock.Unlock()
	e.keyPassword = password
}

// loadCrypto returns the configured crypto, creating it from the properties on first use.
func (e *EncryptionInterceptor) loadCrypto() (Crypto, error) {
	if crypto := e.Crypto(); crypto != nil {
		return crypto, nil
	}

	props := e.RetrieveCryptoProps()
	e.log.Debug("initializing crypto", "properties", props.Redacted())

	crypto, err := NewCrypto(props)
	if err != nil {
		return nil, err
	}

	e.lock.Lock()
	defer e.lock.Unlock()
	if e.crypto == nil {
		e.crypto = crypto
	}
	return e.crypto, nil
}
