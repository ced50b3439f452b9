// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package cmd

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mia-platform/logkit/internal/logger"
)

const (
	testAlias = "signer"

	testEnvelope = `<soapenv:Envelope xmlns:soapenv="http://schemas.xmlsoap.org/soap/envelope/">` +
		`<soapenv:Body><ping xmlns="urn:example">hello</ping></soapenv:Body>` +
		`</soapenv:Envelope>`
)

// setupKeystore writes a pem keystore and its crypto configuration file under a
// temporary directory and returns the configuration path.
func setupKeystore(tb testing.TB) string {
	tb.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(tb, err)

	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: testAlias},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	require.NoError(tb, err)

	baseDir := tb.TempDir()
	keysDir := filepath.Join(baseDir, "keys")
	require.NoError(tb, os.Mkdir(keysDir, 0o700))
	require.NoError(tb, os.WriteFile(
		filepath.Join(keysDir, testAlias+".crt"),
		pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}),
		0o600,
	))
	require.NoError(tb, os.WriteFile(
		filepath.Join(keysDir, testAlias+".key"),
		pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)}),
		0o600,
	))

	configPath := filepath.Join(baseDir, "crypto.yaml")
	config := fmt.Sprintf("keystoreType: pem\nkeystoreFile: %s\nkeystoreAlias: %s\n", keysDir, testAlias)
	require.NoError(tb, os.WriteFile(configPath, []byte(config), 0o600))
	return configPath
}

// writeEnvelope writes content in a temporary file and returns its path.
func writeEnvelope(tb testing.TB, content string) string {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "envelope.xml")
	require.NoError(tb, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// testContext returns a context carrying a logger that writes on the returned buffer.
func testContext(tb testing.TB) (context.Context, *bytes.Buffer) {
	tb.Helper()

	buffer := new(bytes.Buffer)
	return logger.WithContext(tb.Context(), logger.NewLogger(buffer)), buffer
}
