// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package security

import (
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/beevik/etree"
	"github.com/leifj/signedxml"

	"github.com/mia-platform/logkit/internal/logger"
)

var (
	ErrSigning          = errors.New("failed signing message")
	ErrInvalidSignature = errors.New("invalid message signature")
)

// SignatureInterceptor signs the Timestamp and Body of outgoing envelopes and verifies
// the signature of incoming ones.
type SignatureInterceptor struct {
	EncryptionInterceptor
}

func NewSignatureInterceptor(config *CryptoConfig, log logger.Logger) *SignatureInterceptor {
	return &SignatureInterceptor{
		EncryptionInterceptor: newEncryptionInterceptor(config, log),
	}
}

// SecureMessage returns envelope with a WS-Security signature added to its header.
func (s *SignatureInterceptor) SecureMessage(ctx context.Context, envelope []byte) ([]byte, error) {
	signed, err := s.sign(ctx, envelope)
	if err != nil {
		s.log.Error("failed signing message", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrSigning, err)
	}

	s.log.Debug("message signed", "size", len(signed))
	return signed, nil
}

func (s *SignatureInterceptor) sign(ctx context.Context, data []byte) ([]byte, error) {
	crypto, err := s.loadCrypto()
	if err != nil {
		return nil, err
	}

	alias := s.KeyAlias()
	certificate, err := crypto.Certificate(alias)
	if err != nil {
		return nil, err
	}
	key, err := crypto.PrivateKey(alias, s.KeyPassword())
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	env, err := parseEnvelope(data)
	if err != nil {
		return nil, err
	}
	body, err := env.body()
	if err != nil {
		return nil, err
	}

	env.ensureNamespaces()
	security := env.securityHeader()

	references := make([]string, 0, 2)
	if timestamp := childElement(security, "Timestamp", NamespaceWSU); timestamp != nil {
		references = append(references, elementID(timestamp, "TS-"))
	}
	references = append(references, elementID(body, "id-"))

	appendSignatureTemplate(security, references, certificate)

	unsigned, err := env.doc.WriteToString()
	if err != nil {
		return nil, err
	}

	signer, err := signedxml.NewSigner(unsigned)
	if err != nil {
		return nil, err
	}
	signer.SetReferenceIDAttribute(referenceIDAttr)

	signed, err := signer.Sign(key)
	if err != nil {
		return nil, err
	}
	return []byte(signed), nil
}

// ValidateMessage verifies the signature carried in the security header of envelope.
func (s *SignatureInterceptor) ValidateMessage(ctx context.Context, envelope []byte) error {
	if err := s.validate(ctx, envelope); err != nil {
		s.log.Warn("message signature not valid", "error", err)
		return fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}

	s.log.Debug("message signature valid")
	return nil
}

func (s *SignatureInterceptor) validate(ctx context.Context, data []byte) error {
	crypto, err := s.loadCrypto()
	if err != nil {
		return err
	}
	certificate, err := crypto.Certificate(s.KeyAlias())
	if err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	env, err := parseEnvelope(data)
	if err != nil {
		return err
	}

	header := childElement(env.root, "Header", env.version.namespace)
	if header == nil {
		return errors.New("missing Header element")
	}
	security := childElement(header, "Security", NamespaceWSSE)
	if security == nil {
		return errors.New("missing Security header")
	}
	signature := childElement(security, "Signature", NamespaceDSig)
	if signature == nil {
		return errors.New("missing Signature element")
	}
	if err := checkIssuerSerial(signature, certificate); err != nil {
		return err
	}
	if err := checkSignedParts(env, security, signature); err != nil {
		return err
	}

	validator, err := signedxml.NewValidator(string(data))
	if err != nil {
		return err
	}
	validator.Certificates = append(validator.Certificates, *certificate)
	validator.SetReferenceIDAttribute(referenceIDAttr)

	if _, err := validator.ValidateReferences(); err != nil {
		return err
	}
	return nil
}

// appendSignatureTemplate adds the ds:Signature skeleton completed later by the signer.
func appendSignatureTemplate(security *etree.Element, references []string, certificate *x509.Certificate) {
	signature := security.CreateElement("ds:Signature")
	signature.CreateAttr("xmlns:ds", NamespaceDSig)

	signedInfo := signature.CreateElement("ds:SignedInfo")
	signedInfo.CreateElement("ds:CanonicalizationMethod").CreateAttr("Algorithm", AlgorithmExcC14N)
	signedInfo.CreateElement("ds:SignatureMethod").CreateAttr("Algorithm", AlgorithmRSASHA256)

	for _, id := range references {
		reference := signedInfo.CreateElement("ds:Reference")
		reference.CreateAttr("URI", "#"+id)

		transforms := reference.CreateElement("ds:Transforms")
		transforms.CreateElement("ds:Transform").CreateAttr("Algorithm", AlgorithmExcC14N)
		reference.CreateElement("ds:DigestMethod").CreateAttr("Algorithm", AlgorithmSHA256)
		reference.CreateElement("ds:DigestValue").SetText(placeholder)
	}

	signature.CreateElement("ds:SignatureValue").SetText(placeholder)

	tokenReference := signature.CreateElement("ds:KeyInfo").CreateElement("wsse:SecurityTokenReference")
	issuerSerial := tokenReference.CreateElement("ds:X509Data").CreateElement("ds:X509IssuerSerial")
	issuerSerial.CreateElement("ds:X509IssuerName").SetText(certificate.Issuer.String())
	issuerSerial.CreateElement("ds:X509SerialNumber").SetText(certificate.SerialNumber.String())
}

// checkIssuerSerial rejects signatures whose key identifier names another certificate.
func checkIssuerSerial(signature *etree.Element, certificate *x509.Certificate) error {
	issuerSerial := findElement(signature, "X509IssuerSerial", NamespaceDSig)
	if issuerSerial == nil {
		return nil
	}

	issuerElement := childElement(issuerSerial, "X509IssuerName", NamespaceDSig)
	if issuerElement == nil {
		return errors.New("missing X509IssuerName element")
	}
	if issuer := strings.TrimSpace(issuerElement.Text()); issuer != certificate.Issuer.String() {
		return fmt.Errorf("message signed by certificate of unknown issuer %q", issuer)
	}

	serialElement := childElement(issuerSerial, "X509SerialNumber", NamespaceDSig)
	if serialElement == nil {
		return errors.New("missing X509SerialNumber element")
	}

	text := strings.TrimSpace(serialElement.Text())
	serial, ok := new(big.Int).SetString(text, 10)
	if !ok {
		return fmt.Errorf("malformed serial number %q", text)
	}
	if serial.Cmp(certificate.SerialNumber) != 0 {
		return fmt.Errorf("message signed by unknown certificate with serial %s", serial)
	}
	return nil
}

// checkSignedParts binds the signature to the envelope: the Body and the Timestamp
// the receiver reads must be the elements the references point to, and each
// referenced id must identify a single element of the document.
func checkSignedParts(env *envelope, security, signature *etree.Element) error {
	signedInfo := childElement(signature, "SignedInfo", NamespaceDSig)
	if signedInfo == nil {
		return errors.New("missing SignedInfo element")
	}

	signedIDs := make(map[string]bool)
	for _, reference := range signedInfo.ChildElements() {
		if reference.Tag != "Reference" || reference.NamespaceURI() != NamespaceDSig {
			continue
		}
		uri := reference.SelectAttrValue("URI", "")
		id, found := strings.CutPrefix(uri, "#")
		if !found || id == "" {
			return fmt.Errorf("unsupported reference URI %q", uri)
		}
		signedIDs[id] = true
	}

	signatures := 0
	occurrences := make(map[string]int)
	walkElements(env.root, func(elem *etree.Element) {
		if elem.Tag == "Signature" && elem.NamespaceURI() == NamespaceDSig {
			signatures++
		}
		for _, attr := range elem.Attr {
			if attr.Key == "Id" {
				occurrences[attr.Value]++
			}
		}
	})
	if signatures != 1 {
		return fmt.Errorf("expected one Signature element, found %d", signatures)
	}
	for id := range signedIDs {
		if occurrences[id] != 1 {
			return fmt.Errorf("reference #%s must identify one element, found %d", id, occurrences[id])
		}
	}

	bodies := 0
	for _, child := range env.root.ChildElements() {
		if child.Tag == "Body" && child.NamespaceURI() == env.version.namespace {
			bodies++
		}
	}
	if bodies != 1 {
		return fmt.Errorf("%w: expected one Body element, found %d", ErrInvalidEnvelope, bodies)
	}

	body, err := env.body()
	if err != nil {
		return err
	}
	if !signedIDs[wsuID(body)] {
		return errors.New("signed parts do not include the Body element")
	}
	if timestamp := childElement(security, "Timestamp", NamespaceWSU); timestamp != nil && !signedIDs[wsuID(timestamp)] {
		return errors.New("signed parts do not include the Timestamp element")
	}
	return nil
}

