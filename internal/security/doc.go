// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package security contains the WS-Security interceptors applied to SOAP envelopes.
//
// EncryptionInterceptor holds the crypto configuration and lazily builds the keystore
// access the first time a message is processed. SignatureInterceptor builds on it and
// signs the wsu:Timestamp, when present, and the SOAP Body with RSA-SHA256, referencing
// the signing certificate by issuer and serial number.
package security
