// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package security

import (
	"errors"
	"fmt"

	"github.com/beevik/etree"
	"github.com/google/uuid"
)

const (
	NamespaceSOAP11 = "http://schemas.xmlsoap.org/soap/envelope/"
	NamespaceSOAP12 = "http://www.w3.org/2003/05/soap-envelope"
	NamespaceWSSE   = "http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-wssecurity-secext-1.0.xsd"
	NamespaceWSU    = "http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-wssecurity-utility-1.0.xsd"
	NamespaceDSig   = "http://www.w3.org/2000/09/xmldsig#"

	AlgorithmExcC14N   = "http://www.w3.org/2001/10/xml-exc-c14n#"
	AlgorithmRSASHA256 = "http://www.w3.org/2001/04/xmldsig-more#rsa-sha256"
	AlgorithmSHA256    = "http://www.w3.org/2001/04/xmlenc#sha256"

	referenceIDAttr = "wsu:Id"
	placeholder     = "placeholder"
)

var ErrInvalidEnvelope = errors.New("invalid SOAP envelope")

// soapVersion holds the version dependent names of an envelope.
type soapVersion struct {
	namespace          string
	mustUnderstandTrue string
}

var (
	soap11 = soapVersion{namespace: NamespaceSOAP11, mustUnderstandTrue: "1"}
	soap12 = soapVersion{namespace: NamespaceSOAP12, mustUnderstandTrue: "true"}
)

// envelope is a parsed SOAP message with the elements the interceptors work on.
type envelope struct {
	doc     *etree.Document
	root    *etree.Element
	version soapVersion
}

func parseEnvelope(data []byte) (*envelope, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidEnvelope, err)
	}

	root := doc.Root()
	if root == nil || root.Tag != "Envelope" {
		return nil, fmt.Errorf("%w: missing Envelope element", ErrInvalidEnvelope)
	}

	var version soapVersion
	switch root.NamespaceURI() {
	case NamespaceSOAP11:
		version = soap11
	case NamespaceSOAP12:
		version = soap12
	default:
		return nil, fmt.Errorf("%w: unknown envelope namespace %q", ErrInvalidEnvelope, root.NamespaceURI())
	}

	return &envelope{doc: doc, root: root, version: version}, nil
}

// qualified returns tag with the prefix used by the envelope element.
func (e *envelope) qualified(tag string) string {
	if e.root.Space == "" {
		return tag
	}
	return e.root.Space + ":" + tag
}

func (e *envelope) body() (*etree.Element, error) {
	body := childElement(e.root, "Body", e.version.namespace)
	if body == nil {
		return nil, fmt.Errorf("%w: missing Body element", ErrInvalidEnvelope)
	}
	return body, nil
}

// header returns the SOAP Header, inserting it before the Body when missing.
func (e *envelope) header() *etree.Element {
	if header := childElement(e.root, "Header", e.version.namespace); header != nil {
		return header
	}

	header := etree.NewElement(e.qualified("Header"))
	e.root.InsertChildAt(0, header)
	return header
}

// securityHeader returns the wsse:Security header block, creating it when missing.
func (e *envelope) securityHeader() *etree.Element {
	header := e.header()
	if security := childElement(header, "Security", NamespaceWSSE); security != nil {
		return security
	}

	security := header.CreateElement("wsse:Security")
	if e.root.Space != "" {
		security.CreateAttr(e.qualified("mustUnderstand"), e.version.mustUnderstandTrue)
	}
	return security
}

// ensureNamespaces declares the WS-Security prefixes on the envelope element.
func (e *envelope) ensureNamespaces() {
	declarations := map[string]string{
		"xmlns:wsse": NamespaceWSSE,
		"xmlns:wsu":  NamespaceWSU,
	}
	for key, value := range declarations {
		if e.root.SelectAttr(key) == nil {
			e.root.CreateAttr(key, value)
		}
	}
}

// elementID returns the wsu:Id of elem, assigning a fresh one when missing.
func elementID(elem *etree.Element, prefix string) string {
	if id := elem.SelectAttrValue(referenceIDAttr, ""); id != "" {
		return id
	}

	id := prefix + uuid.NewString()
	elem.CreateAttr(referenceIDAttr, id)
	return id
}

// childElement returns the first direct child of parent matching local name and namespace.
func childElement(parent *etree.Element, local, namespace string) *etree.Element {
	for _, child := range parent.ChildElements() {
		if child.Tag == local && child.NamespaceURI() == namespace {
			return child
		}
	}
	return nil
}

// findElement searches the subtree of parent depth first.
func findElement(parent *etree.Element, local, namespace string) *etree.Element {
	for _, child := range parent.ChildElements() {
		if child.Tag == local && child.NamespaceURI() == namespace {
			return child
		}
		if found := findElement(child, local, namespace); found != nil {
			return found
		}
	}
	return nil
}

// wsuID returns the wsu:Id of elem whatever prefix binds the utility namespace.
func wsuID(elem *etree.Element) string {
	for _, attr := range elem.Attr {
		if attr.Key == "Id" && attr.NamespaceURI() == NamespaceWSU {
			return attr.Value
		}
	}
	return ""
}

// walkElements calls fn on elem and on every element below it.
func walkElements(elem *etree.Element, fn func(*etree.Element)) {
	fn(elem)
	for _, child := range elem.ChildElements() {
		walkElements(child, fn)
	}
}
