// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package audit

// Event classifies an audited operation.
type Event string

const (
	EventRequestResponse     Event = "REQUEST_RESPONSE"
	EventRESTRequestResponse Event = "REST_REQUEST_RESPONSE"
	EventSecurity            Event = "SECURITY"
)

func (e Event) String() string {
	return string(e)
}

// Auditable is the metadata attached to an audited operation.
type Auditable struct {
	Event    Event
	Activity string
}

// RequestResponse is the payload written in the audit log of an operation.
type RequestResponse struct {
	Request  any `json:"request"`
	Response any `json:"response,omitempty"`
}
