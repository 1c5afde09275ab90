// Package ledger provides the access layer for the policy ledger network.
// It owns the per-request session lifecycle (open, bind, dispatch, release)
// and the positional-string wire encoding expected by the "trapeze"
// chaincode namespace.
package ledger

import (
	"encoding/json"
	"fmt"
)

// Storage describes where and for how long personal data is retained.
type Storage struct {
	Location string `json:"location"`
	Duration string `json:"duration"`
}

// Policy is the domain record stored on the ledger. The field names mirror
// the JSON keys used by the chaincode; the gateway never mutates a policy
// directly, only requests mutations via transactions.
type Policy struct {
	ID                   string  `json:"id"`
	CreationDate         string  `json:"creationDate"`
	DataSubject          string  `json:"hasDataSubject"`
	PersonalDataCategory string  `json:"hasPersonalDataCategory"`
	Processing           string  `json:"hasProcessing"`
	Purpose              string  `json:"hasPurpose"`
	Recipient            string  `json:"hasRecipient"`
	Storage              Storage `json:"hasStorage"`
}

// Args returns the policy encoded as the positional string arguments the
// chaincode write operations expect. The nested storage descriptor is
// flattened into location and duration; the order is part of the wire
// contract and must not change.
func (p *Policy) Args() []string {
	return []string{
		p.ID,
		p.CreationDate,
		p.DataSubject,
		p.PersonalDataCategory,
		p.Processing,
		p.Purpose,
		p.Recipient,
		p.Storage.Location,
		p.Storage.Duration,
	}
}

// DecodePolicy parses a single policy from raw transaction result bytes.
func DecodePolicy(data []byte) (*Policy, error) {
	var p Policy
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to decode policy payload: %w", err)
	}
	return &p, nil
}

// DecodePolicies parses a sequence of policies from raw transaction result
// bytes. An empty or absent payload decodes to an empty slice, matching the
// chaincode's representation of a ledger with no policies.
func DecodePolicies(data []byte) ([]Policy, error) {
	if len(data) == 0 {
		return []Policy{}, nil
	}
	var policies []Policy
	if err := json.Unmarshal(data, &policies); err != nil {
		return nil, fmt.Errorf("failed to decode policies payload: %w", err)
	}
	if policies == nil {
		policies = []Policy{}
	}
	return policies, nil
}
