// Package answer decides the shape of a response given retrieval results and
// an unsupported-query policy, and generates the response text via an LLM
// provider chain.
//
// The decision logic is a small, fully-enumerable table over (citations
// empty or not) × policy × include_response. Generation and auditing are
// deliberately separate: this package never writes the evidence log, so both
// sides stay independently testable.
package answer

import (
	"errors"
	"fmt"
)

// Policy selects the behavior when retrieval finds no supporting citations.
type Policy string

// Unsupported-query policies.
const (
	// PolicyRefuse declines to answer when nothing in the corpus supports
	// the query.
	PolicyRefuse Policy = "refuse"

	// PolicyFlag answers but prepends a prominent warning that the answer
	// is not grounded in approved documents.
	PolicyFlag Policy = "flag"

	// PolicyAllow answers normally without grounding.
	PolicyAllow Policy = "allow"
)

// ErrInvalidPolicy indicates an unrecognized unsupported-query policy.
var ErrInvalidPolicy = errors.New("invalid unsupported policy")

// Valid reports whether p is a known policy.
func (p Policy) Valid() bool {
	switch p {
	case PolicyRefuse, PolicyFlag, PolicyAllow:
		return true
	}
	return false
}

// ParsePolicy converts a string into a Policy.
func ParsePolicy(s string) (Policy, error) {
	p := Policy(s)
	if !p.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidPolicy, s)
	}
	return p, nil
}
