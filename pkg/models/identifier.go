package models

import (
	"fmt"
	"strings"
)

// Identifier type tags.
const (
	IDTypeFunder     = "funder"
	IDTypeGrant      = "grant"
	IDTypeEmployeeID = "employeeid"
)

// Identifier is a natural key qualified by the deployment's domain and a
// type tag, e.g. johnshopkins.edu:grant:12345. Two Identifiers are equal when
// their serialized forms are equal.
type Identifier struct {
	Domain string
	Type   string
	Value  string
}

// NewIdentifier builds an Identifier.
func NewIdentifier(domain, idType, value string) Identifier {
	return Identifier{Domain: domain, Type: idType, Value: value}
}

// Serialize renders the identifier as domain:type:value.
func (id Identifier) Serialize() string {
	return id.Domain + ":" + id.Type + ":" + id.Value
}

func (id Identifier) String() string { return id.Serialize() }

// ParseIdentifier splits a serialized identifier. The value part may itself
// contain colons.
func ParseIdentifier(s string) (Identifier, error) {
	parts := strings.SplitN(s, ":", 3)
	if len(parts) != 3 {
		return Identifier{}, fmt.Errorf("malformed identifier %q", s)
	}
	return Identifier{Domain: parts[0], Type: parts[1], Value: parts[2]}, nil
}
