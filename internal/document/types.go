// Package document classifies extracted text and decides whether one image is a
// plausible official identity document of the requested side.
package document

import (
	"fmt"
	"strings"

	dErrors "docverify/pkg/domain-errors"
)

// Type is the closed set of document sides.
type Type int

const (
	TypeUnknown Type = iota
	// TypePrimary is the photo-bearing identity side (front, "RG").
	TypePrimary
	// TypeSecondary is the fiscal/person-registry side (back, "CPF").
	TypeSecondary
)

func (t Type) String() string {
	switch t {
	case TypePrimary:
		return "primary"
	case TypeSecondary:
		return "secondary"
	default:
		return "unknown"
	}
}

// IsConcrete reports whether t is Primary or Secondary.
func (t Type) IsConcrete() bool {
	return t == TypePrimary || t == TypeSecondary
}

// ParseType accepts the canonical names plus the common aliases used by callers.
func ParseType(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "primary", "front", "rg":
		return TypePrimary, nil
	case "secondary", "back", "cpf":
		return TypeSecondary, nil
	default:
		return TypeUnknown, dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("unknown document type %q", s))
	}
}

// outwardType is the type reported to callers: an inconclusive classification falls
// back to the requested type. Never use its result in a decision.
func outwardType(detected, requested Type) Type {
	if detected == TypeUnknown {
		return requested
	}
	return detected
}
