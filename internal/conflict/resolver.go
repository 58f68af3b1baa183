// Package conflict implements the policy-driven name negotiation described
// in spec §4.1. The resolver performs no I/O: callers supply an existence
// predicate and get back a final name, or nothing.
package conflict

import (
	"fmt"

	"github.com/babarot/storax/internal/core/types"
)

// Exists reports whether name already exists in the target scope (a
// directory, a trash area, ...).
type Exists func(name string) bool

// Resolve negotiates base against policy using exists to probe for
// collisions. It returns the final name to use and true, or ("", false)
// when the policy declines (FAIL with a collision, or RENAME_MANUAL with an
// empty manual name).
func Resolve(exists Exists, base string, policy types.ConflictPolicy, manual string) (string, bool) {
	if !exists(base) {
		return base, true
	}

	switch policy {
	case types.PolicyFail:
		return "", false
	case types.PolicyReplace:
		return base, true
	case types.PolicyRenameNew:
		for k := 1; ; k++ {
			candidate := fmt.Sprintf("%s (%d)", base, k)
			if !exists(candidate) {
				return candidate, true
			}
		}
	case types.PolicyRenameManual:
		if manual == "" {
			return "", false
		}
		return manual, true
	default:
		return "", false
	}
}
