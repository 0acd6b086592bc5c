// Package access implements role-based visibility scoping. Every read path
// in the core takes a Scope; there is no unscoped query API.
package access

import (
	"fmt"

	"github.com/quangtmn/visitreg/internal/models"
)

type kind int

const (
	kindNone kind = iota // matches nothing; the fail-closed default
	kindAll              // admin: every region
	kindRegion           // commune: exactly one region
)

// Scope is the subset of records an identity is permitted to see. The zero
// value matches nothing.
type Scope struct {
	k      kind
	region string
}

// All is the admin scope covering every region.
func All() Scope { return Scope{k: kindAll} }

// Region scopes visibility to a single administrative unit.
func Region(code string) Scope {
	if code == "" {
		return None()
	}
	return Scope{k: kindRegion, region: code}
}

// None matches no records. Unrecognized roles resolve here so a bad role can
// never widen visibility, and reads under it look identical to "no data".
func None() Scope { return Scope{k: kindNone} }

// ScopeFor resolves a user's scope from their role. Unknown roles and
// commune users without an assigned region fail closed.
func ScopeFor(user *models.User) Scope {
	if user == nil {
		return None()
	}
	switch user.Role {
	case models.RoleAdmin:
		return All()
	case models.RoleCommune:
		return Region(user.RegionCode)
	default:
		return None()
	}
}

// IsAll reports whether the scope covers every region.
func (s Scope) IsAll() bool { return s.k == kindAll }

// IsNone reports whether the scope matches nothing.
func (s Scope) IsNone() bool { return s.k == kindNone }

// RegionCode returns the scoped region and whether the scope is
// region-limited.
func (s Scope) RegionCode() (string, bool) {
	return s.region, s.k == kindRegion
}

// Matches is the in-memory predicate over a record's region.
func (s Scope) Matches(regionCode string) bool {
	switch s.k {
	case kindAll:
		return true
	case kindRegion:
		return regionCode == s.region
	default:
		return false
	}
}

// SQL renders the scope as a WHERE fragment. argPos is the positional
// parameter index to use for the region argument; the returned args slice is
// empty unless the scope is region-limited.
func (s Scope) SQL(argPos int) (string, []any) {
	switch s.k {
	case kindAll:
		return "TRUE", nil
	case kindRegion:
		return fmt.Sprintf("region_code = $%d", argPos), []any{s.region}
	default:
		return "FALSE", nil
	}
}

// CacheKey renders the scope for use in cache keys. Distinct scopes must
// never share cached results.
func (s Scope) CacheKey() string {
	switch s.k {
	case kindAll:
		return "all"
	case kindRegion:
		return "region:" + s.region
	default:
		return "none"
	}
}
