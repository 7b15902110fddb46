// Package models defines the entities grantsync writes into the STORE: Grants,
// Funders and Users, plus the Identifier used to namespace their natural keys.
//
// Entities are plain values. They are built from SOURCE rows, handed to the
// reconciler, and discarded once the STORE has answered with a Reference.
package models

import (
	"slices"
	"time"
)

// Kind names an entity type in the STORE.
type Kind string

const (
	KindFunder Kind = "Funder"
	KindUser   Kind = "User"
	KindGrant  Kind = "Grant"
)

// Indexed attribute names used for STORE lookups.
const (
	AttrLocalKey   = "localKey"
	AttrLocatorIDs = "locatorIds"
)

// Reference is the STORE's opaque handle for a stored entity (for PASS, the
// resource URI). The empty Reference means "no entity".
type Reference string

// Entity is implemented by every value the STORE accepts.
type Entity interface {
	Kind() Kind
	Ref() Reference
	SetRef(Reference)
}

// Funder is a sponsor of a grant.
type Funder struct {
	ID       Reference `json:"id,omitempty" bson:"_ref,omitempty"`
	LocalKey string    `json:"localKey" bson:"localKey"`
	// Name stays nil until a row actually carries a name column.
	Name   *string `json:"name,omitempty" bson:"name,omitempty"`
	Policy string  `json:"policy,omitempty" bson:"policy,omitempty"`
}

func (f *Funder) Kind() Kind           { return KindFunder }
func (f *Funder) Ref() Reference       { return f.ID }
func (f *Funder) SetRef(ref Reference) { f.ID = ref }

// HasName reports whether the funder carries a usable, non-empty name.
func (f *Funder) HasName() bool {
	return f.Name != nil && *f.Name != ""
}

// Clone returns a deep copy.
func (f *Funder) Clone() *Funder {
	c := *f
	if f.Name != nil {
		n := *f.Name
		c.Name = &n
	}
	return &c
}

// Role is a role a User holds in the STORE.
type Role string

const (
	RoleSubmitter Role = "submitter"
	RoleAdmin     Role = "admin"
)

// User is a person who may act as an investigator on a grant.
type User struct {
	ID          Reference `json:"id,omitempty" bson:"_ref,omitempty"`
	FirstName   string    `json:"firstName,omitempty" bson:"firstName,omitempty"`
	MiddleName  string    `json:"middleName,omitempty" bson:"middleName,omitempty"`
	LastName    string    `json:"lastName,omitempty" bson:"lastName,omitempty"`
	DisplayName string    `json:"displayName,omitempty" bson:"displayName,omitempty"`
	Email       string    `json:"email,omitempty" bson:"email,omitempty"`
	// LocatorIDs holds serialized Identifiers, most reliable first.
	LocatorIDs []string `json:"locatorIds,omitempty" bson:"locatorIds,omitempty"`
	Roles      []Role   `json:"roles,omitempty" bson:"roles,omitempty"`
}

func (u *User) Kind() Kind           { return KindUser }
func (u *User) Ref() Reference       { return u.ID }
func (u *User) SetRef(ref Reference) { u.ID = ref }

// HasRole reports whether the user already holds r.
func (u *User) HasRole(r Role) bool {
	return slices.Contains(u.Roles, r)
}

// AddRole adds r unless present. Roles are never removed.
func (u *User) AddRole(r Role) {
	if !u.HasRole(r) {
		u.Roles = append(u.Roles, r)
	}
}

// Clone returns a deep copy.
func (u *User) Clone() *User {
	c := *u
	c.LocatorIDs = slices.Clone(u.LocatorIDs)
	c.Roles = slices.Clone(u.Roles)
	return &c
}

// AwardStatus is the lifecycle state of a grant award.
type AwardStatus string

const (
	AwardStatusActive     AwardStatus = "active"
	AwardStatusPreAward   AwardStatus = "pre_award"
	AwardStatusTerminated AwardStatus = "terminated"
	AwardStatusUnknown    AwardStatus = ""
)

// Grant is an award, aggregated from one or more SOURCE rows.
type Grant struct {
	ID            Reference   `json:"id,omitempty" bson:"_ref,omitempty"`
	LocalKey      string      `json:"localKey" bson:"localKey"`
	AwardNumber   string      `json:"awardNumber,omitempty" bson:"awardNumber,omitempty"`
	AwardStatus   AwardStatus `json:"awardStatus,omitempty" bson:"awardStatus,omitempty"`
	ProjectName   string      `json:"projectName,omitempty" bson:"projectName,omitempty"`
	AwardDate     *time.Time  `json:"awardDate,omitempty" bson:"awardDate,omitempty"`
	StartDate     *time.Time  `json:"startDate,omitempty" bson:"startDate,omitempty"`
	EndDate       *time.Time  `json:"endDate,omitempty" bson:"endDate,omitempty"`
	DirectFunder  Reference   `json:"directFunder,omitempty" bson:"directFunder,omitempty"`
	PrimaryFunder Reference   `json:"primaryFunder,omitempty" bson:"primaryFunder,omitempty"`
	PI            Reference   `json:"pi,omitempty" bson:"pi,omitempty"`
	CoPIs         []Reference `json:"coPis,omitempty" bson:"coPis,omitempty"`
}

func (g *Grant) Kind() Kind           { return KindGrant }
func (g *Grant) Ref() Reference       { return g.ID }
func (g *Grant) SetRef(ref Reference) { g.ID = ref }

// HasCoPI reports whether ref is already listed as a co-investigator.
func (g *Grant) HasCoPI(ref Reference) bool {
	return slices.Contains(g.CoPIs, ref)
}

// Clone returns a deep copy.
func (g *Grant) Clone() *Grant {
	c := *g
	c.CoPIs = slices.Clone(g.CoPIs)
	c.AwardDate = cloneTime(g.AwardDate)
	c.StartDate = cloneTime(g.StartDate)
	c.EndDate = cloneTime(g.EndDate)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

// New returns an empty entity of kind k, or nil for an unknown kind.
func New(k Kind) Entity {
	switch k {
	case KindFunder:
		return &Funder{}
	case KindUser:
		return &User{}
	case KindGrant:
		return &Grant{}
	}
	return nil
}
