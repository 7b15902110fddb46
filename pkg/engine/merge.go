package engine

import (
	"slices"
	"time"

	"github.com/ajitpratap0/grantsync/pkg/models"
)

// Comparator decides whether a freshly built candidate carries information
// the stored entity lacks. Each method returns the entity to write back, or
// nil when the stored copy already reflects the candidate. Implementations
// must not modify stored.
type Comparator interface {
	MergeFunder(candidate, stored *models.Funder) *models.Funder
	MergeUser(candidate, stored *models.User) *models.User
	MergeGrant(candidate, stored *models.Grant) *models.Grant
}

// DefaultComparator copies every non-empty candidate field that differs from
// the stored value. Empty candidate fields never blank out stored data, and
// list fields only grow.
type DefaultComparator struct{}

var _ Comparator = DefaultComparator{}

func (DefaultComparator) MergeFunder(candidate, stored *models.Funder) *models.Funder {
	merged := stored.Clone()
	changed := setString(&merged.LocalKey, candidate.LocalKey)
	if candidate.HasName() && (!stored.HasName() || *stored.Name != *candidate.Name) {
		name := *candidate.Name
		merged.Name = &name
		changed = true
	}
	changed = setString(&merged.Policy, candidate.Policy) || changed
	if !changed {
		return nil
	}
	return merged
}

func (DefaultComparator) MergeUser(candidate, stored *models.User) *models.User {
	merged := stored.Clone()
	changed := setString(&merged.FirstName, candidate.FirstName)
	changed = setString(&merged.MiddleName, candidate.MiddleName) || changed
	changed = setString(&merged.LastName, candidate.LastName) || changed
	changed = setString(&merged.DisplayName, candidate.DisplayName) || changed
	changed = setString(&merged.Email, candidate.Email) || changed
	for _, id := range candidate.LocatorIDs {
		if !slices.Contains(merged.LocatorIDs, id) {
			merged.LocatorIDs = append(merged.LocatorIDs, id)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return merged
}

func (DefaultComparator) MergeGrant(candidate, stored *models.Grant) *models.Grant {
	merged := stored.Clone()
	changed := setString(&merged.LocalKey, candidate.LocalKey)
	changed = setString(&merged.AwardNumber, candidate.AwardNumber) || changed
	if candidate.AwardStatus != models.AwardStatusUnknown && candidate.AwardStatus != stored.AwardStatus {
		merged.AwardStatus = candidate.AwardStatus
		changed = true
	}
	changed = setString(&merged.ProjectName, candidate.ProjectName) || changed
	changed = setTime(&merged.AwardDate, candidate.AwardDate) || changed
	changed = setTime(&merged.StartDate, candidate.StartDate) || changed
	changed = setTime(&merged.EndDate, candidate.EndDate) || changed
	changed = setRef(&merged.DirectFunder, candidate.DirectFunder) || changed
	changed = setRef(&merged.PrimaryFunder, candidate.PrimaryFunder) || changed
	changed = setRef(&merged.PI, candidate.PI) || changed
	for _, ref := range candidate.CoPIs {
		if ref != "" && !merged.HasCoPI(ref) {
			merged.CoPIs = append(merged.CoPIs, ref)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return merged
}

func setString(dst *string, v string) bool {
	if v == "" || *dst == v {
		return false
	}
	*dst = v
	return true
}

func setRef(dst *models.Reference, v models.Reference) bool {
	if v == "" || *dst == v {
		return false
	}
	*dst = v
	return true
}

func setTime(dst **time.Time, v *time.Time) bool {
	if v == nil || (*dst != nil && (*dst).Equal(*v)) {
		return false
	}
	t := *v
	*dst = &t
	return true
}
