package engine

import (
	"strings"
	"time"

	"github.com/ajitpratap0/grantsync/pkg/errors"
	"github.com/ajitpratap0/grantsync/pkg/models"
)

// funderColumns names the three columns describing one funder role.
type funderColumns struct {
	localKey, name, policy string
}

var (
	directFunderColumns  = funderColumns{ColDirectFunderLocalKey, ColDirectFunderName, ColDirectFunderPolicy}
	primaryFunderColumns = funderColumns{ColPrimaryFunderLocalKey, ColPrimaryFunderName, ColPrimaryFunderPolicy}
)

var awardStatuses = map[string]models.AwardStatus{
	"Active":     models.AwardStatusActive,
	"Pre-Award":  models.AwardStatusPreAward,
	"Terminated": models.AwardStatusTerminated,
}

// BuildDirectFunder builds the direct sponsor of a grant row.
func (d Deployment) BuildDirectFunder(row Row) *models.Funder {
	return d.buildFunder(row, directFunderColumns)
}

// BuildPrimaryFunder builds the prime sponsor of a grant row, or the funder
// described by a funder-mode row.
func (d Deployment) BuildPrimaryFunder(row Row) *models.Funder {
	return d.buildFunder(row, primaryFunderColumns)
}

func (d Deployment) buildFunder(row Row, cols funderColumns) *models.Funder {
	f := &models.Funder{LocalKey: row.Value(cols.localKey)}
	// A missing name column leaves Name nil so a merge keeps the stored name.
	if row.Has(cols.name) {
		name := row.Value(cols.name)
		f.Name = &name
	}
	if policy, ok := row.Get(cols.policy); ok {
		f.Policy = d.policyRef(policy)
	}
	return f
}

// BuildUser builds the investigator or user described by a row.
func (d Deployment) BuildUser(row Row) *models.User {
	first := row.Value(ColUserFirstName)
	last := row.Value(ColUserLastName)
	u := &models.User{
		FirstName:   first,
		LastName:    last,
		DisplayName: strings.TrimSpace(first + " " + last),
		Email:       row.Value(ColUserEmail),
	}
	if row.Has(ColUserMiddleName) {
		u.MiddleName = row.Value(ColUserMiddleName)
	}
	if id, ok := row.Get(ColUserEmployeeID); ok {
		// The employee id is the most reliable locator and goes first.
		u.LocatorIDs = []string{models.NewIdentifier(d.Domain, models.IDTypeEmployeeID, id).Serialize()}
	}
	u.AddRole(models.RoleSubmitter)
	return u
}

// buildGrant fills the scalar fields of a grant from its first row. Funders
// and investigators are resolved by the aggregator.
func buildGrant(row Row) (*models.Grant, error) {
	g := &models.Grant{
		LocalKey:    row.Value(ColGrantLocalKey),
		AwardNumber: row.Value(ColGrantAwardNumber),
		ProjectName: row.Value(ColGrantProjectName),
		CoPIs:       []models.Reference{},
	}
	if status, ok := row.Get(ColGrantAwardStatus); ok {
		g.AwardStatus = awardStatuses[status]
	}

	var err error
	if g.AwardDate, err = dateColumn(row, ColGrantAwardDate); err != nil {
		return nil, err
	}
	if g.StartDate, err = dateColumn(row, ColGrantStartDate); err != nil {
		return nil, err
	}
	if g.EndDate, err = dateColumn(row, ColGrantEndDate); err != nil {
		return nil, err
	}
	return g, nil
}

func dateColumn(row Row, column string) (*time.Time, error) {
	v, ok := row.Get(column)
	if !ok || v == "" {
		return nil, nil
	}
	t, err := ParseTimestamp(v)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "parse "+column).
			WithDetail("grant", row.Value(ColGrantLocalKey))
	}
	return &t, nil
}
