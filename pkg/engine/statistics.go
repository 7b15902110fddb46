package engine

import (
	"fmt"
	"strings"

	"github.com/ajitpratap0/grantsync/pkg/models"
)

// NoRecordsReport is the report of a run that saw no rows.
const NoRecordsReport = "No records were processed in this update"

// Action is what the reconciler did with one entity.
type Action string

const (
	ActionCreated   Action = "created"
	ActionUpdated   Action = "updated"
	ActionUnchanged Action = "unchanged"
	ActionSkipped   Action = "skipped"
)

// Statistics summarizes one run.
type Statistics struct {
	Mode Mode `json:"mode"`

	FundersCreated int `json:"fundersCreated"`
	FundersUpdated int `json:"fundersUpdated"`
	UsersCreated   int `json:"usersCreated"`
	UsersUpdated   int `json:"usersUpdated"`
	GrantsCreated  int `json:"grantsCreated"`
	GrantsUpdated  int `json:"grantsUpdated"`

	PIsAdded   int `json:"pisAdded"`
	CoPIsAdded int `json:"coPisAdded"`

	RowsProcessed     int    `json:"rowsProcessed"`
	EntitiesProcessed int    `json:"entitiesProcessed"`
	LatestWatermark   string `json:"latestWatermark,omitempty"`
}

func (s *Statistics) record(kind models.Kind, action Action) {
	switch {
	case kind == models.KindFunder && action == ActionCreated:
		s.FundersCreated++
	case kind == models.KindFunder && action == ActionUpdated:
		s.FundersUpdated++
	case kind == models.KindUser && action == ActionCreated:
		s.UsersCreated++
	case kind == models.KindUser && action == ActionUpdated:
		s.UsersUpdated++
	case kind == models.KindGrant && action == ActionCreated:
		s.GrantsCreated++
	case kind == models.KindGrant && action == ActionUpdated:
		s.GrantsUpdated++
	}
}

// Writes is the number of creates and updates issued.
func (s *Statistics) Writes() int {
	return s.FundersCreated + s.FundersUpdated + s.UsersCreated + s.UsersUpdated + s.GrantsCreated + s.GrantsUpdated
}

// Report renders the human readable run summary mailed or logged after a run.
func (s *Statistics) Report() string {
	if s.RowsProcessed == 0 {
		return NoRecordsReport
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d %s records processed", s.RowsProcessed, s.Mode)
	if s.LatestWatermark != "" {
		fmt.Fprintf(&b, "; the most recent update in this batch has timestamp %s", s.LatestWatermark)
	}
	b.WriteString("\n")

	if s.Mode == ModeGrant {
		fmt.Fprintf(&b, "%d Pis and %d Co-Pis were processed on %d grants\n", s.PIsAdded, s.CoPIsAdded, s.EntitiesProcessed)
	}
	b.WriteString("\n")

	switch s.Mode {
	case ModeGrant:
		fmt.Fprintf(&b, "%d Grant records were created; %d Grant records were updated\n", s.GrantsCreated, s.GrantsUpdated)
		fmt.Fprintf(&b, "%d Funder records were created; %d Funder records were updated\n", s.FundersCreated, s.FundersUpdated)
		fmt.Fprintf(&b, "%d User records were created; %d User records were updated\n", s.UsersCreated, s.UsersUpdated)
	case ModeUser:
		fmt.Fprintf(&b, "%d User records were updated\n", s.UsersUpdated)
	case ModeFunder:
		fmt.Fprintf(&b, "%d Funder records were created; %d Funder records were updated\n", s.FundersCreated, s.FundersUpdated)
	}
	return b.String()
}
