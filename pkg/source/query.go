package source

import (
	"fmt"
	"strings"

	"github.com/ajitpratap0/grantsync/pkg/engine"
	"github.com/ajitpratap0/grantsync/pkg/errors"
)

// Placeholder renders the n-th (1-based) bind parameter of a dialect.
type Placeholder func(n int) string

// Dollar is the PostgreSQL placeholder style ($1, $2).
func Dollar(n int) string { return fmt.Sprintf("$%d", n) }

// Question is the MySQL placeholder style.
func Question(int) string { return "?" }

// {{window}} in a query is replaced by the update-window predicate.
const windowToken = "{{window}}"

var defaultQueries = map[engine.Mode]string{
	engine.ModeGrant: `SELECT
  A.AWARD_ID AS ` + engine.ColGrantAwardNumber + `,
  A.AWARD_STATUS AS ` + engine.ColGrantAwardStatus + `,
  A.GRANT_NUMBER AS ` + engine.ColGrantLocalKey + `,
  A.TITLE AS ` + engine.ColGrantProjectName + `,
  A.AWARD_DATE AS ` + engine.ColGrantAwardDate + `,
  A.AWARD_START AS ` + engine.ColGrantStartDate + `,
  A.AWARD_END AS ` + engine.ColGrantEndDate + `,
  A.SPONSOR AS ` + engine.ColDirectFunderName + `,
  A.SPONSOR_CODE AS ` + engine.ColDirectFunderLocalKey + `,
  D.POLICY_PATH AS ` + engine.ColDirectFunderPolicy + `,
  A.PRIME_SPONSOR AS ` + engine.ColPrimaryFunderName + `,
  A.PRIME_SPONSOR_CODE AS ` + engine.ColPrimaryFunderLocalKey + `,
  E.POLICY_PATH AS ` + engine.ColPrimaryFunderPolicy + `,
  B.ABBREVIATED_ROLE AS ` + engine.ColAbbreviatedRole + `,
  B.EMPLOYEE_ID AS ` + engine.ColUserEmployeeID + `,
  C.FIRST_NAME AS ` + engine.ColUserFirstName + `,
  C.MIDDLE_NAME AS ` + engine.ColUserMiddleName + `,
  C.LAST_NAME AS ` + engine.ColUserLastName + `,
  C.EMAIL_ADDRESS AS ` + engine.ColUserEmail + `,
  A.UPDATE_TIMESTAMP AS ` + engine.ColUpdateTimestamp + `
FROM COEUS.JHU_FACULTY_FORCE_PROP A
  INNER JOIN COEUS.JHU_FACULTY_FORCE_PRSN B ON A.INST_PROPOSAL = B.INST_PROPOSAL
  INNER JOIN COEUS.JHU_FACULTY_FORCE_PRSN_DETAIL C ON B.EMPLOYEE_ID = C.EMPLOYEE_ID
  LEFT JOIN COEUS.SWIFT_SPONSOR D ON A.SPONSOR_CODE = D.SPONSOR_CODE
  LEFT JOIN COEUS.SWIFT_SPONSOR E ON A.PRIME_SPONSOR_CODE = E.SPONSOR_CODE
WHERE A.PROPOSAL_STATUS = 'Funded'
  AND B.ABBREVIATED_ROLE IN ('P', 'C', 'K')
  AND ` + windowToken + `
ORDER BY A.UPDATE_TIMESTAMP`,

	engine.ModeUser: `SELECT
  EMPLOYEE_ID AS ` + engine.ColUserEmployeeID + `,
  FIRST_NAME AS ` + engine.ColUserFirstName + `,
  MIDDLE_NAME AS ` + engine.ColUserMiddleName + `,
  LAST_NAME AS ` + engine.ColUserLastName + `,
  EMAIL_ADDRESS AS ` + engine.ColUserEmail + `,
  UPDATE_TIMESTAMP AS ` + engine.ColUpdateTimestamp + `
FROM COEUS.JHU_FACULTY_FORCE_PRSN_DETAIL A
WHERE ` + windowToken + `
ORDER BY A.UPDATE_TIMESTAMP`,

	engine.ModeFunder: `SELECT
  SPONSOR_CODE AS ` + engine.ColPrimaryFunderLocalKey + `,
  SPONSOR_NAME AS ` + engine.ColPrimaryFunderName + `,
  POLICY_PATH AS ` + engine.ColPrimaryFunderPolicy + `,
  UPDATE_TIMESTAMP AS ` + engine.ColUpdateTimestamp + `
FROM COEUS.SWIFT_SPONSOR A
WHERE ` + windowToken + `
ORDER BY A.UPDATE_TIMESTAMP`,
}

// Query is a statement plus its bind arguments.
type Query struct {
	SQL  string
	Args []interface{}
}

// BuildQuery returns the statement for mode over (start, end]. overrides
// replaces the built-in text of a mode and must contain {{window}} once when
// a bound is given. The window column is A.UPDATE_TIMESTAMP.
func BuildQuery(mode engine.Mode, start, end string, overrides map[string]string, ph Placeholder) (Query, error) {
	text, ok := overrides[string(mode)]
	if !ok {
		text, ok = defaultQueries[mode]
	}
	if !ok {
		return Query{}, errors.Newf(errors.ErrorTypeConfig, "no query for mode %q", mode)
	}

	var (
		conds []string
		args  []interface{}
	)
	if start != "" {
		args = append(args, start)
		conds = append(conds, "A.UPDATE_TIMESTAMP > "+ph(len(args)))
	}
	if end != "" {
		args = append(args, end)
		conds = append(conds, "A.UPDATE_TIMESTAMP <= "+ph(len(args)))
	}
	predicate := "1 = 1"
	if len(conds) > 0 {
		predicate = strings.Join(conds, " AND ")
	}

	if !strings.Contains(text, windowToken) {
		if len(args) > 0 {
			return Query{}, errors.Newf(errors.ErrorTypeConfig, "query for mode %q has no %s but a window was given", mode, windowToken)
		}
		return Query{SQL: text}, nil
	}
	return Query{SQL: strings.Replace(text, windowToken, predicate, 1), Args: args}, nil
}
