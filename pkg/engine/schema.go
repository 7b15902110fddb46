package engine

// Row is one SOURCE record. A missing key means the column was not selected;
// a nil value means the column is present but NULL.
type Row map[string]*string

// Has reports whether the column is present, NULL or not.
func (r Row) Has(column string) bool {
	_, ok := r[column]
	return ok
}

// Get returns the column value and whether it is non-NULL.
func (r Row) Get(column string) (string, bool) {
	v, ok := r[column]
	if !ok || v == nil {
		return "", false
	}
	return *v, true
}

// Value returns the column value, or "" when absent or NULL.
func (r Row) Value(column string) string {
	v, _ := r.Get(column)
	return v
}

// NewRow builds a Row from plain strings. Convenience for callers and tests
// that never carry NULLs.
func NewRow(values map[string]string) Row {
	row := make(Row, len(values))
	for k, v := range values {
		row[k] = &v
	}
	return row
}

// Column names shared by every SOURCE query.
const (
	ColGrantLocalKey    = "GRANT_NUMBER"
	ColGrantAwardNumber = "AWARD_ID"
	ColGrantAwardStatus = "AWARD_STATUS"
	ColGrantProjectName = "TITLE"
	ColGrantAwardDate   = "AWARD_DATE"
	ColGrantStartDate   = "AWARD_START"
	ColGrantEndDate     = "AWARD_END"

	ColDirectFunderLocalKey = "SPONSOR_CODE"
	ColDirectFunderName     = "SPONSOR"
	ColDirectFunderPolicy   = "SPONSOR_POLICY"

	ColPrimaryFunderLocalKey = "PRIME_SPONSOR_CODE"
	ColPrimaryFunderName     = "PRIME_SPONSOR"
	ColPrimaryFunderPolicy   = "PRIME_SPONSOR_POLICY"

	ColUserEmployeeID = "EMPLOYEE_ID"
	ColUserFirstName  = "FIRST_NAME"
	ColUserMiddleName = "MIDDLE_NAME"
	ColUserLastName   = "LAST_NAME"
	ColUserEmail      = "EMAIL"

	ColAbbreviatedRole = "ABBREVIATED_ROLE"
	ColUpdateTimestamp = "UPDATE_TIMESTAMP"
)

// Mode selects what a run reconciles.
type Mode string

const (
	ModeGrant  Mode = "grant"
	ModeUser   Mode = "user"
	ModeFunder Mode = "funder"
)

// Modes lists the supported modes in display order.
var Modes = []Mode{ModeGrant, ModeUser, ModeFunder}

// guaranteedColumn is the column every row of a mode carries; its absence
// from the first row means the caller picked the wrong mode.
var guaranteedColumn = map[Mode]string{
	ModeGrant:  ColGrantLocalKey,
	ModeUser:   ColUserEmployeeID,
	ModeFunder: ColPrimaryFunderPolicy,
}

// GuaranteedColumn returns the column a mode checks before processing, and
// false for an unknown mode.
func GuaranteedColumn(m Mode) (string, bool) {
	c, ok := guaranteedColumn[m]
	return c, ok
}

// InvestigatorRole classifies the abbreviated role code of a grant row.
type InvestigatorRole int

const (
	RoleOther InvestigatorRole = iota
	RolePI
	RoleCoPI
	RoleKeyPerson
)

func (r InvestigatorRole) String() string {
	switch r {
	case RolePI:
		return "PI"
	case RoleCoPI:
		return "CO_PI"
	case RoleKeyPerson:
		return "KEY_PERSON"
	default:
		return "OTHER"
	}
}

var roleCodes = map[string]InvestigatorRole{
	"P": RolePI,
	"C": RoleCoPI,
	"K": RoleKeyPerson,
}

// ClassifyRole maps a SOURCE role code. Unknown codes and NULL are RoleOther.
func ClassifyRole(code string, ok bool) InvestigatorRole {
	if !ok {
		return RoleOther
	}
	if r, found := roleCodes[code]; found {
		return r
	}
	return RoleOther
}

// coInvestigator reports whether the role lands in a grant's coPis.
func (r InvestigatorRole) coInvestigator() bool {
	return r == RoleCoPI || r == RoleKeyPerson
}
