package sqlsource

import (
	"database/sql/driver"
	"fmt"
	"strconv"
	"time"
)

// TimestampLayout renders datetimes the way the SOURCE views print them.
const TimestampLayout = "2006-01-02 15:04:05.0"

// text converts a driver value into a Row cell. nil stays nil (NULL).
func text(v interface{}) *string {
	var s string
	switch x := v.(type) {
	case nil:
		return nil
	case string:
		s = x
	case []byte:
		s = string(x)
	case time.Time:
		s = x.Format(TimestampLayout)
	case int64:
		s = strconv.FormatInt(x, 10)
	case int32:
		s = strconv.FormatInt(int64(x), 10)
	case int16:
		s = strconv.FormatInt(int64(x), 10)
	case float64:
		s = strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		s = strconv.FormatBool(x)
	case driver.Valuer:
		inner, err := x.Value()
		if err != nil {
			return nil
		}
		return text(inner)
	case fmt.Stringer:
		s = x.String()
	default:
		s = fmt.Sprint(x)
	}
	return &s
}
