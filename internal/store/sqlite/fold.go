package sqlite

import (
	"database/sql/driver"
	"fmt"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
	msqlite "modernc.org/sqlite"
)

// SQLite's LIKE and lower() only fold ASCII. Searches compare fold(column)
// against a pattern folded the same way in Go.
func init() {
	if err := msqlite.RegisterDeterministicScalarFunction("fold", 1, foldFunc); err != nil {
		panic(fmt.Sprintf("sqlite: register fold: %v", err))
	}
}

func foldFunc(_ *msqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	switch v := args[0].(type) {
	case nil:
		return nil, nil
	case string:
		return foldString(v), nil
	case []byte:
		return foldString(string(v)), nil
	default:
		return v, nil
	}
}

// foldString applies full Unicode case folding on the NFC form of s.
func foldString(s string) string {
	return cases.Fold().String(norm.NFC.String(s))
}
