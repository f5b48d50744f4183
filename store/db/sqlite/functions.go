package sqlite

import (
	"database/sql/driver"
	"strings"

	"modernc.org/sqlite"

	"github.com/hrygo/secondbrain/store"
)

// SQLite's built-in lower() folds ASCII only. Title matching needs the same
// Unicode case folding as store.TitleScore, so the driver registers its own.
func init() {
	sqlite.MustRegisterDeterministicScalarFunction(store.SQLiteLowerFunc, 1, unicodeLower)
}

func unicodeLower(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	switch v := args[0].(type) {
	case string:
		return strings.ToLower(v), nil
	case []byte:
		return strings.ToLower(string(v)), nil
	default:
		return v, nil
	}
}
