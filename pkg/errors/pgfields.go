package errors

import (
	stdErrors "errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// LogFields flattens err for a structured log line: the typed code, the
// wrap chain, and whatever Postgres reported. Empty values are left out.
// Both pgx and lib/pq errors are recognised.
func LogFields(err error) map[string]any {
	if err == nil {
		return map[string]any{}
	}
	fields := map[string]any{"error": err.Error()}
	if typed := As(err); typed != nil {
		fields["error_code"] = string(typed.code)
	}

	var chain []string
	for e := err; e != nil; e = stdErrors.Unwrap(e) {
		chain = append(chain, fmt.Sprintf("%T", e))
	}
	if len(chain) > 1 {
		fields["error_chain"] = chain
	}

	var (
		pgx *pgconn.PgError
		pqe *pq.Error
		pg  [4]string
	)
	switch {
	case stdErrors.As(err, &pgx):
		pg = [4]string{pgx.Code, pgx.ConstraintName, pgx.TableName, pgx.Detail}
	case stdErrors.As(err, &pqe):
		pg = [4]string{string(pqe.Code), pqe.Constraint, pqe.Table, pqe.Detail}
	}
	for i, key := range []string{"pg_code", "pg_constraint", "pg_table", "pg_detail"} {
		if pg[i] != "" {
			fields[key] = pg[i]
		}
	}
	return fields
}
