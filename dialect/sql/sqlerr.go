package sql

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
)

// MySQL server error numbers.
const (
	mysqlDupEntry        = 1062
	mysqlFKRowExists     = 1451
	mysqlFKNoParent      = 1452
	mysqlNotNullViolated = 1048
)

// PostgreSQL error classes (SQLSTATE).
const (
	pqUniqueViolation  = pq.ErrorCode("23505")
	pqFKViolation      = pq.ErrorCode("23503")
	pqNotNullViolation = pq.ErrorCode("23502")
)

// IsUniqueViolation reports whether the driver error represents a
// unique or primary-key constraint violation.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == mysqlDupEntry
	}
	var pe *pq.Error
	if errors.As(err, &pe) {
		return pe.Code == pqUniqueViolation
	}
	// modernc.org/sqlite reports constraint failures by message only.
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// IsForeignKeyViolation reports whether the driver error represents a
// foreign-key constraint violation.
func IsForeignKeyViolation(err error) bool {
	if err == nil {
		return false
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == mysqlFKRowExists || me.Number == mysqlFKNoParent
	}
	var pe *pq.Error
	if errors.As(err, &pe) {
		return pe.Code == pqFKViolation
	}
	return strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}

// IsNotNullViolation reports whether the driver error represents a
// NOT NULL constraint violation.
func IsNotNullViolation(err error) bool {
	if err == nil {
		return false
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == mysqlNotNullViolated
	}
	var pe *pq.Error
	if errors.As(err, &pe) {
		return pe.Code == pqNotNullViolation
	}
	return strings.Contains(err.Error(), "NOT NULL constraint failed")
}

// IsConstraintViolation reports whether the driver error represents any
// recognized constraint violation.
func IsConstraintViolation(err error) bool {
	return IsUniqueViolation(err) || IsForeignKeyViolation(err) || IsNotNullViolation(err)
}

// ConstraintName extracts the violated constraint name when the driver
// reports one, or "" otherwise.
func ConstraintName(err error) string {
	var pe *pq.Error
	if errors.As(err, &pe) {
		return pe.Constraint
	}
	return ""
}
