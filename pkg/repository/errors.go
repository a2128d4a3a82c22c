package repository

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

var (
	ErrDuplicateKey = errors.New("duplicate key")
	ErrForeignKey   = errors.New("foreign key violation")
	ErrCacheMiss    = errors.New("cache miss")
)

const (
	mysqlDuplicateEntry   = 1062
	mysqlRowIsReferenced  = 1451
	mysqlNoReferencedRow  = 1452
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

// TranslateError folds driver specific constraint errors into ErrDuplicateKey
// and ErrForeignKey. Other errors are returned unchanged.
func TranslateError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicateKey
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return ErrForeignKey
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case mysqlDuplicateEntry:
			return ErrDuplicateKey
		case mysqlRowIsReferenced, mysqlNoReferencedRow:
			return ErrForeignKey
		}
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case pqUniqueViolation:
			return ErrDuplicateKey
		case pqForeignKeyViolation:
			return ErrForeignKey
		}
	}

	// sqlite reports constraint failures only through the message
	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return ErrDuplicateKey
	case strings.Contains(msg, "FOREIGN KEY constraint failed"):
		return ErrForeignKey
	}

	return err
}
