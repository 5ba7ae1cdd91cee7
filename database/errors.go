/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

type SQLError int

const (
	UnknownErr SQLError = iota
	NoRowsErr
	NoIndexErr
	NoColumnErr
	ExistIndexErr
	ExistColumnErr
	NoTableErr
	ExistTableErr
	DuplicateKeyErr
	NotNullViolationErr
	ForeignKeyViolationErr
	CheckConstraintViolationErr
	DataTruncatedErr
	InvalidTypeCastErr
	ConnectionErr
)

func (e SQLError) String() string {
	switch e {
	case NoRowsErr:
		return "no rows"
	case NoIndexErr:
		return "no index"
	case NoColumnErr:
		return "no column"
	case ExistIndexErr:
		return "index exists"
	case ExistColumnErr:
		return "column exists"
	case NoTableErr:
		return "no table"
	case ExistTableErr:
		return "table exists"
	case DuplicateKeyErr:
		return "duplicate key"
	case NotNullViolationErr:
		return "not null violation"
	case ForeignKeyViolationErr:
		return "foreign key violation"
	case CheckConstraintViolationErr:
		return "check constraint violation"
	case DataTruncatedErr:
		return "data truncated"
	case InvalidTypeCastErr:
		return "invalid type cast"
	case ConnectionErr:
		return "connection"
	default:
		return "unknown"
	}
}

// postgres SQLSTATE codes, shared by lib/pq and pgx
var sqlStateErrors = map[string]SQLError{
	"42703": NoColumnErr,
	"42704": NoIndexErr,
	"42701": ExistColumnErr,
	"42P01": NoTableErr,
	"42P07": ExistTableErr,
	"23505": DuplicateKeyErr,
	"23502": NotNullViolationErr,
	"23503": ForeignKeyViolationErr,
	"23514": CheckConstraintViolationErr,
	"22001": DataTruncatedErr,
	"42804": InvalidTypeCastErr,
	"08000": ConnectionErr,
	"08003": ConnectionErr,
	"08006": ConnectionErr,
}

// IsSqlError reports whether err was raised by a database driver and
// classifies it. Driver specific error types are checked first, then the
// message text, which is all SQLite gives us.
func IsSqlError(err error) (is bool, sqlErr SQLError) {
	if err == nil {
		return false, UnknownErr
	}
	if errors.Is(err, sql.ErrNoRows) {
		return true, NoRowsErr
	}

	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		switch mysqlErr.Number {
		case 1091:
			return true, NoIndexErr
		case 1054:
			return true, NoColumnErr
		case 1061:
			return true, ExistIndexErr
		case 1060:
			return true, ExistColumnErr
		case 1146:
			return true, NoTableErr
		case 1050:
			return true, ExistTableErr
		case 1062:
			return true, DuplicateKeyErr
		case 1048:
			return true, NotNullViolationErr
		case 1216, 1217, 1451, 1452:
			return true, ForeignKeyViolationErr
		case 3819:
			return true, CheckConstraintViolationErr
		case 1265, 1406:
			return true, DataTruncatedErr
		case 2006, 2013:
			return true, ConnectionErr
		default:
			return true, UnknownErr
		}
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if kind, ok := sqlStateErrors[string(pqErr.Code)]; ok {
			return true, kind
		}
		return true, UnknownErr
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if kind, ok := sqlStateErrors[pgErr.Code]; ok {
			return true, kind
		}
		return true, UnknownErr
	}

	if isConnectionError(err) {
		return true, ConnectionErr
	}

	s := strings.ToLower(err.Error())
	switch {
	case strings.Contains(s, "no such column"):
		return true, NoColumnErr
	case strings.Contains(s, "no such index"):
		return true, NoIndexErr
	case strings.Contains(s, "no such table"):
		return true, NoTableErr
	case strings.Contains(s, "already exists") && strings.Contains(s, "index"):
		return true, ExistIndexErr
	case strings.Contains(s, "already exists") && strings.Contains(s, "table"):
		return true, ExistTableErr
	case strings.Contains(s, "duplicate column name"):
		return true, ExistColumnErr
	case strings.Contains(s, "unique constraint failed"):
		return true, DuplicateKeyErr
	case strings.Contains(s, "not null constraint failed"):
		return true, NotNullViolationErr
	case strings.Contains(s, "foreign key constraint failed"):
		return true, ForeignKeyViolationErr
	case strings.Contains(s, "check constraint failed"):
		return true, CheckConstraintViolationErr
	case strings.Contains(s, "datatype mismatch"):
		return true, InvalidTypeCastErr
	case strings.Contains(s, "sql logic error"), strings.Contains(s, "database is locked"):
		return true, UnknownErr
	}
	return false, UnknownErr
}

// IsDriverError reports whether err came from the driver or the connection
// rather than from the caller. Repository retry helpers only retry these.
func IsDriverError(err error) bool {
	if err == nil || errors.Is(err, sql.ErrNoRows) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	is, _ := IsSqlError(err)
	return is
}

// IsConnectionError reports whether err means the connection itself is gone.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}
	is, kind := IsSqlError(err)
	return is && kind == ConnectionErr
}

func isConnectionError(err error) bool {
	if errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, mysql.ErrInvalidConn) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
