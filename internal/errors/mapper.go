// internal/errors/mapper.go
package errors

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	amqp "github.com/rabbitmq/amqp091-go"
	"gorm.io/gorm"
)

// database/sql does not export the error it returns once the pool is closed.
const errPoolClosed = "sql: database is closed"

// Error classes understood by the dispatcher when it decides between ack and nack.
var (
	// ErrNotFound marks a missing user/profile/row. Logged and acknowledged.
	ErrNotFound = errors.New("record not found")
	// ErrInvalid marks a payload that decoded but fails validation. Logged and acknowledged.
	ErrInvalid = errors.New("invalid message")
	// ErrDecode marks a payload that matches no known schema. Logged and acknowledged.
	ErrDecode = errors.New("undecodable message")
	// ErrTransient marks an infrastructure failure. The delivery is nacked and redelivered.
	ErrTransient = errors.New("transient infrastructure failure")
)

// classified keeps the original error visible to errors.Is/As while adding a class.
type classified struct {
	class error
	err   error
}

func (c *classified) Error() string { return c.err.Error() }

func (c *classified) Unwrap() []error { return []error{c.class, c.err} }

// Map converts repo/infra errors into one of the classes above.
// Keeps service layer clean by centralizing error classification.
func Map(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, ErrTransient), errors.Is(err, ErrNotFound),
		errors.Is(err, ErrInvalid), errors.Is(err, ErrDecode):
		// already classified
		return err

	case errors.Is(err, gorm.ErrRecordNotFound):
		return &classified{class: ErrNotFound, err: err}

	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled),
		errors.Is(err, driver.ErrBadConn),
		errors.Is(err, sql.ErrConnDone),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, mysql.ErrInvalidConn),
		errors.Is(err, amqp.ErrClosed),
		strings.Contains(err.Error(), errPoolClosed):
		return &classified{class: ErrTransient, err: err}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgUnavailable(pgErr.Code) {
		return &classified{class: ErrTransient, err: err}
	}
	if pgconn.Timeout(err) || pgconn.SafeToRetry(err) {
		return &classified{class: ErrTransient, err: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return &classified{class: ErrTransient, err: err}
	}

	var amqpErr *amqp.Error
	if errors.As(err, &amqpErr) && amqpErr.Recover {
		return &classified{class: ErrTransient, err: err}
	}

	// fallback → not retryable, logged and acknowledged by the dispatcher
	return err
}

// pgUnavailable matches SQLSTATE class 08 (connection exception) and 57P
// (admin shutdown, crash shutdown, cannot connect now).
func pgUnavailable(code string) bool {
	return strings.HasPrefix(code, "08") || strings.HasPrefix(code, "57P")
}

// Transient wraps err as a transient infrastructure failure.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &classified{class: ErrTransient, err: err}
}

// Invalid creates a validation error.
// Use this in service layer for bad input validation.
func Invalid(format string, args ...any) error {
	return &classified{class: ErrInvalid, err: fmt.Errorf(format, args...)}
}

// NotFound creates a not-found error with context.
func NotFound(format string, args ...any) error {
	return &classified{class: ErrNotFound, err: fmt.Errorf(format, args...)}
}

// Decode wraps a schema/codec failure.
func Decode(err error) error {
	return &classified{class: ErrDecode, err: err}
}

// IsTransient reports whether err (after classification) should trigger redelivery.
func IsTransient(err error) bool {
	return errors.Is(Map(err), ErrTransient)
}
