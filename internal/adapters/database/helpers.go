package database

import (
	"database/sql"
	"strings"
	"time"

	"github.com/cabinethub/clinicdesk/internal/domain/entities"
	apperrors "github.com/cabinethub/clinicdesk/pkg/errors"
)

// nowFunc supplies the timestamps the adapters write.
var nowFunc = time.Now

// isConstraintViolation reports whether err is a UNIQUE or FOREIGN KEY
// constraint failure from the engine.
func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint failed") ||
		strings.Contains(msg, "foreign key constraint failed")
}

func parseTime(s string) (time.Time, error) {
	return time.ParseInLocation(entities.TimeLayout, s, time.Local)
}

func parseNullTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullInt(ni sql.NullInt64) *int64 {
	if !ni.Valid {
		return nil
	}
	v := ni.Int64
	return &v
}

func timeParseError(err error) error {
	return apperrors.NewInternalError("failed to parse stored timestamp", err)
}
