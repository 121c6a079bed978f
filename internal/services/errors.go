package services

import (
	"errors"
	"strings"
)

var (
	ErrTeamNotFound  = errors.New("team not found")
	ErrInvalidAmount = errors.New("amount must be a positive whole number")
	ErrTotalDecrease = errors.New("donation total cannot decrease")
	ErrIssueNotFound = errors.New("reconciliation issue not found")
	ErrInvalidLogin  = errors.New("invalid credentials")
)

// MisconfigurationError is a fault that blocks all processing until an
// operator fixes the deployment.
type MisconfigurationError struct {
	Missing []string
}

func (e *MisconfigurationError) Error() string {
	return "misconfiguration: missing " + strings.Join(e.Missing, ", ")
}

// failureReason maps an apply error to the short code stored on
// reconciliation issues.
func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrTeamNotFound):
		return "team_not_found"
	case errors.Is(err, ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, errMalformedSession):
		return "malformed_session"
	default:
		return "store_error"
	}
}
