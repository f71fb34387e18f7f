package model

import "errors"

var (
	// Recycle bin
	ErrRecordNotFound   = errors.New("record not found")
	ErrHeldItemNotFound = errors.New("recycle bin item not found")

	// Finance and settings
	ErrYearNotConfigured = errors.New("year not configured")
	ErrMonthOutOfRange   = errors.New("month out of range")

	// Permission/Access related errors
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// Generic errors
	ErrInvalidInput = errors.New("invalid input")
)
