package apperrors

import "errors"

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")

	// Recoverable tracker failures. None of them stop the tracker.
	ErrPositionUnavailable = errors.New("position unavailable")
	ErrOfficeUnresolved    = errors.New("office unresolved")
	ErrStoreWrite          = errors.New("store write failed")
	ErrStoreRead           = errors.New("store read failed")

	ErrAlternation   = errors.New("attendance log must alternate checkin/checkout")
	ErrNoDailyRecord = errors.New("no daily record")
)
