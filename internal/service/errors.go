package service

import (
	"errors"
	"fmt"
)

// Ошибки сервиса
var (
	ErrInvalidURL          = errors.New("invalid url")
	ErrInvalidFormat       = errors.New("invalid short code format")
	ErrConflict            = errors.New("short code already in use")
	ErrAllocationExhausted = errors.New("could not allocate a free short code")
	ErrNotFound            = errors.New("short code not found")
	ErrExpired             = errors.New("short link expired")
	ErrStorageUnavailable  = errors.New("storage unavailable")
)

// CodeFormatError - отказ в кастомном коде с причиной для клиента.
// errors.Is(err, ErrInvalidFormat) для неё истинно.
type CodeFormatError struct {
	Reason string
}

func (e *CodeFormatError) Error() string {
	return ErrInvalidFormat.Error() + ": " + e.Reason
}

func (e *CodeFormatError) Is(target error) bool {
	return target == ErrInvalidFormat
}

func storageError(err error) error {
	return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
}
