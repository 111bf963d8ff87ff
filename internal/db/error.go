package db

import (
	"errors"

	"go.mongodb.org/mongo-driver/mongo"
)

// DuplicateKeyError is an error type for duplicate key errors
type DuplicateKeyError struct {
	Key     string
	Message string
}

func (e *DuplicateKeyError) Error() string {
	return e.Message
}

func IsDuplicateKeyError(err error) bool {
	var target *DuplicateKeyError
	return errors.As(err, &target)
}

// Not found Error
type NotFoundError struct {
	Key     string
	Message string
}

func (e *NotFoundError) Error() string {
	return e.Message
}

func IsNotFoundError(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// LeaseHeldError is returned when another instance holds a distribution lease
type LeaseHeldError struct {
	Name   string
	Holder string
}

func (e *LeaseHeldError) Error() string {
	return "lease " + e.Name + " is held by another instance"
}

func IsLeaseHeldError(err error) bool {
	var target *LeaseHeldError
	return errors.As(err, &target)
}

// asDuplicateKeyError converts a mongo duplicate key failure into *DuplicateKeyError
func asDuplicateKeyError(err error, key, message string) error {
	if err == nil {
		return nil
	}
	if mongo.IsDuplicateKeyError(err) {
		return &DuplicateKeyError{
			Key:     key,
			Message: message,
		}
	}
	return err
}
