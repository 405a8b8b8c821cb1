package types

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidIdentifier    = errors.New("invalid client id")
	ErrMissingRequiredField = errors.New("missing required field")
	ErrAlreadyExists        = errors.New("client id already taken")
	ErrNotFound             = errors.New("client not found")

	ErrDecode = errors.New("malformed base64 payload")
	ErrIO     = errors.New("storage read/write error")
)

func Err(typedError error, innerErr error, msgTemplate string, args ...any) error {
	if msgTemplate == "" {
		return errors.Join(typedError, innerErr)
	} else {
		return errors.Join(typedError, innerErr, fmt.Errorf(msgTemplate, args...))
	}
}
