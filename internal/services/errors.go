package services

import "errors"

var (
	ErrPolicyViolation     = errors.New("policy violation")
	ErrNotFound            = errors.New("not found")
	ErrNotYetVisible       = errors.New("object not yet visible in store")
	ErrInvalidTransition   = errors.New("invalid artifact state")
	ErrIntegrity           = errors.New("stored object does not match declared metadata")
	ErrConstraintViolation = errors.New("constraint violation")
	ErrUpstream            = errors.New("upstream failure")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrEmailTaken          = errors.New("email already registered")
)
