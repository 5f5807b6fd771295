package domain

import "errors"

var (
	ErrInvalidIdentity   = errors.New("invalid identity")
	ErrSessionNotFound   = errors.New("session not found")
	ErrSessionExists     = errors.New("session already registered")
	ErrNoActiveSessions  = errors.New("no active sessions")
	ErrPairingInProgress = errors.New("pairing already in progress")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrSupervisorClosed  = errors.New("supervisor is shut down")
	ErrEmptyMessage      = errors.New("message text is empty")
)
