package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrNotConnected        = errors.New("no active session")
	ErrInvalidTrade        = errors.New("invalid trade parameters")
	ErrInvalidState        = errors.New("invalid state transition")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrAlreadyExists       = errors.New("already exists")
)
