package models

import "errors"

// Domain errors shared by services and repositories. Handlers map these
// to HTTP status codes; everything here is rejected before any mutation
// becomes visible.
var (
	ErrInvalidAmount           = errors.New("amount must be a positive integer")
	ErrSelfTransfer            = errors.New("sender and recipient must differ")
	ErrInsufficientFunds       = errors.New("insufficient funds")
	ErrAccountNotFound         = errors.New("account not found")
	ErrUnknownPool             = errors.New("unknown pool type")
	ErrRequestNotFound         = errors.New("pool request not found")
	ErrReasonRequired          = errors.New("reason must not be empty")
	ErrDuplicateVote           = errors.New("voter already voted on this request")
	ErrRequestClosed           = errors.New("pool request is no longer open")
	ErrInsufficientPoolBalance = errors.New("pool balance cannot cover requested amount")
)
