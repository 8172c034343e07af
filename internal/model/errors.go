package model

import "errors"

var (
	// Identity provider errors
	ErrUpstreamAuth = errors.New("identity provider rejected the request")
	ErrNotAMember   = errors.New("user is not part of an authorised guild")

	// Credential errors
	ErrInvalidCredential = errors.New("invalid or expired credential")
	ErrInvalidOAuthState = errors.New("invalid oauth state")

	// Lifecycle errors
	ErrInvalidState   = errors.New("invalid lifecycle transition")
	ErrSelfAssignment = errors.New("requester cannot claim their own request")
	ErrNotParticipant = errors.New("not permitted to change this request")

	// Event errors
	ErrMissingRole = errors.New("required guild role missing")

	// Permission errors
	ErrForbidden = errors.New("forbidden")

	// Not found errors
	ErrRequestNotFound = errors.New("crafting request not found")
	ErrEventNotFound   = errors.New("event not found")

	// Generic errors
	ErrInvalidInput = errors.New("invalid input")
)
