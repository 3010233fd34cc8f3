package constants

import "time"

// Context keys set by the auth middleware.
const (
	ContextKeyUserID = "user_id"
	ContextKeyRole   = "role"
	ContextKeyReqID  = "request_id"
)

// TokenCookieName is the cookie carrying the bearer token.
const TokenCookieName = "token"

// Pagination
const (
	MinPageSize     = 1
	DefaultPageSize = 100
	MaxPageSize     = 100
)

const LeaderboardSize = 10

const MinPasswordLength = 6

// OTP
const (
	OTPMin         = 100000
	OTPMax         = 999999
	OTPTTL         = 10 * time.Minute
	OTPMaxAttempts = 5
)

// Default reply texts used when resolving or dismantling without one.
const (
	DefaultResolveReply   = "Query resolved"
	DefaultDismantleReply = "No reason provided"
)
