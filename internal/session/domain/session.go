package domain

import "time"

// Session is the single active-session record for an account. The session
// token doubles as the owning device's id; at most one record exists per
// user at any time and replacing it supersedes the previous one.
type Session struct {
	UserID         string
	SessionToken   string
	DeviceInfo     string
	UserAgent      string
	LoggedInAt     time.Time
	LastActivityAt time.Time
	IsActive       bool
}
