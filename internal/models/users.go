// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package models

import "time"

// UserStatus is the closed set of lifecycle states for a User.
type UserStatus string

const (
	UserActive          UserStatus = "active"
	UserDisabled        UserStatus = "disabled"
	UserPendingDeletion UserStatus = "pending_deletion"
)

// IsTerminal reports whether the status admits no further transitions.
func (s UserStatus) IsTerminal() bool {
	return s == UserPendingDeletion
}

// User is the account record. It is never hard-deleted while an
// AuditLogEntry references it; admin operations flip Status instead.
type User struct {
	ID               string     `json:"id"`
	NormalizedEmail  string     `json:"normalized_email"`
	DisplayName      string     `json:"display_name"`
	PasswordHash     string     `json:"password_hash"`
	Status           UserStatus `json:"status"`
	Roles            []string   `json:"roles"`
	Permissions      []string   `json:"permissions"`
	UsedStorageBytes int64      `json:"used_storage_bytes"`
	StorageQuotaBytes int64     `json:"storage_quota_bytes"`
	TrackCountQuota  int        `json:"track_count_quota"`
	CreatedAt        time.Time  `json:"created_at"`
	LastLoginAt      *time.Time `json:"last_login_at,omitempty"`
	Version          int64      `json:"version"`
}

// HasRole reports whether the user carries the named role.
func (u *User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasPermission reports whether the user carries the named permission,
// either directly or via the admin role (which implies all permissions).
func (u *User) HasPermission(perm string) bool {
	if u.HasRole(RoleAdmin) {
		return true
	}
	for _, p := range u.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}

// RemainingStorageBytes returns the quota headroom, never negative.
func (u *User) RemainingStorageBytes() int64 {
	remaining := u.StorageQuotaBytes - u.UsedStorageBytes
	if remaining < 0 {
		return 0
	}
	return remaining
}

// RefreshToken is a rotating credential. The hash field is opaque; the
// plaintext token is never persisted.
type RefreshToken struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	Hash      string     `json:"hash"`
	DeviceID  string     `json:"device_id,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt time.Time  `json:"expires_at"`
	Revoked   bool       `json:"revoked"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
}

// IsActive reports whether the token can still be exchanged.
func (t *RefreshToken) IsActive(now time.Time) bool {
	return !t.Revoked && now.Before(t.ExpiresAt)
}
