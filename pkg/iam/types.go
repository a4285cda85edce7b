// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package iam

import (
	"fmt"
	"time"
)

// Credential is an access key and secret key pair. It belongs to an
// account root (UserID empty), an IAM user, or a service user.
type Credential struct {
	AccessKey      string     `json:"access_key"`
	SecretKey      string     `json:"secret_key,omitempty"`
	AccountShortID string     `json:"account_id"`
	UserID         string     `json:"user_id,omitempty"`
	Service        bool       `json:"service,omitempty"` // trusted internal caller
	ServiceName    string     `json:"service_name,omitempty"`
	Status         string     `json:"status"` // "Active" or "Inactive"
	CreatedAt      time.Time  `json:"created_at"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
}

// IsActive returns true if the credential is active and not expired
func (c *Credential) IsActive() bool {
	if c.Status != "" && c.Status != "Active" {
		return false
	}
	if c.ExpiresAt != nil && time.Now().After(*c.ExpiresAt) {
		return false
	}
	return true
}

// Account is a billing/ownership identity.
type Account struct {
	ShortID      string `json:"id"`           // externally visible account ID
	CanonicalID  string `json:"canonical_id"` // stable internal ID
	DisplayName  string `json:"display_name"`
	EmailAddress string `json:"email_address,omitempty"`
}

// User is an IAM user inside an account.
type User struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	AccountShortID string   `json:"account_id"`
	Policies       []string `json:"policies,omitempty"` // attached policy names
	Disabled       bool     `json:"disabled"`
}

// ARN returns the user's ARN, arn:aws:iam::<account>:user/<name>.
func (u *User) ARN() string {
	return fmt.Sprintf("arn:aws:iam::%s:user/%s", u.AccountShortID, u.Name)
}
