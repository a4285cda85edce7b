// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package iam

import (
	"context"
	"errors"
)

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrAccountNotFound   = errors.New("account not found")
	ErrPolicyNotFound    = errors.New("policy not found")
	ErrAccessKeyNotFound = errors.New("access key not found")
	ErrAlreadyExists     = errors.New("already exists")
)

// Store is the read side of the identity database used by the Verifier.
type Store interface {
	// GetCredential returns the credential for an access key.
	GetCredential(ctx context.Context, accessKey string) (*Credential, error)

	// GetAccount returns an account by short ID.
	GetAccount(ctx context.Context, shortID string) (*Account, error)

	// LookupUser returns a user by ID.
	LookupUser(ctx context.Context, id string) (*User, error)

	// UserPolicies returns the policies attached to a user.
	UserPolicies(ctx context.Context, userID string) ([]*Policy, error)
}
