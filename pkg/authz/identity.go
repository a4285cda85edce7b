// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package authz

import "strings"

// Class names the kind of caller an Identity represents.
type Class string

const (
	ClassServiceUser Class = "service_user"
	ClassAccountRoot Class = "account_root"
	ClassIAMUser     Class = "iam_user"
)

// Identity is a verified caller. The set of implementations is closed:
// ServiceUser, AccountRoot and IAMUser.
type Identity interface {
	Class() Class
	// Canonical is the canonical ID of the account the caller acts for.
	Canonical() string
	sealed()
}

// ServiceUser is a trusted internal caller. It is exempt from ownership
// checks except for account-level resolution.
type ServiceUser struct {
	CanonicalID string
	ShortID     string
	Name        string
}

func (ServiceUser) Class() Class        { return ClassServiceUser }
func (u ServiceUser) Canonical() string { return u.CanonicalID }
func (ServiceUser) sealed()             {}

// AccountRoot is an account's root key.
type AccountRoot struct {
	CanonicalID string
	ShortID     string
}

func (AccountRoot) Class() Class        { return ClassAccountRoot }
func (a AccountRoot) Canonical() string { return a.CanonicalID }
func (AccountRoot) sealed()             {}

// IAMUser is a non-root user key. CandidateResources has already been
// filtered by the policy engine for the requested action.
type IAMUser struct {
	CanonicalID        string
	ARN                string
	UserID             string
	CandidateResources []string
}

func (IAMUser) Class() Class        { return ClassIAMUser }
func (u IAMUser) Canonical() string { return u.CanonicalID }
func (IAMUser) sealed()             {}

// AccountID returns the parent account short ID embedded in the ARN
// (arn:partition:iam::<account>:user/<name>), or "" if the ARN is malformed.
func (u IAMUser) AccountID() string {
	return ARNAccountID(u.ARN)
}

// ARNAccountID extracts the account field of an ARN.
func ARNAccountID(arn string) string {
	parts := strings.SplitN(arn, ":", 6)
	if len(parts) < 6 || parts[0] != "arn" {
		return ""
	}
	return parts[4]
}
