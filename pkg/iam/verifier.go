// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package iam

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/LeeDigitalWorks/zapmeter/pkg/authz"
	"github.com/LeeDigitalWorks/zapmeter/pkg/logger"
)

var (
	// ErrDeniedByPolicy is returned when an attached policy explicitly
	// denies the request.
	ErrDeniedByPolicy = errors.New("denied by policy")

	// ErrSignatureMismatch is returned when the signature does not match.
	ErrSignatureMismatch = errors.New("signature does not match")

	// ErrRequestTimeTooSkewed is returned when the request timestamp is
	// outside the allowed clock skew.
	ErrRequestTimeTooSkewed = errors.New("request time too skewed")
)

const (
	defaultRegion       = "us-east-1"
	defaultMaxClockSkew = 15 * time.Minute
)

// VerifierConfig configures a Verifier.
type VerifierConfig struct {
	Region       string        `mapstructure:"region"`
	MaxClockSkew time.Duration `mapstructure:"max_clock_skew"`
}

// VerifyResult is the outcome of Verify. Identity is only set when Authed.
type VerifyResult struct {
	Authed   bool
	Identity authz.Identity
}

// Verifier authenticates signed requests and classifies the caller.
type Verifier struct {
	store        Store
	region       string
	maxClockSkew time.Duration
	now          func() time.Time
}

// NewVerifier creates a Verifier over store.
func NewVerifier(store Store, cfg VerifierConfig) *Verifier {
	if cfg.Region == "" {
		cfg.Region = defaultRegion
	}
	if cfg.MaxClockSkew <= 0 {
		cfg.MaxClockSkew = defaultMaxClockSkew
	}
	return &Verifier{
		store:        store,
		region:       cfg.Region,
		maxClockSkew: cfg.MaxClockSkew,
		now:          time.Now,
	}
}

// Region returns the region requests must be signed for.
func (v *Verifier) Region() string { return v.region }

// Verify authenticates req for scope. An unknown or inactive access key
// and an explicit policy deny both yield Authed false with a nil error;
// every other failure is returned.
//
// For IAM users the returned identity carries the requested resources
// the user's policies allow.
func (v *Verifier) Verify(ctx context.Context, req SignedRequest, scope Scope) (VerifyResult, error) {
	res, err := v.verify(ctx, req, scope)
	outcome := "authed"
	switch {
	case errors.Is(err, ErrAccessKeyNotFound), errors.Is(err, ErrDeniedByPolicy):
		logger.Ctx(ctx).Debug().Err(err).Str("access_key", req.AccessKey).Msg("request not authenticated")
		verificationsTotal.WithLabelValues("rejected").Inc()
		return VerifyResult{}, nil
	case err != nil:
		outcome = "error"
	}
	verificationsTotal.WithLabelValues(outcome).Inc()
	return res, err
}

func (v *Verifier) verify(ctx context.Context, req SignedRequest, scope Scope) (VerifyResult, error) {
	cred, err := v.store.GetCredential(ctx, req.AccessKey)
	if err != nil {
		return VerifyResult{}, err
	}
	if !cred.IsActive() {
		return VerifyResult{}, fmt.Errorf("inactive credential: %w", ErrAccessKeyNotFound)
	}

	if skew := v.now().Sub(req.Timestamp); skew > v.maxClockSkew || -skew > v.maxClockSkew {
		return VerifyResult{}, ErrRequestTimeTooSkewed
	}
	if !VerifySignature(cred.SecretKey, v.region, req, scope) {
		return VerifyResult{}, ErrSignatureMismatch
	}

	account, err := v.store.GetAccount(ctx, cred.AccountShortID)
	if err != nil {
		return VerifyResult{}, fmt.Errorf("credential owner: %w", err)
	}

	switch {
	case cred.Service:
		return VerifyResult{Authed: true, Identity: authz.ServiceUser{
			CanonicalID: account.CanonicalID,
			ShortID:     account.ShortID,
			Name:        cred.ServiceName,
		}}, nil
	case cred.UserID == "":
		return VerifyResult{Authed: true, Identity: authz.AccountRoot{
			CanonicalID: account.CanonicalID,
			ShortID:     account.ShortID,
		}}, nil
	}

	user, err := v.store.LookupUser(ctx, cred.UserID)
	if err != nil {
		return VerifyResult{}, fmt.Errorf("credential owner: %w", err)
	}
	if user.Disabled {
		return VerifyResult{}, fmt.Errorf("user %q disabled: %w", user.ID, ErrAccessKeyNotFound)
	}
	candidates, err := v.candidates(ctx, account, user, scope)
	if err != nil {
		return VerifyResult{}, err
	}
	return VerifyResult{Authed: true, Identity: authz.IAMUser{
		CanonicalID:        account.CanonicalID,
		ARN:                user.ARN(),
		UserID:             user.ID,
		CandidateResources: candidates,
	}}, nil
}

// candidates returns the requested resources the user's policies allow.
// An explicit deny on any of them rejects the whole request.
func (v *Verifier) candidates(ctx context.Context, account *Account, user *User, scope Scope) ([]string, error) {
	policies, err := v.store.UserPolicies(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	evalCtx := &EvaluationContext{
		Action:    QualifiedAction(scope.Action),
		Level:     scope.Level,
		AccountID: account.ShortID,
		UserName:  user.Name,
		UserARN:   user.ARN(),
	}
	var allowed []string
	for _, r := range scope.Resources {
		evalCtx.Resource = ResourceARN(account.ShortID, scope.Level, r)
		switch EvaluateAll(policies, evalCtx) {
		case DecisionDeny:
			return nil, fmt.Errorf("%s on %s: %w", evalCtx.Action, evalCtx.Resource, ErrDeniedByPolicy)
		case DecisionAllow:
			allowed = append(allowed, r)
		}
	}
	return allowed, nil
}
