// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package iam

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/LeeDigitalWorks/zapmeter/pkg/authz"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRegion = "us-east-1"

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *MemoryStore {
	t.Helper()
	store, err := LoadFromConfig(Config{
		Accounts: []AccountConfig{
			{ID: "acct1", CanonicalID: "C1", DisplayName: "one", AccessKey: "ROOT1", SecretKey: "root1-secret"},
			{ID: "svc", CanonicalID: "CS", DisplayName: "service"},
		},
		Users: []UserConfig{
			{ID: "u1", Name: "alice", AccountID: "acct1", AccessKey: "ALICE", SecretKey: "alice-secret", Policies: []string{"Buckets"}},
			{ID: "u2", Name: "bob", AccountID: "acct1", AccessKey: "BOB", SecretKey: "bob-secret", Policies: []string{"Buckets", "NoSecret"}},
			{ID: "u3", Name: "carol", AccountID: "acct1", AccessKey: "CAROL", SecretKey: "carol-secret", Disabled: true},
		},
		ServiceUsers: []ServiceUserConfig{
			{Name: "service-billing", AccountID: "svc", AccessKey: "SVC", SecretKey: "svc-secret"},
		},
		Policies: []PolicyConfig{
			{Name: "Buckets", Document: `{"Statement":[{"Effect":"Allow","Action":"metering:ListMetrics","Resource":"arn:aws:metering::acct1:buckets/*"}]}`},
			{Name: "NoSecret", Document: `{"Statement":[{"Effect":"Deny","Action":"*","Resource":"arn:aws:metering::*:buckets/secret"}]}`},
		},
	})
	require.NoError(t, err)
	return store
}

func newTestVerifier(t *testing.T) *Verifier {
	t.Helper()
	v := NewVerifier(newTestStore(t), VerifierConfig{Region: testRegion})
	v.now = func() time.Time { return testNow }
	return v
}

func signed(accessKey, secret string, scope Scope) SignedRequest {
	return Sign(accessKey, secret, testRegion, testNow, scope)
}

func TestVerifier_Classification(t *testing.T) {
	t.Parallel()
	v := newTestVerifier(t)
	ctx := context.Background()
	scope := Scope{Action: "ListMetrics", Level: "buckets", Resources: []string{"b1"}}

	t.Run("account root", func(t *testing.T) {
		res, err := v.Verify(ctx, signed("ROOT1", "root1-secret", scope), scope)
		require.NoError(t, err)
		require.True(t, res.Authed)
		assert.Equal(t, authz.AccountRoot{CanonicalID: "C1", ShortID: "acct1"}, res.Identity)
	})

	t.Run("service user", func(t *testing.T) {
		res, err := v.Verify(ctx, signed("SVC", "svc-secret", scope), scope)
		require.NoError(t, err)
		require.True(t, res.Authed)
		assert.Equal(t, authz.ServiceUser{CanonicalID: "CS", ShortID: "svc", Name: "service-billing"}, res.Identity)
	})

	t.Run("iam user", func(t *testing.T) {
		res, err := v.Verify(ctx, signed("ALICE", "alice-secret", scope), scope)
		require.NoError(t, err)
		require.True(t, res.Authed)
		assert.Equal(t, authz.IAMUser{
			CanonicalID:        "C1",
			ARN:                "arn:aws:iam::acct1:user/alice",
			UserID:             "u1",
			CandidateResources: []string{"b1"},
		}, res.Identity)
	})
}

func TestVerifier_CandidateResources(t *testing.T) {
	t.Parallel()
	v := newTestVerifier(t)
	ctx := context.Background()

	scope := Scope{Action: "ListMetrics", Level: "users", Resources: []string{"u1"}}
	res, err := v.Verify(ctx, signed("ALICE", "alice-secret", scope), scope)
	require.NoError(t, err)
	require.True(t, res.Authed, "an authenticated user with no allowed resources is still authenticated")
	assert.Empty(t, res.Identity.(authz.IAMUser).CandidateResources)

	scope = Scope{Action: "ListMetrics", Level: "buckets", Resources: []string{"b1", "b2"}}
	res, err = v.Verify(ctx, signed("BOB", "bob-secret", scope), scope)
	require.NoError(t, err)
	assert.Equal(t, []string{"b1", "b2"}, res.Identity.(authz.IAMUser).CandidateResources)
}

func TestVerifier_RejectionsAreNotErrors(t *testing.T) {
	t.Parallel()
	v := newTestVerifier(t)
	ctx := context.Background()

	t.Run("unknown access key", func(t *testing.T) {
		scope := Scope{Action: "ListMetrics", Level: "buckets", Resources: []string{"b1"}}
		res, err := v.Verify(ctx, signed("NOPE", "whatever", scope), scope)
		require.NoError(t, err)
		assert.False(t, res.Authed)
		assert.Nil(t, res.Identity)
	})

	t.Run("explicit policy deny", func(t *testing.T) {
		scope := Scope{Action: "ListMetrics", Level: "buckets", Resources: []string{"b1", "secret"}}
		res, err := v.Verify(ctx, signed("BOB", "bob-secret", scope), scope)
		require.NoError(t, err)
		assert.False(t, res.Authed)
	})

	t.Run("disabled user", func(t *testing.T) {
		scope := Scope{Action: "ListMetrics", Level: "buckets", Resources: []string{"b1"}}
		res, err := v.Verify(ctx, signed("CAROL", "carol-secret", scope), scope)
		require.NoError(t, err)
		assert.False(t, res.Authed)
	})
}

func TestVerifier_FailuresPropagate(t *testing.T) {
	t.Parallel()
	v := newTestVerifier(t)
	ctx := context.Background()
	scope := Scope{Action: "ListMetrics", Level: "buckets", Resources: []string{"b1"}}

	t.Run("bad signature", func(t *testing.T) {
		_, err := v.Verify(ctx, signed("ROOT1", "wrong-secret", scope), scope)
		assert.ErrorIs(t, err, ErrSignatureMismatch)
	})

	t.Run("scope changed after signing", func(t *testing.T) {
		req := signed("ROOT1", "root1-secret", scope)
		_, err := v.Verify(ctx, req, Scope{Action: "ListMetrics", Level: "buckets", Resources: []string{"b1", "b9"}})
		assert.ErrorIs(t, err, ErrSignatureMismatch)
	})

	t.Run("clock skew", func(t *testing.T) {
		req := Sign("ROOT1", "root1-secret", testRegion, testNow.Add(-time.Hour), scope)
		_, err := v.Verify(ctx, req, scope)
		assert.ErrorIs(t, err, ErrRequestTimeTooSkewed)
	})

	t.Run("store failure", func(t *testing.T) {
		boom := errors.New("identity database unavailable")
		fv := NewVerifier(failingStore{err: boom}, VerifierConfig{})
		_, err := fv.Verify(ctx, signed("ROOT1", "root1-secret", scope), scope)
		assert.ErrorIs(t, err, boom)
	})
}

type failingStore struct {
	Store
	err error
}

func (f failingStore) GetCredential(context.Context, string) (*Credential, error) {
	return nil, f.err
}

func TestNewVerifier_Defaults(t *testing.T) {
	v := NewVerifier(NewMemoryStore(), VerifierConfig{})
	assert.Equal(t, defaultRegion, v.Region())
	assert.Equal(t, defaultMaxClockSkew, v.maxClockSkew)
}
