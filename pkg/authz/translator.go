// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package authz

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/LeeDigitalWorks/zapmeter/pkg/logger"

	"golang.org/x/sync/errgroup"
)

var (
	// ErrLookupFailed wraps a failure of an account, user or bucket lookup.
	// A request that hits it is denied, but the error keeps it
	// distinguishable from a policy denial.
	ErrLookupFailed = errors.New("authz: lookup failed")

	// ErrNotFound is returned by lookups for records that do not exist.
	ErrNotFound = errors.New("authz: not found")
)

// maxConcurrentLookups bounds the per-request lookup fan-out.
const maxConcurrentLookups = 32

// Request is the scope of a metrics query.
type Request struct {
	Action    string
	Level     Level
	Resources []string
}

// Resource is one authorized resource. ID is the canonical identifier
// counters for the resource are stored under.
type Resource struct {
	Resource string
	ID       string
}

// Result is an authorization decision. Resources is only set when
// Authorized is true and is not ordered like the request.
type Result struct {
	Authorized bool
	Resources  []Resource
}

// Account is an account record returned by AccountResolver.
type Account struct {
	ShortID     string
	CanonicalID string
}

// User is a user record returned by UserLookup.
type User struct {
	ID             string
	AccountShortID string
}

// Bucket is the bucket metadata returned by BucketLookup.
type Bucket struct {
	Name    string
	OwnerID string
}

// AccountResolver resolves account short IDs to canonical IDs. Unknown
// short IDs are omitted from the result.
type AccountResolver interface {
	ResolveAccounts(ctx context.Context, shortIDs []string) ([]Account, error)
}

// UserLookup fetches a user record by ID, returning ErrNotFound for
// unknown users.
type UserLookup interface {
	GetUser(ctx context.Context, id string) (User, error)
}

// BucketLookup fetches bucket metadata by name.
type BucketLookup interface {
	GetBucket(ctx context.Context, name string) (Bucket, error)
}

// Translator decides which requested resources a caller may query and
// maps each to its canonical ID. It holds no state between requests.
type Translator struct {
	accounts AccountResolver
	users    UserLookup
	buckets  BucketLookup
}

// NewTranslator creates a Translator over the given lookups.
func NewTranslator(accounts AccountResolver, users UserLookup, buckets BucketLookup) *Translator {
	return &Translator{
		accounts: accounts,
		users:    users,
		buckets:  buckets,
	}
}

// Translate evaluates req for id. Denials are returned as a Result with
// Authorized false and a nil error. A failed lookup denies the request and
// returns an error wrapping ErrLookupFailed. An unknown level panics.
func (t *Translator) Translate(ctx context.Context, id Identity, req Request) (Result, error) {
	start := time.Now()
	res, err := t.dispatch(ctx, id, req)
	observeDecision(id.Class(), req.Level, res, err, time.Since(start))

	log := logger.Ctx(ctx)
	switch {
	case err != nil:
		log.Warn().Err(err).
			Str("class", string(id.Class())).
			Str("level", string(req.Level)).
			Msg("authorization lookup failed")
		return Result{}, err
	case !res.Authorized:
		log.Debug().
			Str("class", string(id.Class())).
			Str("level", string(req.Level)).
			Str("action", req.Action).
			Strs("resources", req.Resources).
			Msg("request denied")
	}
	return res, nil
}

func (t *Translator) dispatch(ctx context.Context, id Identity, req Request) (Result, error) {
	switch v := id.(type) {
	case ServiceUser:
		return t.forServiceUser(ctx, req)
	case *ServiceUser:
		return t.forServiceUser(ctx, req)
	case AccountRoot:
		return t.forAccountRoot(ctx, v, req)
	case *AccountRoot:
		return t.forAccountRoot(ctx, *v, req)
	case IAMUser:
		return t.forIAMUser(ctx, v, req)
	case *IAMUser:
		return t.forIAMUser(ctx, *v, req)
	}
	panic(fmt.Sprintf("authz: unhandled identity %T", id))
}

func (t *Translator) forServiceUser(ctx context.Context, req Request) (Result, error) {
	switch req.Level {
	case LevelAccounts:
		accounts, err := t.accounts.ResolveAccounts(ctx, req.Resources)
		if err != nil {
			return Result{}, fmt.Errorf("%w: resolve accounts: %w", ErrLookupFailed, err)
		}
		out := make([]Resource, 0, len(accounts))
		for _, a := range accounts {
			out = append(out, Resource{Resource: a.ShortID, ID: a.CanonicalID})
		}
		return authorized(out), nil
	case LevelUsers, LevelBuckets, LevelService:
		out := make([]Resource, len(req.Resources))
		for i, r := range req.Resources {
			out[i] = Resource{Resource: r, ID: r}
		}
		return Result{Authorized: true, Resources: out}, nil
	}
	panic(fmt.Sprintf("authz: unknown level %q", string(req.Level)))
}

func (t *Translator) forAccountRoot(ctx context.Context, a AccountRoot, req Request) (Result, error) {
	switch req.Level {
	case LevelAccounts:
		return ownAccount(req.Resources, a.ShortID, a.CanonicalID), nil
	case LevelUsers:
		return t.usersOf(ctx, req.Resources, a.ShortID)
	case LevelBuckets:
		return t.bucketsOwnedBy(ctx, req.Resources, a.CanonicalID)
	case LevelService:
		return Result{}, nil
	}
	panic(fmt.Sprintf("authz: unknown level %q", string(req.Level)))
}

func (t *Translator) forIAMUser(ctx context.Context, u IAMUser, req Request) (Result, error) {
	if !req.Level.Valid() {
		panic(fmt.Sprintf("authz: unknown level %q", string(req.Level)))
	}
	if len(u.CandidateResources) == 0 {
		return Result{}, nil
	}
	switch req.Level {
	case LevelAccounts:
		return ownAccount(u.CandidateResources, u.AccountID(), u.CanonicalID), nil
	case LevelUsers:
		return t.usersOf(ctx, u.CandidateResources, u.AccountID())
	case LevelBuckets:
		return t.bucketsOwnedBy(ctx, u.CandidateResources, u.CanonicalID)
	case LevelService:
		return Result{}, nil
	}
	panic(fmt.Sprintf("authz: unknown level %q", string(req.Level)))
}

// ownAccount authorizes a request for exactly the caller's own account.
func ownAccount(resources []string, shortID, canonicalID string) Result {
	if shortID == "" || len(resources) != 1 || resources[0] != shortID {
		return Result{}
	}
	return Result{
		Authorized: true,
		Resources:  []Resource{{Resource: shortID, ID: canonicalID}},
	}
}

// usersOf keeps the users whose parent account is accountShortID. Unknown
// users are dropped.
func (t *Translator) usersOf(ctx context.Context, ids []string, accountShortID string) (Result, error) {
	users := make([]User, len(ids))
	found := make([]bool, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentLookups)
	for i, id := range ids {
		g.Go(func() error {
			start := time.Now()
			u, err := t.users.GetUser(gctx, id)
			lookupDuration.WithLabelValues("user").Observe(time.Since(start).Seconds())
			if errors.Is(err, ErrNotFound) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("%w: user %q: %w", ErrLookupFailed, id, err)
			}
			users[i], found[i] = u, true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	var out []Resource
	for i, u := range users {
		if found[i] && accountShortID != "" && u.AccountShortID == accountShortID {
			out = append(out, Resource{Resource: ids[i], ID: u.ID})
		}
	}
	return authorized(out), nil
}

// bucketsOwnedBy keeps the buckets owned by canonicalID. Any failed
// metadata lookup, including an unknown bucket, fails the whole request.
func (t *Translator) bucketsOwnedBy(ctx context.Context, names []string, canonicalID string) (Result, error) {
	buckets := make([]Bucket, len(names))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentLookups)
	for i, name := range names {
		g.Go(func() error {
			start := time.Now()
			b, err := t.buckets.GetBucket(gctx, name)
			lookupDuration.WithLabelValues("bucket").Observe(time.Since(start).Seconds())
			if err != nil {
				return fmt.Errorf("%w: bucket %q: %w", ErrLookupFailed, name, err)
			}
			buckets[i] = b
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	var out []Resource
	for i, b := range buckets {
		if b.OwnerID == canonicalID {
			out = append(out, Resource{Resource: names[i], ID: names[i]})
		}
	}
	return authorized(out), nil
}

func authorized(rs []Resource) Result {
	if len(rs) == 0 {
		return Result{}
	}
	return Result{Authorized: true, Resources: rs}
}
