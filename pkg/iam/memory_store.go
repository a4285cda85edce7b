// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package iam

import (
	"context"
	"fmt"
	"sync"

	"github.com/LeeDigitalWorks/zapmeter/pkg/authz"
)

// MemoryStore is an in-memory identity database. Besides Store it
// implements authz.AccountResolver and authz.UserLookup.
type MemoryStore struct {
	mu          sync.RWMutex
	accounts    map[string]*Account    // short ID -> account
	users       map[string]*User       // user ID -> user
	credentials map[string]*Credential // access key -> credential
	policies    map[string]*Policy     // policy name -> document
}

var (
	_ Store                 = (*MemoryStore)(nil)
	_ authz.AccountResolver = (*MemoryStore)(nil)
	_ authz.UserLookup      = (*MemoryStore)(nil)
)

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts:    make(map[string]*Account),
		users:       make(map[string]*User),
		credentials: make(map[string]*Credential),
		policies:    make(map[string]*Policy),
	}
}

func (s *MemoryStore) CreateAccount(ctx context.Context, account *Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.accounts[account.ShortID]; exists {
		return fmt.Errorf("account %q: %w", account.ShortID, ErrAlreadyExists)
	}
	s.accounts[account.ShortID] = account
	return nil
}

func (s *MemoryStore) CreateUser(ctx context.Context, user *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[user.ID]; exists {
		return fmt.Errorf("user %q: %w", user.ID, ErrAlreadyExists)
	}
	if _, exists := s.accounts[user.AccountShortID]; !exists {
		return fmt.Errorf("user %q: %w", user.ID, ErrAccountNotFound)
	}
	s.users[user.ID] = user
	return nil
}

// CreateAccessKey registers a credential. Its owner (account, and user if
// set) must already exist.
func (s *MemoryStore) CreateAccessKey(ctx context.Context, cred *Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.credentials[cred.AccessKey]; exists {
		return fmt.Errorf("access key %q: %w", cred.AccessKey, ErrAlreadyExists)
	}
	if _, exists := s.accounts[cred.AccountShortID]; !exists {
		return fmt.Errorf("access key %q: %w", cred.AccessKey, ErrAccountNotFound)
	}
	if cred.UserID != "" {
		if _, exists := s.users[cred.UserID]; !exists {
			return fmt.Errorf("access key %q: %w", cred.AccessKey, ErrUserNotFound)
		}
	}
	s.credentials[cred.AccessKey] = cred
	return nil
}

func (s *MemoryStore) DeleteAccessKey(ctx context.Context, accessKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.credentials[accessKey]; !exists {
		return ErrAccessKeyNotFound
	}
	delete(s.credentials, accessKey)
	return nil
}

func (s *MemoryStore) PutPolicy(ctx context.Context, name string, policy *Policy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.policies[name] = policy
}

func (s *MemoryStore) GetCredential(ctx context.Context, accessKey string) (*Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cred, exists := s.credentials[accessKey]
	if !exists {
		return nil, ErrAccessKeyNotFound
	}
	return cred, nil
}

func (s *MemoryStore) GetAccount(ctx context.Context, shortID string) (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, exists := s.accounts[shortID]
	if !exists {
		return nil, ErrAccountNotFound
	}
	return account, nil
}

func (s *MemoryStore) LookupUser(ctx context.Context, id string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, exists := s.users[id]
	if !exists {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// UserPolicies returns the user's attached policies. A reference to a
// policy that does not exist is an error.
func (s *MemoryStore) UserPolicies(ctx context.Context, userID string) ([]*Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, exists := s.users[userID]
	if !exists {
		return nil, ErrUserNotFound
	}
	policies := make([]*Policy, 0, len(user.Policies))
	for _, name := range user.Policies {
		p, exists := s.policies[name]
		if !exists {
			return nil, fmt.Errorf("policy %q attached to %q: %w", name, userID, ErrPolicyNotFound)
		}
		policies = append(policies, p)
	}
	return policies, nil
}

// ResolveAccounts implements authz.AccountResolver.
func (s *MemoryStore) ResolveAccounts(ctx context.Context, shortIDs []string) ([]authz.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []authz.Account
	for _, id := range shortIDs {
		if a, exists := s.accounts[id]; exists {
			out = append(out, authz.Account{ShortID: a.ShortID, CanonicalID: a.CanonicalID})
		}
	}
	return out, nil
}

// GetUser implements authz.UserLookup.
func (s *MemoryStore) GetUser(ctx context.Context, id string) (authz.User, error) {
	user, err := s.LookupUser(ctx, id)
	if err != nil {
		return authz.User{}, fmt.Errorf("%w: %w", authz.ErrNotFound, err)
	}
	return authz.User{ID: user.ID, AccountShortID: user.AccountShortID}, nil
}
