// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package iam

import (
	"context"
	"fmt"
	"time"
)

// Config is the identity database loaded from the config file.
//
// Example TOML:
//
//	[iam]
//	region = "us-east-1"
//	max_clock_skew = "15m"
//
//	[[iam.accounts]]
//	id = "123456789012"
//	canonical_id = "79a59df900b949e55d96a1e698fbacedfd6e09d98eacf8f8d5218e7cd47ef2be"
//	display_name = "acme"
//	access_key = "AKIAACMEROOT"
//	secret_key = "acme-root-secret"
//
//	[[iam.users]]
//	id = "AIDAALICE"
//	name = "alice"
//	account_id = "123456789012"
//	access_key = "AKIAALICE"
//	secret_key = "alice-secret"
//	policies = ["BucketMetrics"]
//
//	[[iam.service_users]]
//	name = "service-billing"
//	account_id = "000000000000"
//	access_key = "AKIABILLING"
//	secret_key = "billing-secret"
//
//	[[iam.policies]]
//	name = "BucketMetrics"
//	document = '{"Version":"2012-10-17","Statement":[{"Effect":"Allow","Action":"metering:ListMetrics","Resource":"arn:aws:metering::*:buckets/*"}]}'
type Config struct {
	Region       string        `mapstructure:"region"`
	MaxClockSkew time.Duration `mapstructure:"max_clock_skew"`

	Accounts     []AccountConfig     `mapstructure:"accounts"`
	Users        []UserConfig        `mapstructure:"users"`
	ServiceUsers []ServiceUserConfig `mapstructure:"service_users"`
	Policies     []PolicyConfig      `mapstructure:"policies"`
}

// AccountConfig is an account and, optionally, its root key.
type AccountConfig struct {
	ID          string `mapstructure:"id"`
	CanonicalID string `mapstructure:"canonical_id"`
	DisplayName string `mapstructure:"display_name"`
	Email       string `mapstructure:"email"`
	AccessKey   string `mapstructure:"access_key"`
	SecretKey   string `mapstructure:"secret_key"`
}

// UserConfig is an IAM user and, optionally, its access key.
type UserConfig struct {
	ID        string   `mapstructure:"id"`
	Name      string   `mapstructure:"name"`
	AccountID string   `mapstructure:"account_id"`
	AccessKey string   `mapstructure:"access_key"`
	SecretKey string   `mapstructure:"secret_key"`
	Disabled  bool     `mapstructure:"disabled"`
	Policies  []string `mapstructure:"policies"`
}

// ServiceUserConfig is a trusted internal caller's key.
type ServiceUserConfig struct {
	Name      string `mapstructure:"name"`
	AccountID string `mapstructure:"account_id"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
}

// PolicyConfig is a named policy document.
type PolicyConfig struct {
	Name     string `mapstructure:"name"`
	Document string `mapstructure:"document"` // JSON policy document
}

// DefaultConfig returns a development configuration with one account, its
// root key, and a service user.
func DefaultConfig() Config {
	return Config{
		Region:       defaultRegion,
		MaxClockSkew: defaultMaxClockSkew,
		Accounts: []AccountConfig{
			{
				ID:          "000000000001",
				CanonicalID: "canonical-000000000001",
				DisplayName: "dev",
				AccessKey:   "dev-access-key",
				SecretKey:   "dev-secret-key",
			},
			{
				ID:          "000000000000",
				CanonicalID: "canonical-service",
				DisplayName: "service",
			},
		},
		ServiceUsers: []ServiceUserConfig{
			{
				Name:      "service-metering",
				AccountID: "000000000000",
				AccessKey: "service-access-key",
				SecretKey: "service-secret-key",
			},
		},
	}
}

// VerifierConfig returns the Verifier settings of cfg.
func (cfg Config) VerifierConfig() VerifierConfig {
	return VerifierConfig{Region: cfg.Region, MaxClockSkew: cfg.MaxClockSkew}
}

// LoadFromConfig builds a MemoryStore from cfg. Policies are parsed first
// so that a user referencing an unknown policy is rejected.
func LoadFromConfig(cfg Config) (*MemoryStore, error) {
	ctx := context.Background()
	store := NewMemoryStore()
	now := time.Now()

	for _, pc := range cfg.Policies {
		if pc.Document == "" {
			return nil, fmt.Errorf("policy %q: empty document", pc.Name)
		}
		policy, err := PolicyFromJSON(pc.Document)
		if err != nil {
			return nil, fmt.Errorf("policy %q: %w", pc.Name, err)
		}
		policy.ID = pc.Name
		store.PutPolicy(ctx, pc.Name, policy)
	}

	for _, ac := range cfg.Accounts {
		if ac.ID == "" || ac.CanonicalID == "" {
			return nil, fmt.Errorf("account %q: id and canonical_id are required", ac.DisplayName)
		}
		err := store.CreateAccount(ctx, &Account{
			ShortID:      ac.ID,
			CanonicalID:  ac.CanonicalID,
			DisplayName:  ac.DisplayName,
			EmailAddress: ac.Email,
		})
		if err != nil {
			return nil, err
		}
		if ac.AccessKey != "" {
			err := store.CreateAccessKey(ctx, &Credential{
				AccessKey:      ac.AccessKey,
				SecretKey:      ac.SecretKey,
				AccountShortID: ac.ID,
				Status:         "Active",
				CreatedAt:      now,
			})
			if err != nil {
				return nil, err
			}
		}
	}

	for _, uc := range cfg.Users {
		id := uc.ID
		if id == "" {
			id = uc.Name
		}
		for _, name := range uc.Policies {
			if _, exists := store.policies[name]; !exists {
				return nil, fmt.Errorf("user %q: policy %q: %w", uc.Name, name, ErrPolicyNotFound)
			}
		}
		err := store.CreateUser(ctx, &User{
			ID:             id,
			Name:           uc.Name,
			AccountShortID: uc.AccountID,
			Policies:       uc.Policies,
			Disabled:       uc.Disabled,
		})
		if err != nil {
			return nil, err
		}
		if uc.AccessKey != "" {
			err := store.CreateAccessKey(ctx, &Credential{
				AccessKey:      uc.AccessKey,
				SecretKey:      uc.SecretKey,
				AccountShortID: uc.AccountID,
				UserID:         id,
				Status:         "Active",
				CreatedAt:      now,
			})
			if err != nil {
				return nil, err
			}
		}
	}

	for _, sc := range cfg.ServiceUsers {
		err := store.CreateAccessKey(ctx, &Credential{
			AccessKey:      sc.AccessKey,
			SecretKey:      sc.SecretKey,
			AccountShortID: sc.AccountID,
			Service:        true,
			ServiceName:    sc.Name,
			Status:         "Active",
			CreatedAt:      now,
		})
		if err != nil {
			return nil, fmt.Errorf("service user %q: %w", sc.Name, err)
		}
	}

	return store, nil
}
