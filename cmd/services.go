// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/LeeDigitalWorks/zapmeter/pkg/authz"
	"github.com/LeeDigitalWorks/zapmeter/pkg/bucket"
	"github.com/LeeDigitalWorks/zapmeter/pkg/counterstore"
	"github.com/LeeDigitalWorks/zapmeter/pkg/env"
	"github.com/LeeDigitalWorks/zapmeter/pkg/iam"
	"github.com/LeeDigitalWorks/zapmeter/pkg/logger"
	"github.com/LeeDigitalWorks/zapmeter/pkg/metering"
	"github.com/LeeDigitalWorks/zapmeter/pkg/utils"

	"github.com/spf13/viper"
)

// loadMeteringConfig reads the top-level namespace, reporting_interval and
// service_name keys.
func loadMeteringConfig() (metering.Config, error) {
	cfg := metering.DefaultConfig()
	if err := viper.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("parse metering config: %w", err)
	}
	return cfg, cfg.Validate()
}

// openStore opens the counter store configured under "store". The
// --store_backend flag overrides store.backend.
func openStore(flags *FlagLoader) (counterstore.Store, error) {
	cfg := counterstore.DefaultConfig()
	if viper.IsSet("store") {
		if err := viper.UnmarshalKey("store", &cfg); err != nil {
			return nil, fmt.Errorf("parse store config: %w", err)
		}
	}
	if backend := flags.String("store_backend"); backend != "" {
		cfg.Backend = backend
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Backend == counterstore.BackendLevelDB {
		path, err := utils.PrepareDataDir(cfg.LevelDB.Path)
		if err != nil {
			return nil, err
		}
		cfg.LevelDB.Path = path
	}

	store, err := counterstore.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Backend, err)
	}
	logger.Info().Str("backend", cfg.Backend).Msg("counter store opened")
	return store, nil
}

// loadIdentities builds the identity store from "iam". Outside production
// a missing section falls back to the development identities.
func loadIdentities() (*iam.MemoryStore, iam.Config, error) {
	cfg := iam.DefaultConfig()
	if viper.IsSet("iam") {
		cfg = iam.Config{}
		if err := viper.UnmarshalKey("iam", &cfg); err != nil {
			return nil, cfg, fmt.Errorf("parse iam config: %w", err)
		}
	} else {
		if env.IsProduction() {
			return nil, cfg, errors.New("iam configuration is required in production")
		}
		logger.Warn().Msg("no iam configuration, using development identities")
	}

	store, err := iam.LoadFromConfig(cfg)
	if err != nil {
		return nil, cfg, err
	}
	return store, cfg, nil
}

// loadBuckets reads bucket ownership from "buckets".
func loadBuckets() (*bucket.Store, error) {
	var infos []bucket.Info
	if err := viper.UnmarshalKey("buckets", &infos); err != nil {
		return nil, fmt.Errorf("parse buckets: %w", err)
	}
	return bucket.NewStoreFrom(infos), nil
}

// queryService is the metering service plus the lookups list-metrics uses
// to pick resources when none are given.
type queryService struct {
	*metering.Service
	region  string // requests must be signed for this region
	ids     *iam.MemoryStore
	buckets *bucket.Store
}

// newQueryService wires verifier, translator and store together.
func newQueryService(store counterstore.Store, cfg metering.Config) (*queryService, error) {
	ids, iamCfg, err := loadIdentities()
	if err != nil {
		return nil, err
	}
	buckets, err := loadBuckets()
	if err != nil {
		return nil, err
	}
	verifier := iam.NewVerifier(ids, iamCfg.VerifierConfig())
	svc, err := metering.NewService(store, verifier, authz.NewTranslator(ids, ids, buckets), cfg)
	if err != nil {
		return nil, err
	}
	return &queryService{Service: svc, region: verifier.Region(), ids: ids, buckets: buckets}, nil
}

// defaultResources resolves the resources queried when --resources is
// empty: every bucket the caller's account owns, or the caller's own
// account.
func (q *queryService) defaultResources(ctx context.Context, level authz.Level, accessKey string) ([]string, error) {
	if level != authz.LevelBuckets && level != authz.LevelAccounts {
		return nil, fmt.Errorf("--resources is required at the %s level", level)
	}
	cred, err := q.ids.GetCredential(ctx, accessKey)
	if err != nil {
		return nil, fmt.Errorf("resolve access key: %w", err)
	}
	if level == authz.LevelAccounts {
		return []string{cred.AccountShortID}, nil
	}

	account, err := q.ids.GetAccount(ctx, cred.AccountShortID)
	if err != nil {
		return nil, fmt.Errorf("resolve account %q: %w", cred.AccountShortID, err)
	}
	owned := q.buckets.ListByOwner(account.CanonicalID)
	if len(owned) == 0 {
		return nil, fmt.Errorf("account %s owns no buckets", cred.AccountShortID)
	}
	names := make([]string, len(owned))
	for i, b := range owned {
		names[i] = b.Name
	}
	return names, nil
}
