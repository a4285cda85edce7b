// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package metering

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/LeeDigitalWorks/zapmeter/pkg/authz"
	"github.com/LeeDigitalWorks/zapmeter/pkg/counterstore"
	"github.com/LeeDigitalWorks/zapmeter/pkg/iam"
	"github.com/LeeDigitalWorks/zapmeter/pkg/logger"
	"github.com/LeeDigitalWorks/zapmeter/pkg/schema"

	"golang.org/x/sync/errgroup"
)

// ActionListMetrics is the action a metrics query is signed and authorized for.
const ActionListMetrics = "ListMetrics"

const maxConcurrentReads = 16

var (
	// ErrInvalidTimeRange is returned for ranges not aligned to the reporting interval.
	ErrInvalidTimeRange = errors.New("metering: invalid time range")

	// ErrInvalidRequest is returned for malformed queries.
	ErrInvalidRequest = errors.New("metering: invalid request")

	// ErrAccessDenied is returned when the caller is not authenticated or
	// is not allowed any of the requested resources.
	ErrAccessDenied = errors.New("metering: access denied")
)

// Verifier authenticates a signed request.
type Verifier interface {
	Verify(ctx context.Context, req iam.SignedRequest, scope iam.Scope) (iam.VerifyResult, error)
}

// Translator authorizes a verified identity for a set of resources.
type Translator interface {
	Translate(ctx context.Context, id authz.Identity, req authz.Request) (authz.Result, error)
}

// ListMetricsInput is one metrics query.
type ListMetricsInput struct {
	Level     authz.Level
	Resources []string
	TimeRange TimeRange
}

// Scope returns what the caller signs for this query.
func (in ListMetricsInput) Scope() iam.Scope {
	return iam.Scope{Action: ActionListMetrics, Level: string(in.Level), Resources: in.Resources}
}

// Service answers metrics queries.
type Service struct {
	store      counterstore.Store
	verifier   Verifier
	translator Translator
	cfg        Config
}

// NewService creates a query service reading from store.
func NewService(store counterstore.Store, verifier Verifier, translator Translator, cfg Config) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Service{
		store:      store,
		verifier:   verifier,
		translator: translator,
		cfg:        cfg,
	}, nil
}

// ValidateTimeRange checks that tr starts on a reporting boundary and ends
// one millisecond before one.
func (c Config) ValidateTimeRange(tr TimeRange) error {
	iv := c.ReportingInterval.Milliseconds()
	switch {
	case tr.Start < 0 || tr.Start%iv != 0:
		return fmt.Errorf("%w: start %d is not on a %s boundary", ErrInvalidTimeRange, tr.Start, c.ReportingInterval)
	case tr.End < tr.Start:
		return fmt.Errorf("%w: end %d before start %d", ErrInvalidTimeRange, tr.End, tr.Start)
	case (tr.End+1)%iv != 0:
		return fmt.Errorf("%w: end %d does not close a %s interval", ErrInvalidTimeRange, tr.End, c.ReportingInterval)
	}
	return nil
}

// ListMetrics verifies req, authorizes the requested resources and returns
// their metrics in request order. Resources the caller may not see are
// left out; if none remain the query fails with ErrAccessDenied.
func (s *Service) ListMetrics(ctx context.Context, req iam.SignedRequest, in ListMetricsInput) ([]Metrics, error) {
	start := time.Now()
	out, err := s.listMetrics(ctx, req, in)
	observeQuery(in.Level, err, time.Since(start))
	return out, err
}

func (s *Service) listMetrics(ctx context.Context, req iam.SignedRequest, in ListMetricsInput) ([]Metrics, error) {
	if _, err := authz.ParseLevel(string(in.Level)); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	if len(in.Resources) == 0 {
		return nil, fmt.Errorf("%w: no resources", ErrInvalidRequest)
	}
	if err := s.cfg.ValidateTimeRange(in.TimeRange); err != nil {
		return nil, err
	}

	verified, err := s.verifier.Verify(ctx, req, in.Scope())
	if err != nil {
		return nil, fmt.Errorf("verify request: %w", err)
	}
	if !verified.Authed {
		return nil, ErrAccessDenied
	}

	res, err := s.translator.Translate(ctx, verified.Identity, authz.Request{
		Action:    ActionListMetrics,
		Level:     in.Level,
		Resources: in.Resources,
	})
	if err != nil {
		return nil, err
	}
	if !res.Authorized {
		return nil, ErrAccessDenied
	}

	resources := inRequestOrder(in.Resources, res.Resources)
	out := make([]Metrics, len(resources))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentReads)
	for i, r := range resources {
		g.Go(func() error {
			m, err := s.read(gctx, in.Level, r, in.TimeRange)
			if err != nil {
				return fmt.Errorf("read %s %q: %w", in.Level, r.Resource, err)
			}
			out[i] = m
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("level", string(in.Level)).Msg("metrics read failed")
		return nil, err
	}
	return out, nil
}

// read fetches every metric of one resource in a single batch.
func (s *Service) read(ctx context.Context, level authz.Level, r authz.Resource, tr TimeRange) (Metrics, error) {
	rt := level.ResourceType()
	key := func(metric string) string {
		return schema.NewMetricKey(rt, r.ID, metric).Key(s.cfg.Namespace)
	}
	start, end := counterstore.FormatMillis(tr.Start), counterstore.FormatMillis(tr.End)

	cmds := []counterstore.Command{
		counterstore.Cmd(counterstore.CmdZRevRangeByScore, key(schema.MetricStorageUtilized), start, "-inf"),
		counterstore.Cmd(counterstore.CmdZRevRangeByScore, key(schema.MetricStorageUtilized), end, "-inf"),
		counterstore.Cmd(counterstore.CmdZRevRangeByScore, key(schema.MetricNumberOfObjects), start, "-inf"),
		counterstore.Cmd(counterstore.CmdZRevRangeByScore, key(schema.MetricNumberOfObjects), end, "-inf"),
		counterstore.Cmd(counterstore.CmdZRangeByScore, key(schema.MetricIncomingBytes), start, end),
		counterstore.Cmd(counterstore.CmdZRangeByScore, key(schema.MetricOutgoingBytes), start, end),
	}
	const firstOp = 6
	for _, op := range schema.Operations {
		cmds = append(cmds, counterstore.Cmd(counterstore.CmdZRangeByScore, key(string(op)), start, end))
	}

	results, err := s.store.Pipeline(ctx, cmds)
	if err != nil {
		return Metrics{}, err
	}
	vals := make([]int64, len(results))
	for i, res := range results {
		if res.Err != nil {
			return Metrics{}, fmt.Errorf("%s %s: %w", cmds[i].Name, cmds[i].Args[0], res.Err)
		}
		members, _ := res.Val.([]string)
		if cmds[i].Name == counterstore.CmdZRevRangeByScore {
			vals[i], err = latest(members)
		} else {
			vals[i], err = sum(members)
		}
		if err != nil {
			return Metrics{}, fmt.Errorf("%s: %w", cmds[i].Args[0], err)
		}
	}

	m := Metrics{
		Level:           string(level),
		Resource:        r.Resource,
		TimeRange:       tr,
		StorageUtilized: [2]int64{vals[0], vals[1]},
		NumberOfObjects: [2]int64{vals[2], vals[3]},
		IncomingBytes:   vals[4],
		OutgoingBytes:   vals[5],
		Operations:      make(map[string]int64, len(schema.Operations)),
	}
	for i, op := range schema.Operations {
		m.Operations[s.cfg.Namespace+":"+string(op)] = vals[firstOp+i]
	}
	return m, nil
}

// latest decodes the first member of a descending range, or 0 if the
// range is empty.
func latest(members []string) (int64, error) {
	if len(members) == 0 {
		return 0, nil
	}
	return schema.DecodeInt(members[0])
}

func sum(members []string) (int64, error) {
	var total int64
	for _, m := range members {
		v, err := schema.DecodeInt(m)
		if err != nil {
			return 0, err
		}
		total += v
	}
	return total, nil
}

// inRequestOrder sorts authorized resources by their first position in
// the request.
func inRequestOrder(requested []string, rs []authz.Resource) []authz.Resource {
	pos := make(map[string]int, len(requested))
	for i, r := range requested {
		if _, ok := pos[r]; !ok {
			pos[r] = i
		}
	}
	out := slices.Clone(rs)
	slices.SortStableFunc(out, func(a, b authz.Resource) int {
		return pos[a.Resource] - pos[b.Resource]
	})
	return out
}
