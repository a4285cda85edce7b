// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package metering

import (
	"context"
	"testing"
	"time"

	"github.com/LeeDigitalWorks/zapmeter/pkg/authz"
	"github.com/LeeDigitalWorks/zapmeter/pkg/bucket"
	"github.com/LeeDigitalWorks/zapmeter/pkg/counterstore"
	"github.com/LeeDigitalWorks/zapmeter/pkg/iam"
	"github.com/LeeDigitalWorks/zapmeter/pkg/schema"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRegion = "us-east-1"

type testEnv struct {
	store *counterstore.LocalStore
	rec   *Recorder
	svc   *Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ids, err := iam.LoadFromConfig(iam.Config{
		Accounts: []iam.AccountConfig{
			{ID: "acct1", CanonicalID: "C1", AccessKey: "ROOT1", SecretKey: "root1-secret"},
			{ID: "acct2", CanonicalID: "C2", AccessKey: "ROOT2", SecretKey: "root2-secret"},
			{ID: "svc", CanonicalID: "CS"},
		},
		Users: []iam.UserConfig{
			{ID: "u1", Name: "alice", AccountID: "acct1", AccessKey: "ALICE", SecretKey: "alice-secret", Policies: []string{"Buckets"}},
		},
		ServiceUsers: []iam.ServiceUserConfig{
			{Name: "service-billing", AccountID: "svc", AccessKey: "SVC", SecretKey: "svc-secret"},
		},
		Policies: []iam.PolicyConfig{
			{Name: "Buckets", Document: `{"Statement":[{"Effect":"Allow","Action":"metering:ListMetrics","Resource":"arn:aws:metering::acct1:buckets/*"}]}`},
		},
	})
	require.NoError(t, err)

	buckets := bucket.NewStoreFrom([]bucket.Info{
		{Name: "b1", OwnerID: "C1"},
		{Name: "b2", OwnerID: "C1"},
		{Name: "b3", OwnerID: "C2"},
	})

	store := counterstore.NewMemoryStore()
	t.Cleanup(func() { store.Close() })

	rec, err := NewRecorder(store, DefaultConfig())
	require.NoError(t, err)
	svc, err := NewService(store,
		iam.NewVerifier(ids, iam.VerifierConfig{Region: testRegion}),
		authz.NewTranslator(ids, ids, buckets),
		DefaultConfig())
	require.NoError(t, err)

	return &testEnv{store: store, rec: rec, svc: svc}
}

func (e *testEnv) sign(accessKey, secret string, in ListMetricsInput) iam.SignedRequest {
	return iam.Sign(accessKey, secret, testRegion, time.Now(), in.Scope())
}

func (e *testEnv) list(t *testing.T, accessKey, secret string, in ListMetricsInput) ([]Metrics, error) {
	t.Helper()
	return e.svc.ListMetrics(context.Background(), e.sign(accessKey, secret, in), in)
}

// rangeOf returns the time range covering n intervals starting at start.
func rangeOf(start time.Time, n int) TimeRange {
	iv := DefaultConfig().ReportingInterval
	return TimeRange{
		Start: start.UnixMilli(),
		End:   start.Add(time.Duration(n)*iv).UnixMilli() - 1,
	}
}

// seed records a small history for bucket b1 (account C1) across two
// intervals.
func (e *testEnv) seed(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	events := []Event{
		{Operation: schema.OpPutObject, Bucket: "b1", AccountID: "C1", Timestamp: window0.Add(time.Minute), StorageDelta: 1024, ObjectDelta: 1, IncomingBytes: 1024},
		{Operation: schema.OpGetObject, Bucket: "b1", AccountID: "C1", UserID: "u1", Timestamp: window0.Add(2 * time.Minute), OutgoingBytes: 512},
		{Operation: schema.OpPutObject, Bucket: "b1", AccountID: "C1", Timestamp: window0.Add(20 * time.Minute), StorageDelta: 2048, ObjectDelta: 1, IncomingBytes: 2048},
		{Operation: schema.OpPutObject, Bucket: "b2", AccountID: "C1", Timestamp: window0.Add(3 * time.Minute), StorageDelta: 10, ObjectDelta: 1, IncomingBytes: 10},
	}
	for _, ev := range events {
		require.NoError(t, e.rec.PushMetric(ctx, ev))
	}
}

// =============================================================================
// Reads
// =============================================================================

func TestService_ListMetrics_BucketHistory(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	env.seed(t)

	tests := []struct {
		name        string
		tr          TimeRange
		storage     [2]int64
		objects     [2]int64
		incoming    int64
		outgoing    int64
		putObject   int64
		getObject   int64
		deleteCount int64
	}{
		{
			name:      "both intervals",
			tr:        rangeOf(window0, 2),
			storage:   [2]int64{1024, 3072},
			objects:   [2]int64{1, 2},
			incoming:  3072,
			outgoing:  512,
			putObject: 2,
			getObject: 1,
		},
		{
			name:      "second interval",
			tr:        rangeOf(window0.Add(15*time.Minute), 1),
			storage:   [2]int64{3072, 3072},
			objects:   [2]int64{2, 2},
			incoming:  2048,
			putObject: 1,
		},
		{
			name: "before any data",
			tr:   rangeOf(window0.Add(-time.Hour), 1),
		},
		{
			name:    "after the data",
			tr:      rangeOf(window0.Add(time.Hour), 1),
			storage: [2]int64{3072, 3072},
			objects: [2]int64{2, 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := ListMetricsInput{Level: authz.LevelBuckets, Resources: []string{"b1"}, TimeRange: tt.tr}
			got, err := env.list(t, "ROOT1", "root1-secret", in)
			require.NoError(t, err)
			require.Len(t, got, 1)

			m := got[0]
			assert.Equal(t, "buckets", m.Level)
			assert.Equal(t, "b1", m.Resource)
			assert.Equal(t, tt.tr, m.TimeRange)
			assert.Equal(t, tt.storage, m.StorageUtilized)
			assert.Equal(t, tt.objects, m.NumberOfObjects)
			assert.Equal(t, tt.incoming, m.IncomingBytes)
			assert.Equal(t, tt.outgoing, m.OutgoingBytes)
			assert.Len(t, m.Operations, len(schema.Operations))
			assert.Equal(t, tt.putObject, m.Operations["s3:PutObject"])
			assert.Equal(t, tt.getObject, m.Operations["s3:GetObject"])
			assert.Equal(t, tt.deleteCount, m.Operations["s3:DeleteObject"])
		})
	}
}

func TestService_ListMetrics_AccountLevel(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	env.seed(t)

	in := ListMetricsInput{Level: authz.LevelAccounts, Resources: []string{"acct1"}, TimeRange: rangeOf(window0, 2)}
	got, err := env.list(t, "ROOT1", "root1-secret", in)
	require.NoError(t, err)
	require.Len(t, got, 1)

	// Resource keeps the requested short ID; counters come from the canonical ID.
	assert.Equal(t, "acct1", got[0].Resource)
	assert.Equal(t, [2]int64{1034, 3082}, got[0].StorageUtilized)
	assert.Equal(t, int64(3), got[0].Operations["s3:PutObject"])
}

func TestService_ListMetrics_ServiceUserAccounts(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	env.seed(t)

	in := ListMetricsInput{
		Level:     authz.LevelAccounts,
		Resources: []string{"acct2", "unknown", "acct1"},
		TimeRange: rangeOf(window0, 1),
	}
	got, err := env.list(t, "SVC", "svc-secret", in)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "acct2", got[0].Resource)
	assert.Equal(t, "acct1", got[1].Resource)
	assert.Zero(t, got[0].IncomingBytes)
	assert.Equal(t, int64(1034), got[1].IncomingBytes)
}

func TestService_ListMetrics_UserLevel(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	env.seed(t)

	in := ListMetricsInput{Level: authz.LevelUsers, Resources: []string{"u1"}, TimeRange: rangeOf(window0, 1)}
	got, err := env.list(t, "ROOT1", "root1-secret", in)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(512), got[0].OutgoingBytes)
	assert.Equal(t, int64(1), got[0].Operations["s3:GetObject"])
}

func TestService_ListMetrics_RequestOrder(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	env.seed(t)

	in := ListMetricsInput{Level: authz.LevelBuckets, Resources: []string{"b2", "b1"}, TimeRange: rangeOf(window0, 1)}
	got, err := env.list(t, "ROOT1", "root1-secret", in)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "b2", got[0].Resource)
	assert.Equal(t, int64(10), got[0].IncomingBytes)
	assert.Equal(t, "b1", got[1].Resource)
	assert.Equal(t, int64(1024), got[1].IncomingBytes)
}

// =============================================================================
// Authorization
// =============================================================================

func TestService_ListMetrics_Authorization(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	env.seed(t)
	tr := rangeOf(window0, 1)

	t.Run("unowned buckets are dropped", func(t *testing.T) {
		in := ListMetricsInput{Level: authz.LevelBuckets, Resources: []string{"b1", "b3"}, TimeRange: tr}
		got, err := env.list(t, "ROOT1", "root1-secret", in)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "b1", got[0].Resource)
	})

	t.Run("nothing owned", func(t *testing.T) {
		in := ListMetricsInput{Level: authz.LevelBuckets, Resources: []string{"b3"}, TimeRange: tr}
		_, err := env.list(t, "ROOT1", "root1-secret", in)
		assert.ErrorIs(t, err, ErrAccessDenied)
	})

	t.Run("unknown bucket is a lookup failure", func(t *testing.T) {
		in := ListMetricsInput{Level: authz.LevelBuckets, Resources: []string{"b1", "nope"}, TimeRange: tr}
		_, err := env.list(t, "ROOT1", "root1-secret", in)
		assert.ErrorIs(t, err, authz.ErrLookupFailed)
		assert.NotErrorIs(t, err, ErrAccessDenied)
	})

	t.Run("account root cannot query the service", func(t *testing.T) {
		in := ListMetricsInput{Level: authz.LevelService, Resources: []string{"s3"}, TimeRange: tr}
		_, err := env.list(t, "ROOT1", "root1-secret", in)
		assert.ErrorIs(t, err, ErrAccessDenied)
	})

	t.Run("service user queries the service", func(t *testing.T) {
		in := ListMetricsInput{Level: authz.LevelService, Resources: []string{"s3"}, TimeRange: tr}
		got, err := env.list(t, "SVC", "svc-secret", in)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, int64(1034), got[0].IncomingBytes)
	})

	t.Run("iam user within policy", func(t *testing.T) {
		in := ListMetricsInput{Level: authz.LevelBuckets, Resources: []string{"b1"}, TimeRange: tr}
		got, err := env.list(t, "ALICE", "alice-secret", in)
		require.NoError(t, err)
		require.Len(t, got, 1)
	})

	t.Run("iam user outside policy", func(t *testing.T) {
		in := ListMetricsInput{Level: authz.LevelAccounts, Resources: []string{"acct1"}, TimeRange: tr}
		_, err := env.list(t, "ALICE", "alice-secret", in)
		assert.ErrorIs(t, err, ErrAccessDenied)
	})

	t.Run("unknown access key", func(t *testing.T) {
		in := ListMetricsInput{Level: authz.LevelBuckets, Resources: []string{"b1"}, TimeRange: tr}
		_, err := env.list(t, "NOBODY", "whatever", in)
		assert.ErrorIs(t, err, ErrAccessDenied)
	})

	t.Run("bad signature", func(t *testing.T) {
		in := ListMetricsInput{Level: authz.LevelBuckets, Resources: []string{"b1"}, TimeRange: tr}
		_, err := env.list(t, "ROOT1", "wrong-secret", in)
		assert.ErrorIs(t, err, iam.ErrSignatureMismatch)
	})

	t.Run("signature over different resources", func(t *testing.T) {
		in := ListMetricsInput{Level: authz.LevelBuckets, Resources: []string{"b1"}, TimeRange: tr}
		req := env.sign("ROOT1", "root1-secret", in)
		in.Resources = []string{"b1", "b2"}
		_, err := env.svc.ListMetrics(context.Background(), req, in)
		assert.ErrorIs(t, err, iam.ErrSignatureMismatch)
	})
}

// =============================================================================
// Validation
// =============================================================================

func TestService_ListMetrics_InvalidInput(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	good := rangeOf(window0, 1)

	tests := []struct {
		name    string
		in      ListMetricsInput
		wantErr error
	}{
		{"unknown level", ListMetricsInput{Level: "galaxies", Resources: []string{"b1"}, TimeRange: good}, ErrInvalidRequest},
		{"no resources", ListMetricsInput{Level: authz.LevelBuckets, TimeRange: good}, ErrInvalidRequest},
		{"unaligned start", ListMetricsInput{Level: authz.LevelBuckets, Resources: []string{"b1"}, TimeRange: TimeRange{Start: good.Start + 1, End: good.End}}, ErrInvalidTimeRange},
		{"unaligned end", ListMetricsInput{Level: authz.LevelBuckets, Resources: []string{"b1"}, TimeRange: TimeRange{Start: good.Start, End: good.End + 1}}, ErrInvalidTimeRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.list(t, "ROOT1", "root1-secret", tt.in)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestService_ListMetrics_ClosedStore(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	require.NoError(t, env.store.Close())

	in := ListMetricsInput{Level: authz.LevelBuckets, Resources: []string{"b1"}, TimeRange: rangeOf(window0, 1)}
	_, err := env.list(t, "ROOT1", "root1-secret", in)
	assert.ErrorIs(t, err, counterstore.ErrClosed)
}

func TestService_ListMetrics_CorruptMember(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()

	key := metricKey(schema.ResourceBucket, "b1", schema.MetricIncomingBytes)
	_, err := env.store.ZAdd(ctx, key, float64(window0.UnixMilli()), "lots:abc")
	require.NoError(t, err)

	in := ListMetricsInput{Level: authz.LevelBuckets, Resources: []string{"b1"}, TimeRange: rangeOf(window0, 1)}
	_, err = env.list(t, "ROOT1", "root1-secret", in)
	assert.Error(t, err)
}
