// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package iam

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchPattern(t *testing.T) {
	tests := []struct {
		pattern string
		value   string
		expect  bool
	}{
		{"*", "anything", true},
		{"*", "", true},
		{"foo", "foo", true},
		{"foo", "bar", false},
		{"foo*", "foobar", true},
		{"foo*", "foo", true},
		{"*bar", "foobar", true},
		{"a*b*c", "aXXbYYc", true},
		{"a*b*c", "aXXbYY", false},
		{"metering:*", "metering:ListMetrics", true},
		{"metering:List*", "metering:ListMetrics", true},
		{"metering:Get*", "metering:ListMetrics", false},
		{"arn:aws:metering::*:buckets/*", "arn:aws:metering::123:buckets/photos", true},
		{"arn:aws:metering::*:buckets/my-*", "arn:aws:metering::123:buckets/other-bucket", false},
		{"arn:aws:metering::123:buckets/my.bucket", "arn:aws:metering::123:buckets/myxbucket", false},
	}
	for _, tt := range tests {
		t.Run(tt.pattern+"_"+tt.value, func(t *testing.T) {
			assert.Equal(t, tt.expect, matchPattern(tt.pattern, tt.value))
		})
	}
}

func TestPolicyFromJSON(t *testing.T) {
	p, err := PolicyFromJSON(`{
		"Version": "2012-10-17",
		"Statement": [{
			"Effect": "Allow",
			"Action": "metering:ListMetrics",
			"Resource": ["arn:aws:metering::*:buckets/a", "arn:aws:metering::*:buckets/b"]
		}]
	}`)
	require.NoError(t, err)
	require.Len(t, p.Statements, 1)
	assert.Equal(t, StringOrSlice{"metering:ListMetrics"}, p.Statements[0].Actions)
	assert.Len(t, p.Statements[0].Resources, 2)

	_, err = PolicyFromJSON(`{"Statement": [{"Effect": "Maybe", "Action": "*", "Resource": "*"}]}`)
	assert.Error(t, err)

	_, err = PolicyFromJSON(`not json`)
	assert.Error(t, err)
}

func TestPolicy_Evaluate(t *testing.T) {
	policy := &Policy{
		Statements: []PolicyStatement{
			{
				Effect:    EffectAllow,
				Actions:   StringOrSlice{"metering:*"},
				Resources: StringOrSlice{"arn:aws:metering::acct1:buckets/*"},
			},
			{
				Effect:    EffectDeny,
				Actions:   StringOrSlice{"metering:ListMetrics"},
				Resources: StringOrSlice{"arn:aws:metering::acct1:buckets/secret"},
			},
		},
	}

	tests := []struct {
		name     string
		action   string
		resource string
		want     Decision
	}{
		{"allowed bucket", "metering:ListMetrics", ResourceARN("acct1", "buckets", "photos"), DecisionAllow},
		{"explicit deny wins", "metering:ListMetrics", ResourceARN("acct1", "buckets", "secret"), DecisionDeny},
		{"other account", "metering:ListMetrics", ResourceARN("acct2", "buckets", "photos"), DecisionNotApplicable},
		{"other level", "metering:ListMetrics", ResourceARN("acct1", "users", "u1"), DecisionNotApplicable},
		{"other action", "s3:GetObject", ResourceARN("acct1", "buckets", "photos"), DecisionNotApplicable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := policy.Evaluate(&EvaluationContext{Action: tt.action, Resource: tt.resource})
			assert.Equal(t, tt.want, got, "got %s", got)
		})
	}
}

func TestPolicyStatement_NotActionNotResource(t *testing.T) {
	stmt := PolicyStatement{
		Effect:       EffectAllow,
		NotActions:   StringOrSlice{"metering:Delete*"},
		NotResources: StringOrSlice{"arn:aws:metering::*:service/*"},
	}
	assert.Equal(t, DecisionAllow, stmt.Evaluate(&EvaluationContext{
		Action:   "metering:ListMetrics",
		Resource: ResourceARN("a", "buckets", "b"),
	}))
	assert.Equal(t, DecisionNotApplicable, stmt.Evaluate(&EvaluationContext{
		Action:   "metering:DeleteMetrics",
		Resource: ResourceARN("a", "buckets", "b"),
	}))
	assert.Equal(t, DecisionNotApplicable, stmt.Evaluate(&EvaluationContext{
		Action:   "metering:ListMetrics",
		Resource: ResourceARN("a", "service", "s"),
	}))
}

func TestPolicyStatement_Conditions(t *testing.T) {
	stmt := PolicyStatement{
		Effect:    EffectAllow,
		Actions:   StringOrSlice{"*"},
		Resources: StringOrSlice{"*"},
		Condition: map[string]Condition{
			"StringEquals": {"metering:level": {"buckets", "users"}},
			"StringLike":   {"aws:username": {"ops-*"}},
		},
	}

	tests := []struct {
		name  string
		ctx   EvaluationContext
		allow bool
	}{
		{"all conditions hold", EvaluationContext{Level: "buckets", UserName: "ops-alice"}, true},
		{"wrong level", EvaluationContext{Level: "accounts", UserName: "ops-alice"}, false},
		{"wrong user", EvaluationContext{Level: "users", UserName: "bob"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.ctx.Action, tt.ctx.Resource = "metering:ListMetrics", "r"
			assert.Equal(t, tt.allow, stmt.Evaluate(&tt.ctx) == DecisionAllow)
		})
	}

	unknown := PolicyStatement{
		Effect:    EffectAllow,
		Actions:   StringOrSlice{"*"},
		Resources: StringOrSlice{"*"},
		Condition: map[string]Condition{"NumericLessThan": {"aws:username": {"5"}}},
	}
	assert.Equal(t, DecisionNotApplicable, unknown.Evaluate(&EvaluationContext{}), "unknown operators fail closed")
}

func TestEvaluateAll(t *testing.T) {
	allow := &Policy{Statements: []PolicyStatement{{Effect: EffectAllow, Actions: StringOrSlice{"*"}, Resources: StringOrSlice{"*"}}}}
	deny := &Policy{Statements: []PolicyStatement{{Effect: EffectDeny, Actions: StringOrSlice{"*"}, Resources: StringOrSlice{"*"}}}}
	ctx := &EvaluationContext{Action: "metering:ListMetrics", Resource: "r"}

	assert.Equal(t, DecisionNotApplicable, EvaluateAll(nil, ctx))
	assert.Equal(t, DecisionAllow, EvaluateAll([]*Policy{allow}, ctx))
	assert.Equal(t, DecisionDeny, EvaluateAll([]*Policy{allow, deny}, ctx))
	assert.Equal(t, DecisionDeny, EvaluateAll([]*Policy{deny, allow}, ctx))
}

func TestQualifiedAction(t *testing.T) {
	assert.Equal(t, "metering:ListMetrics", QualifiedAction("ListMetrics"))
	assert.Equal(t, "metering:ListMetrics", QualifiedAction("metering:ListMetrics"))
}
