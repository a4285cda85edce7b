// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package iam

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/IGLOU-EU/go-wildcard/v2"
)

// ResourcePartition is the ARN partition used for metering resources.
const ResourcePartition = "arn:aws:metering"

// Policy is an IAM policy document attached to users. The structure
// mirrors AWS IAM policies.
//
// Example policy:
//
//	{
//	  "Version": "2012-10-17",
//	  "Statement": [{
//	    "Effect": "Allow",
//	    "Action": "metering:ListMetrics",
//	    "Resource": "arn:aws:metering::*:buckets/*"
//	  }]
//	}
type Policy struct {
	Version    string            `json:"Version"`
	ID         string            `json:"Id,omitempty"`
	Statements []PolicyStatement `json:"Statement"`
}

// PolicyFromJSON parses a JSON policy document
func PolicyFromJSON(jsonDoc string) (*Policy, error) {
	var p Policy
	if err := json.Unmarshal([]byte(jsonDoc), &p); err != nil {
		return nil, fmt.Errorf("invalid policy document: %w", err)
	}
	for i, stmt := range p.Statements {
		if stmt.Effect != EffectAllow && stmt.Effect != EffectDeny {
			return nil, fmt.Errorf("statement %d: invalid effect %q", i, stmt.Effect)
		}
	}
	return &p, nil
}

// PolicyStatement is a single permission statement
type PolicyStatement struct {
	Sid          string               `json:"Sid,omitempty"`
	Effect       PolicyEffect         `json:"Effect"`
	Actions      StringOrSlice        `json:"Action"`
	NotActions   StringOrSlice        `json:"NotAction,omitempty"`
	Resources    StringOrSlice        `json:"Resource"`
	NotResources StringOrSlice        `json:"NotResource,omitempty"`
	Condition    map[string]Condition `json:"Condition,omitempty"`
}

// PolicyEffect determines whether a statement allows or denies access
type PolicyEffect string

const (
	EffectAllow PolicyEffect = "Allow"
	EffectDeny  PolicyEffect = "Deny"
)

// Condition maps a condition key (aws:username, metering:level, ...) to
// the accepted values.
type Condition map[string]StringOrSlice

// StringOrSlice handles JSON fields that can be either a string or []string
type StringOrSlice []string

func (s *StringOrSlice) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		*s = []string{str}
		return nil
	}
	var arr []string
	if err := json.Unmarshal(data, &arr); err != nil {
		return err
	}
	*s = arr
	return nil
}

func (s StringOrSlice) MarshalJSON() ([]byte, error) {
	if len(s) == 1 {
		return json.Marshal(s[0])
	}
	return json.Marshal([]string(s))
}

// EvaluationContext is what a policy is evaluated against.
type EvaluationContext struct {
	Action    string // e.g. "metering:ListMetrics"
	Resource  string // resource ARN, see ResourceARN
	Level     string
	AccountID string
	UserName  string
	UserARN   string
}

// ResourceARN renders the ARN of a metering resource,
// arn:aws:metering::<account>:<level>/<id>.
func ResourceARN(accountID, level, id string) string {
	return fmt.Sprintf("%s::%s:%s/%s", ResourcePartition, accountID, level, id)
}

// QualifiedAction prefixes an API action with the metering service name.
func QualifiedAction(action string) string {
	if strings.Contains(action, ":") {
		return action
	}
	return "metering:" + action
}

// Decision is the result of policy evaluation
type Decision int

const (
	DecisionNotApplicable Decision = iota
	DecisionAllow
	DecisionDeny
)

func (d Decision) String() string {
	switch d {
	case DecisionAllow:
		return "Allow"
	case DecisionDeny:
		return "Deny"
	default:
		return "NotApplicable"
	}
}

// Evaluate returns DecisionDeny if any statement denies, DecisionAllow if
// any allows, and DecisionNotApplicable otherwise.
func (p *Policy) Evaluate(ctx *EvaluationContext) Decision {
	var hasAllow bool
	for _, stmt := range p.Statements {
		switch stmt.Evaluate(ctx) {
		case DecisionDeny:
			return DecisionDeny
		case DecisionAllow:
			hasAllow = true
		}
	}
	if hasAllow {
		return DecisionAllow
	}
	return DecisionNotApplicable
}

// EvaluateAll combines several policies; an explicit deny in any of them wins.
func EvaluateAll(policies []*Policy, ctx *EvaluationContext) Decision {
	decision := DecisionNotApplicable
	for _, p := range policies {
		switch p.Evaluate(ctx) {
		case DecisionDeny:
			return DecisionDeny
		case DecisionAllow:
			decision = DecisionAllow
		}
	}
	return decision
}

func (s *PolicyStatement) Evaluate(ctx *EvaluationContext) Decision {
	if !matchesAny(s.Actions, s.NotActions, ctx.Action) {
		return DecisionNotApplicable
	}
	if !matchesAny(s.Resources, s.NotResources, ctx.Resource) {
		return DecisionNotApplicable
	}
	if !s.matchesConditions(ctx) {
		return DecisionNotApplicable
	}
	if s.Effect == EffectDeny {
		return DecisionDeny
	}
	return DecisionAllow
}

// matchesAny applies the Action/NotAction (or Resource/NotResource) pair.
func matchesAny(patterns, notPatterns []string, value string) bool {
	if len(notPatterns) > 0 {
		for _, p := range notPatterns {
			if matchPattern(p, value) {
				return false
			}
		}
		return true
	}
	for _, p := range patterns {
		if matchPattern(p, value) {
			return true
		}
	}
	return false
}

func (s *PolicyStatement) matchesConditions(ctx *EvaluationContext) bool {
	for operator, conditions := range s.Condition {
		for key, values := range conditions {
			if !evaluateCondition(operator, conditionValue(key, ctx), values) {
				return false
			}
		}
	}
	return true
}

func evaluateCondition(operator, actual string, values []string) bool {
	switch operator {
	case "StringEquals":
		return stringIn(actual, values)
	case "StringNotEquals":
		return !stringIn(actual, values)
	case "StringLike":
		return likeAny(actual, values)
	case "StringNotLike":
		return !likeAny(actual, values)
	case "Null":
		isNull := actual == ""
		for _, v := range values {
			if (v == "true" && isNull) || (v == "false" && !isNull) {
				return true
			}
		}
		return false
	}
	// Unknown operator fails closed.
	return false
}

func conditionValue(key string, ctx *EvaluationContext) string {
	switch key {
	case "aws:username":
		return ctx.UserName
	case "aws:userid", "aws:PrincipalAccount":
		return ctx.AccountID
	case "aws:PrincipalArn":
		return ctx.UserARN
	case "metering:level":
		return ctx.Level
	}
	return ""
}

func stringIn(actual string, values []string) bool {
	for _, v := range values {
		if actual == v {
			return true
		}
	}
	return false
}

func likeAny(actual string, patterns []string) bool {
	for _, p := range patterns {
		if matchPattern(p, actual) {
			return true
		}
	}
	return false
}

// matchPattern matches IAM-style patterns where '*' is any sequence.
// Patterns without '*' or '?' compare exactly, so a '.' in a bucket name is
// never treated as a wildcard.
func matchPattern(pattern, value string) bool {
	if pattern == "*" || pattern == value {
		return true
	}
	if !strings.ContainsAny(pattern, "*?") {
		return false
	}
	return wildcard.Match(pattern, value)
}
