// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package iam

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"slices"
	"strings"
	"time"
)

const (
	// SigningAlgorithm identifies the request signature scheme.
	SigningAlgorithm = "ZAPMETER-HMAC-SHA256"

	// SigningService is the service component of the credential scope.
	SigningService = "metering"

	// TimeFormat is the ISO 8601 basic format used for request timestamps.
	TimeFormat = "20060102T150405Z"

	dateFormat = "20060102"
)

// SignedRequest carries a caller's credentials for one query.
type SignedRequest struct {
	AccessKey string
	Timestamp time.Time
	Signature string // lower-case hex
}

// Scope is what the signature covers.
type Scope struct {
	Action    string
	Level     string
	Resources []string
}

// DeriveSigningKey derives an HMAC signing key from the secret key,
// following AWS signature v4 derivation:
//
//	kDate = HMAC("AWS4" + secretKey, date)
//	kRegion = HMAC(kDate, region)
//	kService = HMAC(kRegion, service)
//	kSigning = HMAC(kService, "aws4_request")
func DeriveSigningKey(secretKey, date, region, service string) []byte {
	kDate := hmacSHA256([]byte("AWS4"+secretKey), []byte(date))
	kRegion := hmacSHA256(kDate, []byte(region))
	kService := hmacSHA256(kRegion, []byte(service))
	return hmacSHA256(kService, []byte("aws4_request"))
}

// ComputeSignature computes an HMAC-SHA256 signature
func ComputeSignature(signingKey []byte, stringToSign string) string {
	return hex.EncodeToString(hmacSHA256(signingKey, []byte(stringToSign)))
}

func hmacSHA256(key, data []byte) []byte {
	h := hmac.New(sha256.New, key)
	h.Write(data)
	return h.Sum(nil)
}

// CanonicalScope renders the scope deterministically. Resources are
// sorted so the signature does not depend on their order.
func CanonicalScope(scope Scope) string {
	resources := slices.Clone(scope.Resources)
	slices.Sort(resources)
	return strings.Join([]string{
		scope.Action,
		scope.Level,
		strings.Join(resources, ","),
	}, "\n")
}

// StringToSign builds the string covered by the request signature.
func StringToSign(ts time.Time, region string, scope Scope) string {
	ts = ts.UTC()
	digest := sha256.Sum256([]byte(CanonicalScope(scope)))
	return strings.Join([]string{
		SigningAlgorithm,
		ts.Format(TimeFormat),
		fmt.Sprintf("%s/%s/%s/aws4_request", ts.Format(dateFormat), region, SigningService),
		hex.EncodeToString(digest[:]),
	}, "\n")
}

// Sign computes the signature for scope at ts and returns a SignedRequest.
func Sign(accessKey, secretKey, region string, ts time.Time, scope Scope) SignedRequest {
	ts = ts.UTC().Truncate(time.Second)
	key := DeriveSigningKey(secretKey, ts.Format(dateFormat), region, SigningService)
	return SignedRequest{
		AccessKey: accessKey,
		Timestamp: ts,
		Signature: ComputeSignature(key, StringToSign(ts, region, scope)),
	}
}

// VerifySignature checks req's signature in constant time.
func VerifySignature(secretKey, region string, req SignedRequest, scope Scope) bool {
	ts := req.Timestamp.UTC()
	key := DeriveSigningKey(secretKey, ts.Format(dateFormat), region, SigningService)
	expected := ComputeSignature(key, StringToSign(ts, region, scope))
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(req.Signature)))
}
