// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"strconv"
	"strings"

	"github.com/google/uuid"
)

const memberSeparator = ":"

// EncodeMember makes a sorted-set member unique by appending a random
// suffix: "<value>:<suffix>". Two logical insertions of the same value at
// the same score therefore both survive pair deduplication.
func EncodeMember(value string) string {
	return value + memberSeparator + uuid.NewString()
}

// DecodeMember returns the value segment of an encoded member. Members
// without a suffix are returned unchanged.
func DecodeMember(member string) string {
	if i := strings.Index(member, memberSeparator); i >= 0 {
		return member[:i]
	}
	return member
}

// EncodeInt encodes an integer sample as a unique member.
func EncodeInt(v int64) string {
	return EncodeMember(strconv.FormatInt(v, 10))
}

// DecodeInt decodes a member written by EncodeInt.
func DecodeInt(member string) (int64, error) {
	return strconv.ParseInt(DecodeMember(member), 10, 64)
}
