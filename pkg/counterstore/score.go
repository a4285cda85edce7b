// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package counterstore

import (
	"math"
	"sort"
	"strconv"
	"strings"
)

const (
	NegInf = "-inf"
	PosInf = "+inf"
)

// FormatScore renders a score the way it is written on the wire.
func FormatScore(score float64) string {
	return strconv.FormatFloat(score, 'f', -1, 64)
}

// FormatMillis renders a millisecond timestamp as a score.
func FormatMillis(ms int64) string {
	return strconv.FormatInt(ms, 10)
}

// parseScore parses a member score. Infinities are not valid scores.
func parseScore(s string) (float64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, ErrInvalidScore
	}
	return f, nil
}

// parseBound parses a range bound. "-inf" and "+inf" open the range on that
// side, which is equivalent to clamping to the smallest or largest score
// present.
func parseBound(s string) (float64, error) {
	switch strings.ToLower(s) {
	case NegInf:
		return math.Inf(-1), nil
	case PosInf, "inf":
		return math.Inf(1), nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) {
		return 0, ErrInvalidScore
	}
	return f, nil
}

func parseRange(min, max string) (float64, float64, error) {
	lo, err := parseBound(min)
	if err != nil {
		return 0, 0, err
	}
	hi, err := parseBound(max)
	if err != nil {
		return 0, 0, err
	}
	return lo, hi, nil
}

// member is a stored (score, value) pair.
type member struct {
	score float64
	value string
}

func values(ms []member) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.value
	}
	return out
}

// sortDescending orders members by descending score, breaking ties by
// descending value. Values compare numerically when both parse as numbers.
func sortDescending(ms []member) {
	sort.SliceStable(ms, func(i, j int) bool {
		if ms[i].score != ms[j].score {
			return ms[i].score > ms[j].score
		}
		return valueLess(ms[j].value, ms[i].value)
	})
}

func valueLess(a, b string) bool {
	fa, errA := strconv.ParseFloat(a, 64)
	fb, errB := strconv.ParseFloat(b, 64)
	if errA == nil && errB == nil && fa != fb {
		return fa < fb
	}
	return a < b
}
