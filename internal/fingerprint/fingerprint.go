// Package fingerprint derives a stable identity for a job posting.
//
// The identity cascade is: extracted job-board id, then normalized URL,
// then company|role|location. Identical inputs always hash to the same
// fingerprint across processes and time.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"regexp"
	"sort"
	"strings"
)

// Tracking parameters stripped during URL normalization.
var trackingParams = map[string]bool{
	"ref":      true,
	"referrer": true,
	"source":   true,
	"fbclid":   true,
	"gclid":    true,
	"mc_cid":   true,
	"mc_eid":   true,
}

// NormalizeURL canonicalizes a job URL: https scheme, lowercased host,
// tracking params removed, remaining query keys sorted, trailing slash
// stripped. Idempotent.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}

	u.Scheme = "https"
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.Path = strings.TrimSuffix(u.Path, "/")

	q := u.Query()
	for k := range q {
		lk := strings.ToLower(k)
		if strings.HasPrefix(lk, "utm_") || trackingParams[lk] {
			q.Del(k)
		}
	}
	for k := range q {
		sort.Strings(q[k])
	}
	u.RawQuery = q.Encode() // Encode sorts keys

	return u.String()
}

var (
	greenhouseRe = regexp.MustCompile(`greenhouse\.io/.*/jobs/(\d+)`)
	leverRe      = regexp.MustCompile(`jobs\.lever\.co/[^/]+/([a-zA-Z0-9-]+)`)
	workdayRe    = regexp.MustCompile(`myworkdayjobs\.com/.*(REQ-[0-9A-Za-z]+)`)
)

// ExtractJobID pattern-matches known job-board URL shapes and returns a
// board-tagged id ("greenhouse:12345"), or "" when no shape matches.
func ExtractJobID(raw string) string {
	if raw == "" {
		return ""
	}
	if m := greenhouseRe.FindStringSubmatch(raw); m != nil {
		return "greenhouse:" + m[1]
	}
	if m := leverRe.FindStringSubmatch(raw); m != nil {
		return "lever:" + m[1]
	}
	if m := workdayRe.FindStringSubmatch(raw); m != nil {
		return "workday:" + m[1]
	}
	return ""
}

// Compute derives the fingerprint for a posting. Priority: job id, then
// normalized URL, then the company|role|location triple.
func Compute(rawURL, jobID, company, role, location string) string {
	var basis string
	switch {
	case jobID != "":
		basis = jobID
	case rawURL != "":
		basis = NormalizeURL(rawURL)
	default:
		basis = company + "|" + role + "|" + location
	}
	sum := sha256.Sum256([]byte(basis))
	return hex.EncodeToString(sum[:])
}

// FromURL extracts a job id from the URL (when possible) and computes the
// fingerprint a tracker create call would use for the same inputs.
func FromURL(rawURL, company, role, location string) string {
	return Compute(rawURL, ExtractJobID(rawURL), company, role, location)
}
