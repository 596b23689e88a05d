// Package cache implements the smart result cache: fingerprint keys over
// normalized request data, TTL-bound storage in an external KV, and
// single-flight get-or-set semantics.
package cache

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"
	"time"
)

// Key prefixes. A prefix is mandatory and identifies the interface that owns
// the cached value.
const (
	PrefixAnalyze    = "analyze:"
	PrefixMemory     = "memory:"
	PrefixRetrieval  = "retrieval:"
	PrefixPluginKB   = "plugin:analysis:kb:"
	PrefixPluginGen  = "plugin:generation:campaign_plan:"
	PrefixHotspot    = "plugin:hotspot:" // + platform
)

// TTL policy. Callers pass these to Set/GetOrSet; they are decisions, not
// enforcement.
const (
	TTLAIResult  = time.Hour
	TTLRetrieval = time.Hour
	TTLMemory    = time.Hour
	TTLProfile   = 5 * time.Minute
	TTLHotspot   = 6 * time.Hour
)

var whitespace = strings.NewReplacer("\n", " ", "\t", " ", "\r", " ")

// normalizeString trims, collapses internal whitespace runs to a single
// space, and maps the empty cases to "".
func normalizeString(s string) string {
	s = whitespace.Replace(strings.TrimSpace(s))
	return strings.Join(strings.Fields(s), " ")
}

// normalizeValue recursively normalizes request data: strings are
// whitespace-normalized, nil becomes "", maps and slices are normalized
// element-wise. Other scalars pass through.
func normalizeValue(v any) any {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return normalizeString(t)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[k] = normalizeValue(vv)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, vv := range t {
			out[i] = normalizeValue(vv)
		}
		return out
	case []string:
		out := make([]any, len(t))
		for i, vv := range t {
			out[i] = normalizeString(vv)
		}
		return out
	default:
		return v
	}
}

// Fingerprint builds the cache key for request data: normalize values, sort
// keys, canonical JSON (UTF-8, no HTML escaping), MD5-hex, prefixed.
//
// Identical for any two inputs that differ only in key order or in string
// whitespace. Callers that need tag-scoped keys must sort tag lists and
// include only user-stable discriminants.
func Fingerprint(prefix string, requestData map[string]any) string {
	normalized := make(map[string]any, len(requestData))
	keys := make([]string, 0, len(requestData))
	for k := range requestData {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		normalized[k] = normalizeValue(requestData[k])
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	// encoding/json marshals map keys in sorted order, which together with
	// SetEscapeHTML(false) gives the canonical form all cache users share.
	if err := enc.Encode(normalized); err != nil {
		// Unreachable for map[string]any built from JSON-safe values; fall
		// back to the raw prefix so callers still get a usable key.
		return prefix + "unhashable"
	}

	sum := md5.Sum(bytes.TrimRight(buf.Bytes(), "\n"))
	return prefix + hex.EncodeToString(sum[:])
}

// SortedTags returns a sorted copy of tags for fingerprint inclusion.
func SortedTags(tags []string) []string {
	out := make([]string, len(tags))
	copy(out, tags)
	sort.Strings(out)
	return out
}
