package assetconfig

import (
	"encoding/json"
	"sort"
	"strings"
)

// SecurityPolicy selects which bundle of hardening headers CombinedHeaders
// layers under an asset's custom headers.
type SecurityPolicy string

const (
	SecurityPolicyNone      SecurityPolicy = "disabled"
	SecurityPolicyStandard  SecurityPolicy = "standard"
	SecurityPolicyHardened  SecurityPolicy = "hardened"
)

// standardHeaders and hardenedHeaders mirror the well-known security header
// bundles; hardened is standard plus a restrictive Content-Security-Policy
// and cross-origin isolation headers, with Referrer-Policy tightened from
// strict-origin to same-origin.
var standardHeaders = map[string]string{
	"X-Frame-Options":        "DENY",
	"X-Content-Type-Options": "nosniff",
	"Referrer-Policy":        "strict-origin",
}

var hardenedHeaders = map[string]string{
	"X-Frame-Options":           "DENY",
	"X-Content-Type-Options":    "nosniff",
	"Referrer-Policy":           "same-origin",
	"Content-Security-Policy":   "default-src 'self'",
	"Cross-Origin-Embedder-Policy": "require-corp",
	"Cross-Origin-Opener-Policy":   "same-origin",
}

// Headers is a Maybe-wrapped header map: Absent means "inherit from the
// parent directory unchanged", Null means "clear whatever the parent set",
// Value means "extend/override the parent's map with these entries".
type Headers = Maybe[map[string]string]

// AssetConfig is the resolved, merged configuration applicable to one
// asset key. Every field independently inherits from ancestor rules that
// did not override it; see Merge.
type AssetConfig struct {
	Cache                      Maybe[CacheConfig] `json:"cache,omitempty"`
	Headers                    Headers             `json:"headers,omitempty"`
	Ignore                     Maybe[bool]         `json:"ignore,omitempty"`
	EnableAliasing             Maybe[bool]         `json:"enable_aliasing,omitempty"`
	AllowRawAccess             Maybe[bool]         `json:"allow_raw_access,omitempty"`
	Encodings                  Maybe[[]string]     `json:"encodings,omitempty"`
	SecurityPolicy             Maybe[SecurityPolicy] `json:"security_policy,omitempty"`
	DisableSecurityPolicyWarning Maybe[bool]       `json:"disable_security_policy_warning,omitempty"`
}

// CacheConfig controls the Cache-Control max-age header.
type CacheConfig struct {
	MaxAge *uint64 `json:"max_age,omitempty"`
}

// DefaultAllowRawAccess matches the platform default: assets ARE reachable
// on the raw domain unless a rule explicitly says otherwise.
const DefaultAllowRawAccess = true

// DefaultEnableAliasing matches the platform default: "/key" resolves to
// "/key.html" and "/key/index.html" unless a rule disables it.
const DefaultEnableAliasing = true

// Merge folds child (more specific, closer to the asset) over parent
// (less specific, closer to the tree root), producing the configuration
// effective at the child's level. Each field uses its own inheritance
// rule:
//   - Cache, EnableAliasing, AllowRawAccess, Encodings, SecurityPolicy,
//     DisableSecurityPolicyWarning: child overwrites parent if present.
//   - Headers: child Value entries are layered on top of parent's map
//     (case-insensitive key precedence goes to the child); child Null
//     clears the parent's headers entirely; child Absent keeps the
//     parent's value untouched.
//   - Ignore: child overwrites parent if present (this is the raw rule
//     merge; ignore-at-query-time semantics for alias re-inclusion are
//     handled by the tree walker, not here).
func Merge(parent, child AssetConfig) AssetConfig {
	out := parent

	if !child.Cache.IsAbsent() {
		out.Cache = child.Cache
	}
	out.Headers = mergeHeaders(parent.Headers, child.Headers)
	if !child.Ignore.IsAbsent() {
		out.Ignore = child.Ignore
	}
	if !child.EnableAliasing.IsAbsent() {
		out.EnableAliasing = child.EnableAliasing
	}
	if !child.AllowRawAccess.IsAbsent() {
		out.AllowRawAccess = child.AllowRawAccess
	}
	if !child.Encodings.IsAbsent() {
		out.Encodings = child.Encodings
	}
	if !child.SecurityPolicy.IsAbsent() {
		out.SecurityPolicy = child.SecurityPolicy
	}
	if !child.DisableSecurityPolicyWarning.IsAbsent() {
		out.DisableSecurityPolicyWarning = child.DisableSecurityPolicyWarning
	}
	return out
}

func mergeHeaders(parent, child Headers) Headers {
	switch child.Kind {
	case Null:
		return Headers{Kind: Null}
	case Absent:
		return parent
	case Value:
		merged := map[string]string{}
		if parent.Kind == Value {
			for k, v := range parent.Val {
				merged[k] = v
			}
		}
		// Case-insensitive precedence: a child key overrides a
		// differently-cased parent key of the same name.
		for pk := range merged {
			for ck := range child.Val {
				if strings.EqualFold(pk, ck) && pk != ck {
					delete(merged, pk)
				}
			}
		}
		for k, v := range child.Val {
			merged[k] = v
		}
		return Some(merged)
	}
	return parent
}

// ResolvedAllowRawAccess applies the documented default when the field was
// never set by any rule in the chain.
func (c AssetConfig) ResolvedAllowRawAccess() bool {
	if c.AllowRawAccess.Kind == Value {
		return c.AllowRawAccess.Val
	}
	return DefaultAllowRawAccess
}

// ResolvedEnableAliasing applies the documented default when the field was
// never set by any rule in the chain.
func (c AssetConfig) ResolvedEnableAliasing() bool {
	if c.EnableAliasing.Kind == Value {
		return c.EnableAliasing.Val
	}
	return DefaultEnableAliasing
}

// CombinedHeaders layers the security-policy bundle (if any) under the
// asset's custom headers, with custom headers always taking precedence on
// a case-insensitive basis. When insecureDevMode is true the security
// policy is skipped entirely (only custom headers are returned), matching
// the escape hatch used by local development servers.
func (c AssetConfig) CombinedHeaders(insecureDevMode bool) map[string]string {
	out := map[string]string{}
	if !insecureDevMode {
		switch c.SecurityPolicy.Val {
		case SecurityPolicyStandard:
			for k, v := range standardHeaders {
				out[k] = v
			}
		case SecurityPolicyHardened:
			for k, v := range hardenedHeaders {
				out[k] = v
			}
		}
	}
	if c.Headers.Kind == Value {
		lower := make(map[string]string, len(out))
		for k := range out {
			lower[strings.ToLower(k)] = k
		}
		for k, v := range c.Headers.Val {
			if existing, ok := lower[strings.ToLower(k)]; ok {
				delete(out, existing)
			}
			out[k] = v
		}
	}
	return out
}

// SortedHeaderPairs returns the headers as a deterministically ordered
// slice of "key: value" strings, used by display rendering and by tests
// that compare header sets order-independently.
func (c AssetConfig) SortedHeaderPairs() []string {
	if c.Headers.Kind != Value {
		return nil
	}
	keys := make([]string, 0, len(c.Headers.Val))
	for k := range c.Headers.Val {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+": "+c.Headers.Val[k])
	}
	return pairs
}

// String renders the configuration as text, listing the cache max-age,
// headers and ignore fields when they hold a value; the other fields are
// not rendered.
func (c AssetConfig) String() string {
	var b strings.Builder
	if c.Cache.Kind == Value && c.Cache.Val.MaxAge != nil {
		b.WriteString("cache: max_age=")
		b.WriteString(jsonUint(*c.Cache.Val.MaxAge))
		b.WriteString("\n")
	}
	for _, p := range c.SortedHeaderPairs() {
		b.WriteString("header: ")
		b.WriteString(p)
		b.WriteString("\n")
	}
	if c.Ignore.Kind == Value {
		b.WriteString("ignore: ")
		b.WriteString(jsonBool(c.Ignore.Val))
		b.WriteString("\n")
	}
	return b.String()
}

func jsonUint(v uint64) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func jsonBool(v bool) string {
	if v {
		return "true"
	}
	return "false"
}
