package assetsync

import (
	"sort"
	"strings"

	"canister-assets/internal/assetstate"
)

// Plan builds the operation list that, committed in order, brings the
// canister's asset set in line with project, given the canister's
// current inventory (as returned by Client.List). ClearObsolete controls
// whether canister keys missing from project are deleted outright
// (clear-obsolete=true) or only dropped when their media type no longer
// matches a same-keyed project asset.
func Plan(project map[string]*ProjectAsset, canister map[string]assetstate.AssetDetails, canisterProps map[string]assetstate.AssetProperties, clearObsolete bool) []assetstate.Operation {
	var ops []assetstate.Operation

	ops = append(ops, planDeletions(project, canister, clearObsolete)...)
	ops = append(ops, planCreations(project, canister)...)
	ops = append(ops, planUnsetObsoleteEncodings(project, canister)...)
	ops = append(ops, planSetEncodings(project)...)
	ops = append(ops, planPropertyUpdates(project, canister, canisterProps)...)

	return ops
}

func planDeletions(project map[string]*ProjectAsset, canister map[string]assetstate.AssetDetails, clearObsolete bool) []assetstate.Operation {
	var ops []assetstate.Operation
	for _, key := range sortedKeys(canister) {
		p, inProject := project[key]
		c := canister[key]

		if !inProject {
			if clearObsolete {
				ops = append(ops, assetstate.DeleteAssetOp{Key: key})
			}
			continue
		}
		if p.ContentType != c.ContentType {
			ops = append(ops, assetstate.DeleteAssetOp{Key: key})
		}
	}
	return ops
}

func planCreations(project map[string]*ProjectAsset, canister map[string]assetstate.AssetDetails) []assetstate.Operation {
	var ops []assetstate.Operation
	for _, key := range sortedKeys(project) {
		if c, ok := canister[key]; ok && c.ContentType == project[key].ContentType {
			continue
		}
		p := project[key]
		ops = append(ops, assetstate.CreateAssetOp{
			Key:            p.Key,
			ContentType:    p.ContentType,
			MaxAge:         p.MaxAge,
			Headers:        p.Headers,
			EnableAliasing: p.EnableAliasing,
			AllowRawAccess: p.AllowRawAccess,
		})
	}
	return ops
}

func planUnsetObsoleteEncodings(project map[string]*ProjectAsset, canister map[string]assetstate.AssetDetails) []assetstate.Operation {
	var ops []assetstate.Operation
	for _, key := range sortedKeys(canister) {
		p, ok := project[key]
		if !ok {
			continue
		}
		c := canister[key]
		if p.ContentType != c.ContentType {
			continue
		}
		for _, enc := range sortedEncodingNames(c.Encodings) {
			if _, stillProduced := p.Encodings[assetstate.Encoding(enc)]; !stillProduced {
				ops = append(ops, assetstate.UnsetAssetContentOp{Key: key, Encoding: assetstate.Encoding(enc)})
			}
		}
	}
	return ops
}

func planSetEncodings(project map[string]*ProjectAsset) []assetstate.Operation {
	var ops []assetstate.Operation
	for _, key := range sortedKeys(project) {
		p := project[key]
		for _, enc := range p.sortedEncodings() {
			up := p.Encodings[enc]
			if up.AlreadyInPlace {
				continue
			}
			sum := up.Sha256
			ops = append(ops, assetstate.SetAssetContentOp{
				Key:      key,
				Encoding: enc,
				ChunkIDs: up.ChunkIDs,
				Sha256:   &sum,
			})
		}
	}
	return ops
}

// planPropertyUpdates emits SetAssetProperties only for keys present on
// both sides whose resolved max-age, headers, aliasing, or raw-access
// setting actually differs from what the canister currently reports —
// matching every-field-unchanged producing zero operations (the diff
// no-op property).
func planPropertyUpdates(project map[string]*ProjectAsset, canister map[string]assetstate.AssetDetails, canisterProps map[string]assetstate.AssetProperties) []assetstate.Operation {
	var ops []assetstate.Operation
	for _, key := range sortedKeys(project) {
		if _, ok := canister[key]; !ok {
			continue
		}
		p := project[key]
		existing := canisterProps[key]

		maxAgeDiffers := !equalUintPtr(p.MaxAge, existing.MaxAge)
		headersDiffer := !headerSetsEqual(p.Headers, existing.Headers)
		rawAccessDiffers := derefBool(p.AllowRawAccess, true) != derefBool(existing.AllowRawAccess, true)
		aliasingDiffers := derefBool(p.EnableAliasing, true) != derefBool(existing.IsAliased, true)

		if !maxAgeDiffers && !headersDiffer && !rawAccessDiffers && !aliasingDiffers {
			continue
		}

		ops = append(ops, assetstate.SetAssetPropertiesOp{
			Key:            key,
			MaxAge:         assetstate.SetTo(derefUint(p.MaxAge)),
			Headers:        assetstate.SetTo(p.Headers),
			AllowRawAccess: assetstate.SetTo(derefBool(p.AllowRawAccess, true)),
			IsAliased:      assetstate.SetTo(derefBool(p.EnableAliasing, true)),
		})
	}
	return ops
}

func equalUintPtr(a, b *uint64) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return *a == *b
}

func derefUint(v *uint64) uint64 {
	if v == nil {
		return 0
	}
	return *v
}

func derefBool(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedEncodingNames(m map[assetstate.Encoding]assetstate.EncodingDetails) []string {
	names := make([]string, 0, len(m))
	for enc := range m {
		names = append(names, string(enc))
	}
	sort.Strings(names)
	return names
}

func headerSetsEqual(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		found := false
		for k2, v2 := range b {
			if strings.EqualFold(k, k2) && v == v2 {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
