package assetstate

import "strings"

// aliasCandidates returns, in lookup order, the alias keys to try for a
// missing key K per §4.2.2: "K.html" and "K/index.html" unless K ends
// with "/" (then only "K+index.html"), and never for K already ending in
// ".html".
func aliasCandidates(key string) []string {
	if strings.HasSuffix(key, ".html") {
		return nil
	}
	if strings.HasSuffix(key, "/") {
		return []string{key + "index.html"}
	}
	return []string{key + ".html", key + "/index.html"}
}

// aliasOf returns the real key that candidateAlias resolves to if it is
// one of candidate's alias forms, or "" if it is not alias-shaped.
func aliasOf(candidateAlias string) (string, bool) {
	if strings.HasSuffix(candidateAlias, "/index.html") {
		return strings.TrimSuffix(candidateAlias, "/index.html"), true
	}
	if strings.HasSuffix(candidateAlias, ".html") {
		return strings.TrimSuffix(candidateAlias, ".html"), true
	}
	return "", false
}

// resolveAlias looks up key directly, then (if isAliased is honored by
// the asset) tries its alias forms in order. It returns the serving key
// (which may differ from the requested key) and the asset, or false if
// nothing resolves. It does not try the IndexFile fallback;
// HandleHTTPRequest does that itself.
func (s *State) resolveAlias(key string) (string, *Asset, bool) {
	if a, ok := s.assets[key]; ok {
		return key, a, true
	}
	for _, cand := range aliasCandidates(key) {
		if a, ok := s.assets[cand]; ok && a.isAliased() {
			return cand, a, true
		}
	}
	return "", nil, false
}
