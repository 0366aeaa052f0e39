package assetstate

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// State is the certified asset store: single mutex-guarded access models
// the "no operation suspends internally" cooperative-scheduling guarantee
// of §5 — every public method runs to completion while holding s.mu.
type State struct {
	mu sync.Mutex

	assets  map[string]*Asset
	chunks  map[uint64]*Chunk
	batches map[uint64]*Batch

	nextBatchID uint64
	nextChunkID uint64

	authorized map[string]bool
	tree       *Trie
	apex       string

	log *logrus.Entry
}

// New returns an empty certified asset store.
func New(log *logrus.Entry) *State {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &State{
		assets:     map[string]*Asset{},
		chunks:     map[uint64]*Chunk{},
		batches:    map[uint64]*Batch{},
		authorized: map[string]bool{},
		tree:       NewTrie(),
		log:        log.WithField("component", "assetstate"),
	}
}

// Authorize adds a principal to the authorized set.
func (s *State) Authorize(principal string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authorized[principal] = true
}

// Deauthorize removes a principal from the authorized set.
func (s *State) Deauthorize(principal string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.authorized, principal)
}

// IsAuthorized reports whether principal may call mutating operations.
func (s *State) IsAuthorized(principal string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authorized[principal]
}

// ListAuthorized returns every authorized principal.
func (s *State) ListAuthorized() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.authorized))
	for p := range s.authorized {
		out = append(out, p)
	}
	return out
}

// sweepExpired drops any batch (and its chunks) whose TTL has elapsed.
// Called at the top of CreateBatch, matching §4.2.1's "create_batch
// sweeps" invariant. Caller must hold s.mu.
func (s *State) sweepExpired(now time.Time) {
	for id, b := range s.batches {
		if !b.ExpiresAt.After(now) {
			delete(s.batches, id)
			for cid, c := range s.chunks {
				if c.BatchID == id {
					delete(s.chunks, cid)
				}
			}
			s.log.WithField("batch_id", id).Debug("swept expired batch")
		}
	}
}

// CreateBatch allocates a new staging area, sweeping expired batches
// first.
func (s *State) CreateBatch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := nowFunc()
	s.sweepExpired(now)
	s.nextBatchID++
	id := s.nextBatchID
	s.batches[id] = &Batch{ID: id, ExpiresAt: now.Add(BatchExpiry)}
	return id
}

// CreateChunk appends content to batchID's staging area, refreshing its
// TTL, and returns the new chunk's ID.
func (s *State) CreateChunk(batchID uint64, content []byte) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := nowFunc()
	s.sweepExpired(now)
	b, ok := s.batches[batchID]
	if !ok {
		return 0, ErrBatchNotFound
	}
	b.ExpiresAt = now.Add(BatchExpiry)
	s.nextChunkID++
	id := s.nextChunkID
	buf := make([]byte, len(content))
	copy(buf, content)
	s.chunks[id] = &Chunk{ID: id, BatchID: batchID, Content: buf}
	return id, nil
}

// BatchStatus reports whether batchID is still open and, if so, its
// expiry time and the number of chunks currently staged against it. Used
// by read-only progress views; it does not refresh the batch's TTL the
// way CreateChunk does.
func (s *State) BatchStatus(batchID uint64) (exists bool, expiresAt time.Time, chunkCount int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.batches[batchID]
	if !ok {
		return false, time.Time{}, 0
	}
	count := 0
	for _, c := range s.chunks {
		if c.BatchID == batchID {
			count++
		}
	}
	return true, b.ExpiresAt, count
}

// CommitBatch applies ops atomically: per the resolved Open Question in
// §9/SPEC_FULL §12, this clones the asset map, applies every operation to
// the clone, and swaps it in only if all operations succeed — stricter
// than the source's partial-mutation-on-failure behavior.
func (s *State) CommitBatch(batchID uint64, ops []Operation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.batches[batchID]; !ok {
		return ErrBatchNotFound
	}

	clone := cloneAssets(s.assets)
	touched := map[string]bool{}
	cleared := false
	for _, op := range ops {
		if err := applyOperation(clone, s.chunks, op, touched, &cleared); err != nil {
			return fmt.Errorf("commit_batch: %w", err)
		}
	}

	s.assets = clone
	for id, c := range s.chunks {
		if c.BatchID == batchID {
			delete(s.chunks, id)
		}
	}
	delete(s.batches, batchID)

	if cleared {
		s.tree = NewTrie()
	} else {
		for key := range touched {
			if a, ok := s.assets[key]; ok {
				s.onAssetChange(key, a)
			} else {
				s.removeAssetFromTree(key)
			}
		}
	}
	return nil
}

func cloneAssets(in map[string]*Asset) map[string]*Asset {
	out := make(map[string]*Asset, len(in))
	for k, a := range in {
		clone := *a
		clone.Encodings = make(map[Encoding]*AssetEncoding, len(a.Encodings))
		for e, enc := range a.Encodings {
			ec := *enc
			clone.Encodings[e] = &ec
		}
		clone.Headers = copyHeaders(a.Headers)
		out[k] = &clone
	}
	return out
}

func copyHeaders(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func applyOperation(assets map[string]*Asset, chunks map[uint64]*Chunk, op Operation, touched map[string]bool, cleared *bool) error {
	switch o := op.(type) {
	case CreateAssetOp:
		if existing, ok := assets[o.Key]; ok && existing.ContentType != o.ContentType {
			return ErrContentTypeMismatch
		}
		if _, ok := assets[o.Key]; !ok {
			assets[o.Key] = &Asset{
				Key:            o.Key,
				ContentType:    o.ContentType,
				Encodings:      map[Encoding]*AssetEncoding{},
				MaxAge:         o.MaxAge,
				Headers:        o.Headers,
				IsAliased:      o.EnableAliasing,
				AllowRawAccess: o.AllowRawAccess,
			}
		}
		touched[o.Key] = true
		return nil

	case SetAssetContentOp:
		a, ok := assets[o.Key]
		if !ok {
			return ErrAssetNotFound
		}
		if len(o.ChunkIDs) == 0 {
			return ErrEncodingEmpty
		}
		content := make([][]byte, 0, len(o.ChunkIDs))
		total := 0
		for _, cid := range o.ChunkIDs {
			c, ok := chunks[cid]
			if !ok {
				return fmt.Errorf("chunk %d: %w", cid, ErrChunkIndexOOB)
			}
			content = append(content, c.Content)
			total += len(c.Content)
		}
		enc := &AssetEncoding{ModifiedAt: nowFunc(), Chunks: content, TotalLength: total}
		if o.Sha256 != nil {
			got := sha256Concat(content)
			if got != *o.Sha256 {
				return ErrSha256Mismatch
			}
		}
		a.Encodings[o.Encoding] = enc
		touched[o.Key] = true
		return nil

	case UnsetAssetContentOp:
		a, ok := assets[o.Key]
		if !ok {
			return ErrAssetNotFound
		}
		if _, ok := a.Encodings[o.Encoding]; !ok {
			return ErrNoSuchEncoding
		}
		delete(a.Encodings, o.Encoding)
		touched[o.Key] = true
		return nil

	case DeleteAssetOp:
		if _, ok := assets[o.Key]; !ok {
			return ErrAssetNotFound
		}
		delete(assets, o.Key)
		touched[o.Key] = true
		return nil

	case ClearOp:
		for k := range assets {
			delete(assets, k)
		}
		*cleared = true
		return nil

	case SetAssetPropertiesOp:
		a, ok := assets[o.Key]
		if !ok {
			return ErrAssetNotFound
		}
		if o.MaxAge.Touched {
			a.MaxAge = o.MaxAge.Value
		}
		if o.Headers.Touched {
			if o.Headers.Value == nil {
				a.Headers = nil
			} else {
				a.Headers = *o.Headers.Value
			}
		}
		if o.AllowRawAccess.Touched {
			a.AllowRawAccess = o.AllowRawAccess.Value
		}
		if o.IsAliased.Touched {
			a.IsAliased = o.IsAliased.Value
		}
		touched[o.Key] = true
		return nil

	default:
		return fmt.Errorf("unknown operation type %T", op)
	}
}

var nowFunc = time.Now

func sha256Concat(chunks [][]byte) [32]byte {
	total := 0
	for _, c := range chunks {
		total += len(c)
	}
	buf := make([]byte, 0, total)
	for _, c := range chunks {
		buf = append(buf, c...)
	}
	return shaSum(buf)
}

// CreateAsset is the single-operation form of commit_batch{CreateAsset}.
func (s *State) CreateAsset(op CreateAssetOp) error {
	return s.commitSingle(op)
}

// SetAssetContent is the single-operation form of
// commit_batch{SetAssetContent}.
func (s *State) SetAssetContent(op SetAssetContentOp) error {
	return s.commitSingle(op)
}

// UnsetAssetContent is the single-operation form of
// commit_batch{UnsetAssetContent}.
func (s *State) UnsetAssetContent(key string, encoding Encoding) error {
	return s.commitSingle(UnsetAssetContentOp{Key: key, Encoding: encoding})
}

// DeleteAsset is the single-operation form of commit_batch{DeleteAsset}.
func (s *State) DeleteAsset(key string) error {
	return s.commitSingle(DeleteAssetOp{Key: key})
}

// Clear removes every asset.
func (s *State) Clear() error {
	return s.commitSingle(ClearOp{})
}

// SetAssetProperties is the single-operation form of
// commit_batch{SetAssetProperties}.
func (s *State) SetAssetProperties(op SetAssetPropertiesOp) error {
	return s.commitSingle(op)
}

// commitSingle runs one operation through the same clone-and-swap path
// CommitBatch uses, without requiring an open batch.
func (s *State) commitSingle(op Operation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := cloneAssets(s.assets)
	touched := map[string]bool{}
	cleared := false
	if err := applyOperation(clone, s.chunks, op, touched, &cleared); err != nil {
		return err
	}
	s.assets = clone
	if cleared {
		s.tree = NewTrie()
		return nil
	}
	for key := range touched {
		if a, ok := s.assets[key]; ok {
			s.onAssetChange(key, a)
		} else {
			s.removeAssetFromTree(key)
		}
	}
	return nil
}

// Store is the one-shot small-asset upload operation (§4.2 `store`).
func (s *State) Store(key, contentType string, encoding Encoding, content []byte, expectedSha *[32]byte, aliased *bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if expectedSha != nil {
		got := shaSum(content)
		if got != *expectedSha {
			return ErrSha256Mismatch
		}
	}
	clone := cloneAssets(s.assets)
	a, ok := clone[key]
	if !ok {
		a = &Asset{Key: key, ContentType: contentType, Encodings: map[Encoding]*AssetEncoding{}, IsAliased: aliased}
		clone[key] = a
	} else if a.ContentType != contentType {
		return ErrContentTypeMismatch
	}
	a.Encodings[encoding] = &AssetEncoding{ModifiedAt: nowFunc(), Chunks: [][]byte{content}, TotalLength: len(content)}
	s.assets = clone
	s.onAssetChange(key, a)
	return nil
}

// GetAssetProperties returns the property triple for key.
func (s *State) GetAssetProperties(key string) (AssetProperties, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.assets[key]
	if !ok {
		return AssetProperties{}, ErrAssetNotFound
	}
	return AssetProperties{
		MaxAge:         a.MaxAge,
		Headers:        copyHeaders(a.Headers),
		AllowRawAccess: a.AllowRawAccess,
		IsAliased:      a.IsAliased,
	}, nil
}

// List returns the read-only inventory the uploader's diff planner needs.
func (s *State) List() []AssetDetails {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]AssetDetails, 0, len(s.assets))
	for key, a := range s.assets {
		d := AssetDetails{Key: key, ContentType: a.ContentType, Encodings: map[Encoding]EncodingDetails{}}
		for enc, e := range a.Encodings {
			d.Encodings[enc] = EncodingDetails{Sha256: e.Sha256, TotalLength: e.TotalLength}
		}
		out = append(out, d)
	}
	return out
}

// GetChunk returns one chunk of key's encoding, verifying sha256 if
// provided.
func (s *State) GetChunk(key string, encoding Encoding, index int, expectedSha *[32]byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.assets[key]
	if !ok {
		return nil, ErrAssetNotFound
	}
	e, ok := a.Encodings[encoding]
	if !ok {
		return nil, ErrNoSuchEncoding
	}
	if index < 0 || index >= len(e.Chunks) {
		return nil, ErrChunkIndexOOB
	}
	if expectedSha != nil && *expectedSha != e.Sha256 {
		return nil, ErrSha256Mismatch
	}
	return e.Chunks[index], nil
}

// shaSum is a small indirection so tests could substitute a different
// hash if this package were ever asked to, without touching call sites;
// today it is always SHA-256.
func shaSum(b []byte) [32]byte { return sha256Sum(b) }

// onAssetChange recomputes v1 and v2 tree entries for key and its
// inverse aliases, centralizing every tree write in one place per §9
// ("do not scatter tree writes across mutators").
func (s *State) onAssetChange(key string, a *Asset) {
	present := a.sortedEncodings()
	for i, enc := range present {
		recertifyEncoding(a, enc)
		a.Encodings[enc].Certified = (i == 0)
	}

	s.tree.Delete(v1Path(key))
	s.tree.Delete(v2Prefix(key))
	if len(present) > 0 {
		certifiedEnc := present[0]
		s.tree.Set(v1Path(key), a.Encodings[certifiedEnc].Sha256[:])
		for _, enc := range present {
			e := a.Encodings[enc]
			path := v2ExprPath(key, e.CertExprHash, e.ResponseHash)
			s.tree.Set(path, []byte{})
		}
	}

	if a.isAliased() {
		s.reinsertInverseAliases(key)
	}
}

func (s *State) removeAssetFromTree(key string) {
	s.tree.Delete(v1Path(key))
	s.tree.Delete(v2Prefix(key))
	s.reinsertInverseAliases(key)
}

// reinsertInverseAliases updates (or clears) the v1-only tree entry for
// every alias key K' that resolves to key (K.html, K/index.html),
// provided K' is not itself a real stored asset (§4.2.2 "Inverse
// aliasing"). Aliasing is declared on the target asset, so this is a
// no-op once key has been deleted or its own is_aliased is false.
func (s *State) reinsertInverseAliases(key string) {
	target, ok := s.assets[key]
	aliased := ok && target.isAliased()

	for _, candidate := range aliasCandidates(key) {
		if _, isReal := s.assets[candidate]; isReal {
			continue
		}
		if aliased {
			present := target.sortedEncodings()
			if len(present) > 0 {
				s.tree.Set(v1Path(candidate), target.Encodings[present[0]].Sha256[:])
				continue
			}
		}
		s.tree.Delete(v1Path(candidate))
	}
}

func v1Path(key string) []string {
	return []string{"http_assets", key}
}

func v2Prefix(key string) []string {
	segs := strings.Split(strings.TrimPrefix(key, "/"), "/")
	out := append([]string{"http_expr"}, segs...)
	return out
}

func v2ExprPath(key string, exprHash, respHash [32]byte) []string {
	path := v2Prefix(key)
	path = append(path, "<$>", fmt.Sprintf("%x", exprHash), fmt.Sprintf("%x", respHash))
	return path
}

// v2RootPath is the "<$>" node itself, with no expression/response hash
// children. Witnessing it (rather than a specific v2ExprPath) proves a key
// has no certified response at all, which is what a 404 needs.
func v2RootPath(key string) []string {
	return append(v2Prefix(key), "<$>")
}
