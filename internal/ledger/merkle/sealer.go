package merkle

import (
	"errors"
	"time"

	"civictrust/pkg/domain"
	dErrors "civictrust/pkg/domain-errors"
)

// DefaultLeafCeiling bounds seal latency for a single pool.
const DefaultLeafCeiling = 100_000

// SealResult is the immutable outcome of sealing an ordered leaf list.
type SealResult struct {
	Root      domain.HexDigest
	LeafCount int
	SealedAt  time.Time
}

// Proof lets anyone holding a leaf hash check membership against a
// published root.
type Proof struct {
	LeafIndex int                `json:"leaf_index"`
	TreeSize  int                `json:"tree_size"`
	Path      []domain.HexDigest `json:"path"`
	Root      domain.HexDigest   `json:"root"`
}

// Sealer wraps the tree functions with hex decoding, the leaf ceiling and
// domain errors.
type Sealer struct {
	ceiling int
	now     func() time.Time
}

type Option func(*Sealer)

// WithLeafCeiling caps the number of leaves accepted by Seal.
func WithLeafCeiling(n int) Option {
	return func(s *Sealer) {
		if n > 0 {
			s.ceiling = n
		}
	}
}

// WithClock overrides the seal timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Sealer) {
		if now != nil {
			s.now = now
		}
	}
}

func NewSealer(opts ...Option) *Sealer {
	s := &Sealer{ceiling: DefaultLeafCeiling, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ceiling returns the configured leaf ceiling.
func (s *Sealer) Ceiling() int { return s.ceiling }

// Seal computes the root over leaves in the given order.
func (s *Sealer) Seal(leaves []domain.HexDigest) (SealResult, error) {
	raw, err := s.decode(leaves)
	if err != nil {
		return SealResult{}, err
	}
	root, err := Root(raw)
	if err != nil {
		return SealResult{}, translate(err)
	}
	digest, err := domain.DigestFromBytes(root)
	if err != nil {
		return SealResult{}, dErrors.Wrap(err, dErrors.CodeCryptographicFailure, "merkle root has unexpected length")
	}
	return SealResult{Root: digest, LeafCount: len(leaves), SealedAt: s.now().UTC()}, nil
}

// Prove builds an inclusion proof for leaves[index].
func (s *Sealer) Prove(leaves []domain.HexDigest, index int) (Proof, error) {
	raw, err := s.decode(leaves)
	if err != nil {
		return Proof{}, err
	}
	path, err := InclusionProof(raw, index)
	if err != nil {
		return Proof{}, translate(err)
	}
	root, err := Root(raw)
	if err != nil {
		return Proof{}, translate(err)
	}
	proof := Proof{LeafIndex: index, TreeSize: len(leaves), Path: make([]domain.HexDigest, len(path))}
	for i, p := range path {
		if proof.Path[i], err = domain.DigestFromBytes(p); err != nil {
			return Proof{}, dErrors.Wrap(err, dErrors.CodeCryptographicFailure, "proof node has unexpected length")
		}
	}
	if proof.Root, err = domain.DigestFromBytes(root); err != nil {
		return Proof{}, dErrors.Wrap(err, dErrors.CodeCryptographicFailure, "merkle root has unexpected length")
	}
	return proof, nil
}

// Verify checks that leaf is included under proof.Root.
func Verify(leaf domain.HexDigest, proof Proof) (bool, error) {
	leafBytes, err := leaf.Bytes()
	if err != nil {
		return false, err
	}
	rootBytes, err := proof.Root.Bytes()
	if err != nil {
		return false, err
	}
	path := make([][]byte, len(proof.Path))
	for i, p := range proof.Path {
		if path[i], err = p.Bytes(); err != nil {
			return false, err
		}
	}
	ok, err := VerifyInclusionProof(leafBytes, proof.LeafIndex, proof.TreeSize, path, rootBytes)
	if err != nil {
		return false, translate(err)
	}
	return ok, nil
}

func (s *Sealer) decode(leaves []domain.HexDigest) ([][]byte, error) {
	if len(leaves) == 0 {
		return nil, translate(ErrEmptyTree)
	}
	if len(leaves) > s.ceiling {
		return nil, dErrors.Newf(dErrors.CodeValidation, "leaf count %d exceeds ceiling %d", len(leaves), s.ceiling).
			WithRemediation("split the pool or raise the configured leaf ceiling")
	}
	raw := make([][]byte, len(leaves))
	for i, leaf := range leaves {
		b, err := leaf.Bytes()
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeValidation, "leaf hash is not a 32-byte hex digest")
		}
		raw[i] = b
	}
	return raw, nil
}

func translate(err error) error {
	switch {
	case errors.Is(err, ErrEmptyTree):
		return dErrors.New(dErrors.CodeIllegalStateTransition, "cannot seal empty block")
	case errors.Is(err, ErrInvalidHashLen), errors.Is(err, ErrInvalidIndex), errors.Is(err, ErrInvalidSize):
		return dErrors.Wrap(err, dErrors.CodeValidation, "invalid merkle input")
	default:
		return dErrors.Wrap(err, dErrors.CodeCryptographicFailure, "merkle computation failed")
	}
}
