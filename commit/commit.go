// Package commit derives commitment hashes for claim codes.
//
// A commitment hash is a CIDv1 (raw multicodec, sha2-256 multihash) over the
// plaintext secret bytes. It is the only public identifier the registry and
// marketplace ever see; the plaintext never reaches either component.
package commit

import (
	"errors"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

// ErrInvalidCommitment rejects strings that do not decode to a defined CID.
var ErrInvalidCommitment = errors.New("commit: invalid commitment hash")

// Of returns the commitment hash for a secret.
func Of(secret []byte) (cid.Cid, error) {
	sum, err := multihash.Sum(secret, multihash.SHA2_256, -1)
	if err != nil {
		return cid.Undef, err
	}
	return cid.NewCidV1(cid.Raw, sum), nil
}

// MustOf is Of for inputs that cannot fail (sha2-256 with default length is
// total). It panics on the unreachable error path and exists for tests and
// literals.
func MustOf(secret []byte) cid.Cid {
	id, err := Of(secret)
	if err != nil {
		panic(err)
	}
	return id
}

// Parse decodes the string form of a commitment hash.
func Parse(s string) (cid.Cid, error) {
	id, err := cid.Decode(s)
	if err != nil || !id.Defined() {
		return cid.Undef, ErrInvalidCommitment
	}
	return id, nil
}
