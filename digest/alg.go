// Package digest provides named cryptographic digest algorithms and a
// streaming reader that computes multiple digests of a byte stream in a
// single pass.
package digest

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"hash"
	"io"

	"golang.org/x/crypto/blake2b"
)

// Algorithm ids recognized by the OCFL specification plus the extended
// digest-algorithms extension vocabulary.
const (
	SHA512      = "sha512"
	SHA256      = "sha256"
	SHA224      = "sha224"
	SHA1        = "sha1"
	MD5         = "md5"
	BLAKE2B512  = "blake2b-512"
	BLAKE2B160  = "blake2b-160"
	BLAKE2B256  = "blake2b-256"
	BLAKE2B384  = "blake2b-384"
	SHA512_256  = "sha512/256"
)

// Alg is implemented by a named digest algorithm.
type Alg interface {
	// ID returns the algorithm name, e.g. "sha512".
	ID() string
	// Digester returns a new Digester for computing a digest value.
	Digester() Digester
}

// Digester accumulates bytes and renders a digest value as lowercase hex.
type Digester interface {
	io.Writer
	String() string
}

type alg struct {
	id  string
	new func() hash.Hash
}

func (a alg) ID() string { return a.id }
func (a alg) Digester() Digester {
	return &hashDigester{Hash: a.new()}
}

type hashDigester struct {
	hash.Hash
}

func (h hashDigester) String() string { return hex.EncodeToString(h.Sum(nil)) }

func mustBlake2b(size int) func() hash.Hash {
	return func() hash.Hash {
		h, err := blake2b.New(size, nil)
		if err != nil {
			// size is always one of the fixed constants below; a failure here
			// indicates a broken build, not a runtime condition to recover from.
			panic("digest: invalid blake2b size: " + err.Error())
		}
		return h
	}
}

// builtin is the set of algorithms every Registry starts with.
var builtin = []Alg{
	alg{id: SHA512, new: sha512.New},
	alg{id: SHA256, new: sha256.New},
	alg{id: SHA224, new: sha256.New224},
	alg{id: SHA1, new: sha1.New},
	alg{id: MD5, new: md5.New},
	alg{id: BLAKE2B512, new: mustBlake2b(64)},
	alg{id: BLAKE2B384, new: mustBlake2b(48)},
	alg{id: BLAKE2B256, new: mustBlake2b(32)},
	alg{id: BLAKE2B160, new: mustBlake2b(20)},
	alg{id: SHA512_256, new: sha512.New512_256},
}

// Primary returns true if id is a primary OCFL digestAlgorithm value (the
// only two algorithms permitted for an inventory's manifest/state digests).
func Primary(id string) bool {
	return id == SHA512 || id == SHA256
}
