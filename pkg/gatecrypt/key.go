package gatecrypt

import (
	"crypto/rand"
	"crypto/sha1"
	"crypto/sha256"
	"errors"
	"fmt"
	"golang.org/x/crypto/pbkdf2"
	"hash"
	"io"
)

const (
	AES256KeySize = 256 / 8
	SaltSize      = 16
)

// Password is the operator supplied secret. It's never persisted.
type Password string

// Salt is the hex text of SaltSize random bytes.
// It's used as text in every derivation, never decoded back to bytes.
type Salt string

// Key is the hex text of a derived AES-256 key.
// This is also the value the password gate stores client side once a visitor has entered the password.
type Key string

// Bytes decodes the Key into raw AES key bytes.
func (k Key) Bytes() ([]byte, error) {
	data, err := FromHex(string(k))
	if err != nil {
		return nil, err
	}
	if len(data) != AES256KeySize {
		return nil, fmt.Errorf("%w: key must be %d bytes, got %d", ErrMalformedEncoding, AES256KeySize, len(data))
	}
	return data, nil
}

// Validate checks that the Salt is the hex text of SaltSize bytes.
func (s Salt) Validate() error {
	data, err := FromHex(string(s))
	if err != nil {
		return err
	}
	if len(data) != SaltSize {
		return fmt.Errorf("%w: salt must be %d bytes, got %d", ErrMalformedEncoding, SaltSize, len(data))
	}
	return nil
}

// Stage is a single PBKDF2 pass.
type Stage struct {
	Name       string
	Hash       func() hash.Hash
	Iterations int
}

// DefaultStages is the derivation chain used by StatiCrypt.
// The first pass is a leftover from older StatiCrypt releases, which is why it uses SHA-1.
var DefaultStages = []Stage{
	{Name: "sha1", Hash: sha1.New, Iterations: 1_000},
	{Name: "sha256", Hash: sha256.New, Iterations: 14_000},
	{Name: "sha256", Hash: sha256.New, Iterations: 585_000},
}

type Deriver struct {
	stages []Stage
	keyLen int
}

type DeriverOpt = func(*Deriver) error

// SetStages replaces the derivation chain.
// Keys derived with anything other than DefaultStages can't be used by the password gate, so this is only useful for tests.
func SetStages(stages ...Stage) DeriverOpt {
	return func(d *Deriver) error {
		if len(stages) == 0 {
			return errors.New("at least one stage is required")
		}
		for i, st := range stages {
			if st.Hash == nil {
				return fmt.Errorf("stage %d has no hash function", i)
			}
			if st.Iterations < 1 {
				return fmt.Errorf("stage %d iterations must be at least 1", i)
			}
		}
		d.stages = stages
		return nil
	}
}

// SetKeyLength sets the output length of every pass in bytes.
func SetKeyLength(n int) DeriverOpt {
	return func(d *Deriver) error {
		if n < 1 {
			return errors.New("key length must be at least 1")
		}
		d.keyLen = n
		return nil
	}
}

// NewDeriver creates a Deriver from zero or more DeriverOpt.
// By default, it uses DefaultStages with an AES256KeySize output.
func NewDeriver(opts ...DeriverOpt) (*Deriver, error) {
	d := &Deriver{
		stages: DefaultStages,
		keyLen: AES256KeySize,
	}
	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// Derive runs the derivation chain.
// An empty Password is allowed and produces a well-defined key.
func (d *Deriver) Derive(pass Password, salt Salt) Key {
	var (
		input   = []byte(pass)
		saltTxt = []byte(salt)
		out     string
	)
	for _, st := range d.stages {
		out = ToHex(pbkdf2.Key(input, saltTxt, st.Iterations, d.keyLen, st.Hash))
		input = []byte(out)
	}
	return Key(out)
}

var defaultDeriver = &Deriver{stages: DefaultStages, keyLen: AES256KeySize}

// Derive derives a Key with DefaultStages.
func Derive(pass Password, salt Salt) Key {
	return defaultDeriver.Derive(pass, salt)
}

// GenerateSalt creates a new random Salt.
func GenerateSalt() (Salt, error) {
	buf := make([]byte, SaltSize)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}
	return Salt(ToHex(buf)), nil
}
