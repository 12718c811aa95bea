package gatecrypt

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"
)

const (
	ivHexLen = 2 * aes.BlockSize
)

var (
	ErrDecryptionFailed = errors.New("decryption failed")
)

// Artifact is an encrypted payload: hex(IV) followed by hex(ciphertext), with no other framing.
type Artifact string

// IV returns the hex encoded IV prefix, or an empty string if the Artifact is too short to contain one.
func (a Artifact) IV() string {
	if len(a) < ivHexLen {
		return ""
	}
	return string(a[:ivHexLen])
}

// Encrypt will encrypt the plaintext with AES-256-CBC and PKCS#7 padding using a fresh random IV.
// Encrypting the same plaintext twice gives different results, so snapshots can't be compared by their ciphertext.
func Encrypt(plaintext string, key Key) (Artifact, error) {
	rawKey, err := key.Bytes()
	if err != nil {
		return "", err
	}
	block, err := aes.NewCipher(rawKey)
	if err != nil {
		return "", err
	}

	iv := make([]byte, aes.BlockSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", fmt.Errorf("failed to generate IV: %w", err)
	}

	data := pad([]byte(plaintext), aes.BlockSize)
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(data, data)
	return Artifact(ToHex(iv) + ToHex(data)), nil
}

// Decrypt will recover the plaintext of an Artifact produced by Encrypt or the password gate.
// A wrong key is usually detected by invalid padding, but there's no authentication tag, so the result still needs to be validated by the caller.
func Decrypt(artifact Artifact, key Key) (string, error) {
	if len(artifact) < ivHexLen {
		return "", fmt.Errorf("%w: %w: artifact is shorter than an IV", ErrDecryptionFailed, ErrMalformedEncoding)
	}
	iv, err := FromHex(string(artifact[:ivHexLen]))
	if err != nil {
		return "", fmt.Errorf("%w: IV: %w", ErrDecryptionFailed, err)
	}
	data, err := FromHex(string(artifact[ivHexLen:]))
	if err != nil {
		return "", fmt.Errorf("%w: ciphertext: %w", ErrDecryptionFailed, err)
	}
	if len(data) == 0 || len(data)%aes.BlockSize != 0 {
		return "", fmt.Errorf("%w: ciphertext length %d is not a positive multiple of the block size", ErrDecryptionFailed, len(data))
	}

	rawKey, err := key.Bytes()
	if err != nil {
		return "", err
	}
	block, err := aes.NewCipher(rawKey)
	if err != nil {
		return "", err
	}
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(data, data)

	plain, err := unpad(data, aes.BlockSize)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(plain) {
		return "", fmt.Errorf("%w: plaintext is not valid UTF-8", ErrDecryptionFailed)
	}
	return string(plain), nil
}

func pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	return append(bytes.Clone(data), bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpad(data []byte, blockSize int) ([]byte, error) {
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize || n > len(data) {
		return nil, fmt.Errorf("%w: invalid padding", ErrDecryptionFailed)
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, fmt.Errorf("%w: invalid padding", ErrDecryptionFailed)
		}
	}
	return data[:len(data)-n], nil
}
