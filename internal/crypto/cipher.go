package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"

	"github.com/optable/otext/internal/util"
	"github.com/zeebo/blake3"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"
)

/*
Various cipher suite implementation in golang
*/

const (
	GCM = iota
	XORBlake2
	XORBlake3
	XORShake

	nonceSize = 12 //aesgcm NonceSize
)

var ErrUnknownCipher = fmt.Errorf("unknown cipher mode")

// Blake3 has XOF which is perfect for doing xor cipher.
func xorCipherWithBlake3(key []byte, ind uint8, src []byte) ([]byte, error) {
	hash := make([]byte, len(src))
	if err := getBlake3Hash(key, ind, hash); err != nil {
		return nil, err
	}
	util.Xor(hash, src)
	return hash, nil
}

func getBlake3Hash(key []byte, ind uint8, dst []byte) error {
	h := blake3.New()
	h.Write(key)
	h.Write([]byte{ind})

	// convert to *digest to take a snapshot of the hashstate for XOF
	d := h.Digest()
	_, err := d.Read(dst)
	return err
}

// xorCipherWithBlake2 returns the result of H(key, ind) XOR src
// note that encrypt and decrypt in XOR cipher are the same.
func xorCipherWithBlake2(key []byte, ind uint8, src []byte) ([]byte, error) {
	hash := make([]byte, len(src))
	if err := getBlake2Hash(key, ind, hash); err != nil {
		return nil, err
	}
	util.Xor(hash, src)
	return hash, nil
}

func getBlake2Hash(key []byte, ind uint8, dst []byte) error {
	d, err := blake2b.NewXOF(uint32(len(dst)), nil)
	if err != nil {
		return err
	}

	d.Write(key)
	d.Write([]byte{ind})
	_, err = d.Read(dst)
	return err
}

func xorCipherWithShake(key []byte, ind uint8, src []byte) ([]byte, error) {
	hash := make([]byte, len(src))
	h := sha3.NewShake256()
	h.Write(key)
	h.Write([]byte{ind})
	h.Read(hash)
	util.Xor(hash, src)
	return hash, nil
}

// aes GCM block encryption decryption
func gcmEncrypt(key []byte, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, aesgcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}

	// encrypted cipher text is appended after nonce
	return aesgcm.Seal(nonce, nonce, plaintext, nil), nil
}

func gcmDecrypt(key []byte, ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	if len(ciphertext) < aesgcm.NonceSize() {
		return nil, fmt.Errorf("gcm ciphertext too short: %d bytes", len(ciphertext))
	}
	nonce, enc := ciphertext[:aesgcm.NonceSize()], ciphertext[aesgcm.NonceSize():]
	return aesgcm.Open(nil, nonce, enc, nil)
}

// Encrypt encrypts plaintext under key. ind separates the two messages
// of a single OT that are encrypted under related keys.
func Encrypt(mode int, key []byte, ind uint8, plaintext []byte) ([]byte, error) {
	switch mode {
	case GCM:
		return gcmEncrypt(key, plaintext)
	case XORBlake2:
		return xorCipherWithBlake2(key, ind, plaintext)
	case XORBlake3:
		return xorCipherWithBlake3(key, ind, plaintext)
	case XORShake:
		return xorCipherWithShake(key, ind, plaintext)
	}

	return nil, fmt.Errorf("%w: %d", ErrUnknownCipher, mode)
}

func Decrypt(mode int, key []byte, ind uint8, ciphertext []byte) ([]byte, error) {
	switch mode {
	case GCM:
		return gcmDecrypt(key, ciphertext)
	case XORBlake2:
		return xorCipherWithBlake2(key, ind, ciphertext)
	case XORBlake3:
		return xorCipherWithBlake3(key, ind, ciphertext)
	case XORShake:
		return xorCipherWithShake(key, ind, ciphertext)
	}

	return nil, fmt.Errorf("%w: %d", ErrUnknownCipher, mode)
}

// compute ciphertext length in bytes
func EncryptLen(mode int, msgLen int) int {
	switch mode {
	case GCM:
		return nonceSize + aes.BlockSize + msgLen
	default:
		return msgLen
	}
}
