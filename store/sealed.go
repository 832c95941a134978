package store

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	sealMagic = "BKV1"

	sealSaltLength = 16
	sealKeyLength  = chacha20poly1305.KeySize

	// argon2id parameters sized for an interactive unlock on operator
	// hardware. Tampered headers are clamped before key derivation.
	defaultSealMemoryKB    uint32 = 64 * 1024
	defaultSealTime        uint32 = 1
	defaultSealParallelism uint8  = 4

	maxSealMemoryKB uint32 = 1024 * 1024
	maxSealTime     uint32 = 16
)

// sealHeaderLength: magic(4) | time(4) | memoryKB(4) | parallelism(1) | salt | nonce.
const sealHeaderLength = 4 + 4 + 4 + 1 + sealSaltLength + chacha20poly1305.NonceSizeX

// ErrSealedPassphrase is returned (wrapped in [ErrStoreUnavailable]) when a
// sealed document cannot be opened with the supplied passphrase.
var ErrSealedPassphrase = errors.New("sealed store passphrase rejected")

type sealer struct {
	passphrase []byte

	memoryKB    uint32
	time        uint32
	parallelism uint8
}

// NewSealedFile creates a [File] whose on-disk document is encrypted with a
// key derived from passphrase (argon2id, then XChaCha20-Poly1305). The key
// derivation parameters travel in the document header, so a store created
// with older defaults stays readable.
//
// Losing the passphrase loses only the cached session; the operator signs
// in again.
//
//	Docs: docs/store.md
func NewSealedFile(path, passphrase string) (*File, error) {
	if passphrase == "" {
		return nil, errors.New("passphrase empty")
	}

	f, err := NewFile(path)
	if err != nil {
		return nil, err
	}
	f.seal = &sealer{
		passphrase:  []byte(passphrase),
		memoryKB:    defaultSealMemoryKB,
		time:        defaultSealTime,
		parallelism: defaultSealParallelism,
	}
	return f, nil
}

func (s *sealer) sealBytes(plain []byte) ([]byte, error) {
	salt := make([]byte, sealSaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	key := argon2.IDKey(s.passphrase, salt, s.time, s.memoryKB, s.parallelism, sealKeyLength)
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	header := make([]byte, 0, sealHeaderLength)
	header = append(header, sealMagic...)
	header = binary.BigEndian.AppendUint32(header, s.time)
	header = binary.BigEndian.AppendUint32(header, s.memoryKB)
	header = append(header, s.parallelism)
	header = append(header, salt...)
	header = append(header, nonce...)

	// The header doubles as AEAD additional data, so flipping any of it
	// fails the open instead of deriving a garbage key quietly.
	ciphertext := aead.Seal(nil, nonce, plain, header)
	return append(header, ciphertext...), nil
}

func (s *sealer) unseal(raw []byte) ([]byte, error) {
	if len(raw) < sealHeaderLength {
		return nil, errors.New("sealed document truncated")
	}
	if string(raw[:4]) != sealMagic {
		return nil, errors.New("not a sealed document")
	}

	kdfTime := binary.BigEndian.Uint32(raw[4:8])
	kdfMemoryKB := binary.BigEndian.Uint32(raw[8:12])
	kdfParallelism := raw[12]
	salt := raw[13 : 13+sealSaltLength]
	nonce := raw[13+sealSaltLength : sealHeaderLength]

	// Refuse headers that would demand unbounded work from the KDF.
	if kdfTime == 0 || kdfTime > maxSealTime {
		return nil, errors.New("sealed document kdf time out of range")
	}
	if kdfMemoryKB == 0 || kdfMemoryKB > maxSealMemoryKB {
		return nil, errors.New("sealed document kdf memory out of range")
	}
	if kdfParallelism == 0 {
		return nil, errors.New("sealed document kdf parallelism out of range")
	}

	key := argon2.IDKey(s.passphrase, salt, kdfTime, kdfMemoryKB, kdfParallelism, sealKeyLength)
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}

	plain, err := aead.Open(nil, nonce, raw[sealHeaderLength:], raw[:sealHeaderLength])
	if err != nil {
		return nil, ErrSealedPassphrase
	}
	return plain, nil
}
