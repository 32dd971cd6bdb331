package crypto

import (
	stdcrypto "crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

const (
	// AlgorithmID identifies the AEAD construction carried in each bundle.
	AlgorithmID = "xchacha20poly1305"

	// SymmetricKeySize is the AEAD key length in bytes.
	SymmetricKeySize = chacha20poly1305.KeySize

	rsaKeyBits = 2048
	tagSize    = 16
)

// ErrIntegrity signals that decryption failed: tag mismatch, truncated
// ciphertext, or malformed key/nonce material. No partial plaintext is ever
// returned alongside it.
var ErrIntegrity = errors.New("ciphertext integrity check failed")

// ErrSignatureInvalid signals a key-exchange signature that does not verify.
var ErrSignatureInvalid = errors.New("signature verification failed")

// Bundle carries one encrypted payload. Fields are structured on purpose so
// callers never concatenate or split delimiter-joined strings.
type Bundle struct {
	Ciphertext  []byte `json:"ciphertext"`
	IV          []byte `json:"iv"`
	Tag         []byte `json:"tag"`
	AlgorithmID string `json:"algorithm_id"`
}

// GenerateSymmetricKey returns a fresh random AEAD key.
func GenerateSymmetricKey() ([]byte, error) {
	key := make([]byte, SymmetricKeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return key, nil
}

// Encrypt seals the plaintext under key with a fresh random nonce. The 16-byte
// Poly1305 tag is split off the sealed output and carried separately.
func Encrypt(key, plaintext []byte) (Bundle, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return Bundle{}, fmt.Errorf("init aead: %w", err)
	}

	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return Bundle{}, fmt.Errorf("generate nonce: %w", err)
	}

	sealed := aead.Seal(nil, nonce, plaintext, nil)
	split := len(sealed) - tagSize

	return Bundle{
		Ciphertext:  sealed[:split],
		IV:          nonce,
		Tag:         sealed[split:],
		AlgorithmID: AlgorithmID,
	}, nil
}

// Decrypt opens a bundle. Any malformed input or tag mismatch yields
// ErrIntegrity.
func Decrypt(key []byte, bundle Bundle) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, ErrIntegrity
	}
	if len(bundle.IV) != chacha20poly1305.NonceSizeX || len(bundle.Tag) != tagSize {
		return nil, ErrIntegrity
	}

	sealed := make([]byte, 0, len(bundle.Ciphertext)+tagSize)
	sealed = append(sealed, bundle.Ciphertext...)
	sealed = append(sealed, bundle.Tag...)

	plaintext, err := aead.Open(nil, bundle.IV, sealed, nil)
	if err != nil {
		return nil, ErrIntegrity
	}
	return plaintext, nil
}

// GenerateKeyPair returns a new RSA key pair as PEM strings
// (PKIX public half, PKCS#8 private half).
func GenerateKeyPair() (publicPEM, privatePEM string, err error) {
	key, err := rsa.GenerateKey(rand.Reader, rsaKeyBits)
	if err != nil {
		return "", "", fmt.Errorf("generate rsa key: %w", err)
	}

	privDER, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return "", "", fmt.Errorf("marshal private key: %w", err)
	}
	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return "", "", fmt.Errorf("marshal public key: %w", err)
	}

	privatePEM = string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privDER}))
	publicPEM = string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER}))
	return publicPEM, privatePEM, nil
}

// WrapKey encrypts symmetric key material under the recipient's public key
// with RSA-OAEP (SHA-256).
func WrapKey(publicPEM string, keyMaterial []byte) ([]byte, error) {
	pub, err := parsePublicKey(publicPEM)
	if err != nil {
		return nil, err
	}
	wrapped, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, pub, keyMaterial, nil)
	if err != nil {
		return nil, fmt.Errorf("wrap key: %w", err)
	}
	return wrapped, nil
}

// UnwrapKey decrypts wrapped key material with the recipient's private key.
func UnwrapKey(privatePEM string, wrapped []byte) ([]byte, error) {
	priv, err := parsePrivateKey(privatePEM)
	if err != nil {
		return nil, err
	}
	keyMaterial, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, priv, wrapped, nil)
	if err != nil {
		return nil, ErrIntegrity
	}
	return keyMaterial, nil
}

// Sign produces an RSA-PSS (SHA-256) signature over the message.
func Sign(privatePEM string, message []byte) ([]byte, error) {
	priv, err := parsePrivateKey(privatePEM)
	if err != nil {
		return nil, err
	}
	digest := sha256.Sum256(message)
	sig, err := rsa.SignPSS(rand.Reader, priv, stdcrypto.SHA256, digest[:], nil)
	if err != nil {
		return nil, fmt.Errorf("sign: %w", err)
	}
	return sig, nil
}

// Verify checks an RSA-PSS signature. A failed check yields
// ErrSignatureInvalid.
func Verify(publicPEM string, message, signature []byte) error {
	pub, err := parsePublicKey(publicPEM)
	if err != nil {
		return err
	}
	digest := sha256.Sum256(message)
	if err := rsa.VerifyPSS(pub, stdcrypto.SHA256, digest[:], signature, nil); err != nil {
		return ErrSignatureInvalid
	}
	return nil
}

func parsePublicKey(publicPEM string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(publicPEM))
	if block == nil {
		return nil, fmt.Errorf("invalid public key pem")
	}
	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	pub, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("public key is not rsa")
	}
	return pub, nil
}

func parsePrivateKey(privatePEM string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(privatePEM))
	if block == nil {
		return nil, fmt.Errorf("invalid private key pem")
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	priv, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("private key is not rsa")
	}
	return priv, nil
}
