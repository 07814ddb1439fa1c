package wallet

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/pbkdf2"
)

const (
	// defaultIterations is the OWASP-recommended minimum for HMAC-SHA256.
	defaultIterations = 480_000
	saltLen           = 16
	aesKeyLen         = 32
	keyFileVersion    = 1
)

// sealedKey is the on-disk format of an encrypted signing key.
type sealedKey struct {
	Version    int    `json:"version"`
	Iterations int    `json:"iterations"`
	Address    string `json:"address"`
	Salt       string `json:"salt"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

// KeySource says where the signing key comes from. A raw key wins over a
// key file.
type KeySource struct {
	PrivateKey       string
	EncryptedKeyPath string
	KeyPassword      string
}

// LoadKey resolves the signing key from src.
func LoadKey(src KeySource) (*ecdsa.PrivateKey, error) {
	if raw := strings.TrimSpace(src.PrivateKey); raw != "" {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(raw, "0x"))
		if err != nil {
			return nil, fmt.Errorf("wallet: private key: %w", err)
		}
		return key, nil
	}
	if src.EncryptedKeyPath != "" {
		data, err := os.ReadFile(src.EncryptedKeyPath)
		if err != nil {
			return nil, fmt.Errorf("wallet: read key file: %w", err)
		}
		return OpenKey(data, src.KeyPassword)
	}
	return nil, errors.New("wallet: no signing key configured (set private_key or encrypted_key_path)")
}

// SealKey encrypts key with password using PBKDF2-HMAC-SHA256 and
// AES-256-GCM.
func SealKey(key *ecdsa.PrivateKey, password string) ([]byte, error) {
	return sealKey(key, password, defaultIterations)
}

func sealKey(key *ecdsa.PrivateKey, password string, iterations int) ([]byte, error) {
	if password == "" {
		return nil, errors.New("wallet: password must not be empty")
	}

	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("wallet: salt: %w", err)
	}
	gcm, err := keyCipher(password, salt, iterations)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("wallet: nonce: %w", err)
	}

	return json.MarshalIndent(sealedKey{
		Version:    keyFileVersion,
		Iterations: iterations,
		Address:    crypto.PubkeyToAddress(key.PublicKey).Hex(),
		Salt:       base64.StdEncoding.EncodeToString(salt),
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		Ciphertext: base64.StdEncoding.EncodeToString(gcm.Seal(nil, nonce, crypto.FromECDSA(key), nil)),
	}, "", "  ")
}

// OpenKey decrypts a key file produced by SealKey.
func OpenKey(data []byte, password string) (*ecdsa.PrivateKey, error) {
	if password == "" {
		return nil, errors.New("wallet: password must not be empty")
	}

	var sk sealedKey
	if err := json.Unmarshal(data, &sk); err != nil {
		return nil, fmt.Errorf("wallet: parse key file: %w", err)
	}
	if sk.Version != keyFileVersion {
		return nil, fmt.Errorf("wallet: unsupported key file version %d", sk.Version)
	}
	if sk.Iterations <= 0 {
		sk.Iterations = defaultIterations
	}

	salt, err := base64.StdEncoding.DecodeString(sk.Salt)
	if err != nil {
		return nil, fmt.Errorf("wallet: decode salt: %w", err)
	}
	nonce, err := base64.StdEncoding.DecodeString(sk.Nonce)
	if err != nil {
		return nil, fmt.Errorf("wallet: decode nonce: %w", err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(sk.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("wallet: decode ciphertext: %w", err)
	}

	gcm, err := keyCipher(password, salt, sk.Iterations)
	if err != nil {
		return nil, err
	}
	plain, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("wallet: decrypt key (wrong password?): %w", err)
	}

	key, err := crypto.ToECDSA(plain)
	if err != nil {
		return nil, fmt.Errorf("wallet: decrypted key: %w", err)
	}
	if sk.Address != "" && !strings.EqualFold(sk.Address, crypto.PubkeyToAddress(key.PublicKey).Hex()) {
		return nil, fmt.Errorf("wallet: key file address %s does not match decrypted key", sk.Address)
	}
	return key, nil
}

func keyCipher(password string, salt []byte, iterations int) (cipher.AEAD, error) {
	derived := pbkdf2.Key([]byte(password), salt, iterations, aesKeyLen, sha256.New)
	block, err := aes.NewCipher(derived)
	if err != nil {
		return nil, fmt.Errorf("wallet: cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("wallet: gcm: %w", err)
	}
	return gcm, nil
}
