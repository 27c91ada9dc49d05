// Package cipher implements the platform's field-level encryption: JSON
// payload, AES-256-CBC, key and IV derived from the deployment encryption
// key via the OpenSSL EVP_BytesToKey MD5 construction, output in the
// OpenSSL "Salted__" envelope. Rows written here must decrypt inside the
// platform, so the format is fixed.
package cipher

import (
	"bytes"
	"crypto/aes"
	cbc "crypto/cipher"
	"crypto/md5"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
)

const saltHeader = "Salted__"

// Cipher encrypts credential field maps with a deployment encryption key.
type Cipher struct {
	key []byte
}

// New creates a Cipher. An empty key is a configuration error.
func New(encryptionKey string) (*Cipher, error) {
	if encryptionKey == "" {
		return nil, errors.New("encryption key is required")
	}
	return &Cipher{key: []byte(encryptionKey)}, nil
}

// Encrypt serializes the field map to JSON and encrypts it.
func (c *Cipher) Encrypt(data map[string]any) (string, error) {
	plaintext, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("failed to serialize credential data: %w", err)
	}

	salt := make([]byte, 8)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	key, iv := deriveKeyAndIV(c.key, salt)
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}

	padded := pkcs7Pad(plaintext, aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cbc.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	out := make([]byte, 0, len(saltHeader)+len(salt)+len(ciphertext))
	out = append(out, saltHeader...)
	out = append(out, salt...)
	out = append(out, ciphertext...)
	return base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt reverses Encrypt.
func (c *Cipher) Decrypt(encoded string) (map[string]any, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("invalid ciphertext encoding: %w", err)
	}
	if len(raw) < len(saltHeader)+8 || string(raw[:len(saltHeader)]) != saltHeader {
		return nil, errors.New("missing salt header")
	}
	salt := raw[len(saltHeader) : len(saltHeader)+8]
	ciphertext := raw[len(saltHeader)+8:]
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, errors.New("ciphertext is not block-aligned")
	}

	key, iv := deriveKeyAndIV(c.key, salt)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	plaintext := make([]byte, len(ciphertext))
	cbc.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)

	plaintext, err = pkcs7Unpad(plaintext, aes.BlockSize)
	if err != nil {
		return nil, err
	}

	var data map[string]any
	if err := json.Unmarshal(plaintext, &data); err != nil {
		return nil, fmt.Errorf("decrypted payload is not valid JSON: %w", err)
	}
	return data, nil
}

// deriveKeyAndIV is EVP_BytesToKey with MD5, one round per block: 32-byte
// key followed by a 16-byte IV.
func deriveKeyAndIV(password, salt []byte) (key, iv []byte) {
	var derived []byte
	var prev []byte
	for len(derived) < 48 {
		h := md5.New()
		h.Write(prev)
		h.Write(password)
		h.Write(salt)
		prev = h.Sum(nil)
		derived = append(derived, prev...)
	}
	return derived[:32], derived[32:48]
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 {
		return nil, errors.New("empty plaintext")
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize || n > len(data) {
		return nil, errors.New("invalid padding")
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, errors.New("invalid padding")
		}
	}
	return data[:len(data)-n], nil
}
