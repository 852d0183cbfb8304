package keystore

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/scrypt"

	"wallet-custody/pkg/crypto_util"
	"wallet-custody/pkg/safe_random"
)

// EncryptedFileJSON 遵循 Ethereum Keystore V3 的结构风格，
// 明文是全部条目序列化后的 JSON
type EncryptedFileJSON struct {
	Crypto  CryptoJSON `json:"crypto"`
	Id      string     `json:"id"`
	Version int        `json:"version"` // 3
}

type CryptoJSON struct {
	Cipher       string       `json:"cipher"`     // "aes-256-gcm"
	CipherText   string       `json:"ciphertext"` // Hex string
	CipherParams CipherParams `json:"cipherparams"`
	KDF          string       `json:"kdf"` // "scrypt"
	KDFParams    KDFParams    `json:"kdfparams"`
}

type CipherParams struct {
	IV string `json:"iv"` // Hex string
}

type KDFParams struct {
	DKLen int    `json:"dklen"`
	N     int    `json:"n"`
	R     int    `json:"r"`
	P     int    `json:"p"`
	Salt  string `json:"salt"` // Hex string
}

const (
	fileScryptR     = 8
	fileScryptP     = 1
	fileScryptDKLen = 32
)

var ErrFileSecret = errors.New("keystore: wrong secret or corrupted file")

// File 以设备密钥加密的单文件存储，CLI 使用。
// 每次 Set/Remove 都重写整个文件 (临时文件 + rename)
type File struct {
	path    string
	secret  string
	scryptN int

	mu      sync.Mutex
	entries map[string]string
	loaded  bool
}

func NewFile(path, secret string, scryptN int) *File {
	if scryptN <= 0 {
		scryptN = crypto_util.DefaultScryptN
	}
	return &File{path: path, secret: secret, scryptN: scryptN}
}

func (f *File) Get(_ context.Context, name string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.load(); err != nil {
		return "", false, err
	}
	v, ok := f.entries[name]
	return v, ok, nil
}

func (f *File) Set(_ context.Context, name, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.load(); err != nil {
		return err
	}
	prev, had := f.entries[name]
	f.entries[name] = value
	if err := f.flush(); err != nil {
		if had {
			f.entries[name] = prev
		} else {
			delete(f.entries, name)
		}
		return err
	}
	return nil
}

func (f *File) Remove(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.load(); err != nil {
		return err
	}
	prev, had := f.entries[name]
	if !had {
		return nil
	}
	delete(f.entries, name)
	if err := f.flush(); err != nil {
		f.entries[name] = prev
		return err
	}
	return nil
}

func (f *File) load() error {
	if f.loaded {
		return nil
	}
	raw, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		f.entries = make(map[string]string)
		f.loaded = true
		return nil
	}
	if err != nil {
		return err
	}

	var doc EncryptedFileJSON
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("keystore: parse %s: %w", f.path, err)
	}
	plain, err := decryptFile(&doc, f.secret)
	if err != nil {
		return err
	}
	entries := make(map[string]string)
	if err := json.Unmarshal(plain, &entries); err != nil {
		return fmt.Errorf("keystore: decode entries: %w", err)
	}
	f.entries = entries
	f.loaded = true
	return nil
}

func (f *File) flush() error {
	plain, err := json.Marshal(f.entries)
	if err != nil {
		return err
	}
	doc, err := encryptFile(plain, f.secret, f.scryptN)
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return err
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, out, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, f.path)
}

func encryptFile(plain []byte, secret string, n int) (*EncryptedFileJSON, error) {
	salt, err := safe_random.GenerateRandomBytes(32)
	if err != nil {
		return nil, err
	}
	iv, err := safe_random.GenerateRandomBytes(12)
	if err != nil {
		return nil, err
	}
	key, err := scrypt.Key([]byte(secret), salt, n, fileScryptR, fileScryptP, fileScryptDKLen)
	if err != nil {
		return nil, err
	}
	ct, err := crypto_util.SealAESGCM(key, iv, plain)
	if err != nil {
		return nil, err
	}
	id, err := safe_random.GenerateRandomHexString(16)
	if err != nil {
		return nil, err
	}
	return &EncryptedFileJSON{
		Crypto: CryptoJSON{
			Cipher:       "aes-256-gcm",
			CipherText:   hex.EncodeToString(ct),
			CipherParams: CipherParams{IV: hex.EncodeToString(iv)},
			KDF:          "scrypt",
			KDFParams: KDFParams{
				DKLen: fileScryptDKLen,
				N:     n,
				R:     fileScryptR,
				P:     fileScryptP,
				Salt:  hex.EncodeToString(salt),
			},
		},
		Id:      id,
		Version: 3,
	}, nil
}

func decryptFile(doc *EncryptedFileJSON, secret string) ([]byte, error) {
	if doc.Version != 3 || doc.Crypto.KDF != "scrypt" || doc.Crypto.Cipher != "aes-256-gcm" {
		return nil, fmt.Errorf("keystore: unsupported file format (version %d, %s/%s)", doc.Version, doc.Crypto.KDF, doc.Crypto.Cipher)
	}
	salt, err := hex.DecodeString(doc.Crypto.KDFParams.Salt)
	if err != nil {
		return nil, err
	}
	iv, err := hex.DecodeString(doc.Crypto.CipherParams.IV)
	if err != nil {
		return nil, err
	}
	ct, err := hex.DecodeString(doc.Crypto.CipherText)
	if err != nil {
		return nil, err
	}
	p := doc.Crypto.KDFParams
	key, err := scrypt.Key([]byte(secret), salt, p.N, p.R, p.P, p.DKLen)
	if err != nil {
		return nil, err
	}
	plain, err := crypto_util.OpenAESGCM(key, iv, ct)
	if err != nil {
		return nil, ErrFileSecret
	}
	return plain, nil
}
