// file — хранилище токенов в JSON-файле на диске.
//
// Особенности:
//   - запись атомарная: временный файл + rename, права 0600;
//   - если задан secret, содержимое запечатывается nacl/secretbox, ключ
//     выводится через scrypt из secret и соли, хранящейся в том же файле;
//   - файл читается один раз в New, дальше работает write-through кэш.
package file

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/nacl/secretbox"
	"golang.org/x/crypto/scrypt"

	"github.com/pribylovaa/crypto-dashboard/internal/storage"
)

const (
	formatVersion = 1
	saltSize      = 16
	nonceSize     = 24
	keySize       = 32
)

// Параметры scrypt; в тестах уменьшаются.
var (
	scryptN = 1 << 15
	scryptR = 8
	scryptP = 1
)

// document — формат файла на диске.
type document struct {
	Version int               `json:"version"`
	Tokens  map[string]string `json:"tokens,omitempty"`
	Salt    string            `json:"salt,omitempty"`
	Sealed  string            `json:"sealed,omitempty"`
}

type Storage struct {
	mu   sync.Mutex
	path string
	key  *[keySize]byte // nil — без шифрования
	salt []byte
	data map[string]string
}

// New открывает (или готовит к созданию) файл по path.
// Пустой secret отключает шифрование.
func New(path, secret string) (*Storage, error) {
	const op = "storage.file.New"

	if path == "" {
		return nil, fmt.Errorf("%s: empty path", op)
	}

	s := &Storage{path: path, data: make(map[string]string)}

	doc, err := readDocument(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		doc = nil
	case err != nil:
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if secret != "" {
		salt, err := pickSalt(doc)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		key, err := deriveKey(secret, salt)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		s.salt, s.key = salt, key
	}

	if doc != nil {
		data, err := s.open(doc)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		s.data = data
	}

	return s, nil
}

// Get возвращает значение по ключу.
func (s *Storage) Get(_ context.Context, key string) (string, error) {
	const op = "storage.file.Get"

	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.data[key]
	if !ok {
		return "", fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return v, nil
}

// Set сохраняет значение и сбрасывает файл на диск.
func (s *Storage) Set(_ context.Context, key, value string) error {
	const op = "storage.file.Set"

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, had := s.data[key]
	s.data[key] = value

	if err := s.flush(); err != nil {
		if had {
			s.data[key] = prev
		} else {
			delete(s.data, key)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Delete удаляет ключи и сбрасывает файл на диск.
// Если запись не удалась, ключи остаются в памяти, как и в файле.
func (s *Storage) Delete(_ context.Context, keys ...string) error {
	const op = "storage.file.Delete"

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := make(map[string]string, len(keys))
	for _, k := range keys {
		if v, ok := s.data[k]; ok {
			removed[k] = v
			delete(s.data, k)
		}
	}

	if len(removed) == 0 {
		return nil
	}

	if err := s.flush(); err != nil {
		for k, v := range removed {
			s.data[k] = v
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Storage) Close() error { return nil }

// flush сериализует текущие данные и атомарно заменяет файл.
func (s *Storage) flush() error {
	doc, err := s.seal(s.data)
	if err != nil {
		return err
	}

	b, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".tokens-*")
	if err != nil {
		return err
	}

	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return err
	}

	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return err
	}

	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmpName, s.path)
}

func (s *Storage) seal(data map[string]string) (*document, error) {
	if s.key == nil {
		return &document{Version: formatVersion, Tokens: data}, nil
	}

	plain, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, err
	}

	box := secretbox.Seal(nonce[:], plain, &nonce, s.key)

	return &document{
		Version: formatVersion,
		Salt:    base64.StdEncoding.EncodeToString(s.salt),
		Sealed:  base64.StdEncoding.EncodeToString(box),
	}, nil
}

func (s *Storage) open(doc *document) (map[string]string, error) {
	if doc.Version != formatVersion {
		return nil, fmt.Errorf("unsupported version %d: %w", doc.Version, storage.ErrCorrupted)
	}

	if doc.Sealed == "" {
		if s.key != nil && len(doc.Tokens) > 0 {
			return nil, fmt.Errorf("plain file with secret configured: %w", storage.ErrCorrupted)
		}

		out := make(map[string]string, len(doc.Tokens))
		for k, v := range doc.Tokens {
			out[k] = v
		}

		return out, nil
	}

	if s.key == nil {
		return nil, fmt.Errorf("sealed file without secret: %w", storage.ErrCorrupted)
	}

	box, err := base64.StdEncoding.DecodeString(doc.Sealed)
	if err != nil || len(box) < nonceSize {
		return nil, fmt.Errorf("sealed payload: %w", storage.ErrCorrupted)
	}

	var nonce [nonceSize]byte
	copy(nonce[:], box[:nonceSize])

	plain, ok := secretbox.Open(nil, box[nonceSize:], &nonce, s.key)
	if !ok {
		return nil, fmt.Errorf("secretbox open: %w", storage.ErrCorrupted)
	}

	out := make(map[string]string)
	if err := json.Unmarshal(plain, &out); err != nil {
		return nil, fmt.Errorf("sealed json: %w", storage.ErrCorrupted)
	}

	return out, nil
}

func readDocument(path string) (*document, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var doc document
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("decode %q: %w", path, storage.ErrCorrupted)
	}

	return &doc, nil
}

// pickSalt берёт соль из существующего файла или генерирует новую.
func pickSalt(doc *document) ([]byte, error) {
	if doc != nil && doc.Salt != "" {
		salt, err := base64.StdEncoding.DecodeString(doc.Salt)
		if err != nil {
			return nil, fmt.Errorf("salt: %w", storage.ErrCorrupted)
		}

		return salt, nil
	}

	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}

	return salt, nil
}

func deriveKey(secret string, salt []byte) (*[keySize]byte, error) {
	raw, err := scrypt.Key([]byte(secret), salt, scryptN, scryptR, scryptP, keySize)
	if err != nil {
		return nil, err
	}

	var key [keySize]byte
	copy(key[:], raw)

	return &key, nil
}

var _ storage.TokenStore = (*Storage)(nil)
