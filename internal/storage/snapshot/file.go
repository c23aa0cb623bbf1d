package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/yndnr/sesspool-go/internal/core/domain"
)

// DefaultPath is the snapshot location used when none is configured.
const DefaultPath = "data/cookies.json"

const envelopeVersion = 1

// record is the on-disk form of a credential.
type record struct {
	AccessToken string `json:"accessToken"`
	Expiration  int64  `json:"expiration"`
	Created     int64  `json:"created"`
}

// envelope wraps an encrypted document.
type envelope struct {
	Version int    `json:"version"`
	Cipher  string `json:"cipher"`
	Salt    []byte `json:"salt"`
	Data    []byte `json:"data"`
}

// Config configures a FileStore.
type Config struct {
	// Path is the snapshot file. Its directory is created on demand.
	Path string

	// Sealer enables at-rest encryption when non-nil.
	Sealer *Sealer

	Logger *slog.Logger
}

// FileStore persists the pool as one JSON document.
type FileStore struct {
	path   string
	sealer *Sealer
	logger *slog.Logger
}

// NewFileStore creates a file-backed store.
func NewFileStore(cfg Config) (*FileStore, error) {
	if cfg.Path == "" {
		cfg.Path = DefaultPath
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0750); err != nil {
		return nil, fmt.Errorf("snapshot: create dir: %w", err)
	}

	return &FileStore{
		path:   cfg.Path,
		sealer: cfg.Sealer,
		logger: cfg.Logger.With("component", "snapshot", "path", cfg.Path),
	}, nil
}

// Path returns the snapshot file path.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the snapshot. A missing file yields an empty pool; an
// unreadable or undecodable file is deleted and also yields an empty pool.
func (s *FileStore) Load(_ context.Context) (map[string][]domain.Credential, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string][]domain.Credential{}, nil
		}
		s.discard(err)
		return map[string][]domain.Credential{}, nil
	}

	pool, err := s.decode(data)
	if err != nil {
		s.discard(err)
		return map[string][]domain.Credential{}, nil
	}

	total := 0
	for _, creds := range pool {
		total += len(creds)
	}
	s.logger.Info("snapshot loaded", "origins", len(pool), "credentials", total)
	return pool, nil
}

// Save atomically replaces the snapshot with pool.
func (s *FileStore) Save(_ context.Context, pool map[string][]domain.Credential) error {
	data, err := s.encode(pool)
	if err != nil {
		return domain.ErrStorage.Wrap(err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return domain.ErrStorage.Wrap(fmt.Errorf("create temp file: %w", err))
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return domain.ErrStorage.Wrap(fmt.Errorf("write: %w", err))
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return domain.ErrStorage.Wrap(fmt.Errorf("sync: %w", err))
	}
	if err := tmp.Close(); err != nil {
		return domain.ErrStorage.Wrap(fmt.Errorf("close: %w", err))
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return domain.ErrStorage.Wrap(fmt.Errorf("rename: %w", err))
	}
	return nil
}

// Close implements the store contract; the file store holds no handles.
func (s *FileStore) Close() error {
	return nil
}

// MarshalList encodes one origin's credentials in the snapshot record format.
func MarshalList(creds []domain.Credential) ([]byte, error) {
	return json.Marshal(toRecords(creds))
}

// UnmarshalList decodes one origin's credentials from the snapshot record format.
func UnmarshalList(data []byte) ([]domain.Credential, error) {
	var recs []record
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, err
	}
	return fromRecords(recs)
}

func toRecords(creds []domain.Credential) []record {
	recs := make([]record, 0, len(creds))
	for _, c := range creds {
		recs = append(recs, record{AccessToken: c.Token, Expiration: c.ExpiresAt, Created: c.CreatedAt})
	}
	return recs
}

func fromRecords(recs []record) ([]domain.Credential, error) {
	creds := make([]domain.Credential, 0, len(recs))
	for _, r := range recs {
		if r.AccessToken == "" {
			return nil, errors.New("empty token")
		}
		creds = append(creds, domain.Credential{Token: r.AccessToken, CreatedAt: r.Created, ExpiresAt: r.Expiration})
	}
	return creds, nil
}

func (s *FileStore) encode(pool map[string][]domain.Credential) ([]byte, error) {
	doc := make(map[string][]record, len(pool))
	for origin, creds := range pool {
		doc[origin] = toRecords(creds)
	}

	plain, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}
	if s.sealer == nil {
		return plain, nil
	}

	salt, sealed, err := s.sealer.Seal(plain)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{
		Version: envelopeVersion,
		Cipher:  s.sealer.Algorithm(),
		Salt:    salt,
		Data:    sealed,
	})
}

func (s *FileStore) decode(data []byte) (map[string][]domain.Credential, error) {
	if s.sealer != nil {
		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			return nil, fmt.Errorf("unmarshal envelope: %w", err)
		}
		if env.Version != envelopeVersion {
			return nil, fmt.Errorf("unsupported envelope version %d", env.Version)
		}
		plain, err := s.sealer.Open(env.Cipher, env.Salt, env.Data)
		if err != nil {
			return nil, err
		}
		data = plain
	}

	var doc map[string][]record
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal: %w", err)
	}

	pool := make(map[string][]domain.Credential, len(doc))
	for origin, recs := range doc {
		creds, err := fromRecords(recs)
		if err != nil {
			return nil, fmt.Errorf("origin %q: %w", origin, err)
		}
		pool[origin] = creds
	}
	return pool, nil
}

// discard removes a snapshot that could not be used.
func (s *FileStore) discard(cause error) {
	err := domain.ErrCorruptState.Wrap(cause)
	if rmErr := os.Remove(s.path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
		s.logger.Error("failed to remove corrupt snapshot", "error", err, "remove_error", rmErr)
		return
	}
	s.logger.Warn("discarded corrupt snapshot, starting empty", "error", err)
}
