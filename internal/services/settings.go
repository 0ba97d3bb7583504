package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/yungbote/dubforge-backend/internal/data/repos"
	"github.com/yungbote/dubforge-backend/internal/platform/dbctx"
	"github.com/yungbote/dubforge-backend/internal/platform/logger"
)

// Well-known setting keys.
const (
	SettingTranscriberAPIKey = "transcriber_api_key"
	SettingAzureTTSKey       = "azure_tts_key"
)

// SettingsService stores configuration values encrypted at rest. Values
// are sealed with XChaCha20-Poly1305 under a key derived from the
// ENCRYPTION_KEY env var; the database only ever sees ciphertext.
type SettingsService interface {
	Set(ctx context.Context, key, plaintext string) error
	Get(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
}

type settingsService struct {
	log  *logger.Logger
	repo repos.SettingRepo
	key  [32]byte
}

func NewSettingsService(log *logger.Logger, repo repos.SettingRepo, encryptionKey string) (SettingsService, error) {
	if encryptionKey == "" {
		return nil, fmt.Errorf("ENCRYPTION_KEY required")
	}
	return &settingsService{
		log:  log.With("service", "SettingsService"),
		repo: repo,
		key:  sha256.Sum256([]byte(encryptionKey)),
	}, nil
}

func (ss *settingsService) seal(plaintext string) (string, error) {
	aead, err := chacha20poly1305.NewX(ss.key[:])
	if err != nil {
		return "", fmt.Errorf("init cipher: %w", err)
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("read nonce: %w", err)
	}
	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (ss *settingsService) open(encoded string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("decode setting: %w", err)
	}
	if len(raw) < chacha20poly1305.NonceSizeX {
		return "", fmt.Errorf("setting ciphertext too short")
	}
	aead, err := chacha20poly1305.NewX(ss.key[:])
	if err != nil {
		return "", fmt.Errorf("init cipher: %w", err)
	}
	nonce, ct := raw[:chacha20poly1305.NonceSizeX], raw[chacha20poly1305.NonceSizeX:]
	plaintext, err := aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return "", fmt.Errorf("unseal setting: %w", err)
	}
	return string(plaintext), nil
}

func (ss *settingsService) Set(ctx context.Context, key, plaintext string) error {
	sealed, err := ss.seal(plaintext)
	if err != nil {
		return err
	}
	return ss.repo.Upsert(dbctx.Context{Ctx: ctx}, key, sealed)
}

func (ss *settingsService) Get(ctx context.Context, key string) (string, error) {
	s, err := ss.repo.Get(dbctx.Context{Ctx: ctx}, key)
	if err != nil {
		return "", err
	}
	if s == nil {
		return "", nil
	}
	return ss.open(s.Value)
}

func (ss *settingsService) Delete(ctx context.Context, key string) error {
	return ss.repo.Delete(dbctx.Context{Ctx: ctx}, key)
}
