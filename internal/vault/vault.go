// Package vault 分层加密服务：按链存放私钥，可选的口令双重加密，以及 PIN 解锁。
package vault

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"wallet-custody/internal/chain"
	"wallet-custody/internal/keystore"
	"wallet-custody/pkg/crypto_util"
	"wallet-custody/pkg/errno"
	"wallet-custody/pkg/logger"
	"wallet-custody/pkg/utils/lock"
)

// 安全存储中的条目名
const (
	DoubleEncryptionKey = "doubleEncryption"
	PinCodeKey          = "pinCode"
	PasswordHashKey     = "passwordHash"
)

const lockTTL = 30 * time.Second

// Service 自身不持有长期状态，全部读写都经过 keystore
type Service struct {
	store    keystore.Store
	locks    lock.DistributedLock
	registry *chain.Registry
	cipher   *crypto_util.PassphraseCipher
	log      *zap.Logger
}

func NewService(store keystore.Store, locks lock.DistributedLock, registry *chain.Registry, cipher *crypto_util.PassphraseCipher) *Service {
	if locks == nil {
		locks = lock.NewLocalLock()
	}
	if cipher == nil {
		cipher = crypto_util.NewPassphraseCipher(0)
	}
	return &Service{
		store:    store,
		locks:    locks,
		registry: registry,
		cipher:   cipher,
		log:      logger.Named("vault"),
	}
}

// withEntry 对单个条目的读-改-写加锁
func (s *Service) withEntry(ctx context.Context, name string, fn func() error) error {
	return lock.WithLock(ctx, s.locks, "keystore:"+name, lockTTL, fn)
}

// DoubleEncryptionEnabled 是否已开启双重加密
func (s *Service) DoubleEncryptionEnabled(ctx context.Context) (bool, error) {
	v, ok, err := s.store.Get(ctx, DoubleEncryptionKey)
	if err != nil {
		return false, err
	}
	return ok && v == "true", nil
}

// SetKey 写入某条链的私钥；开启双重加密时先用口令加密。
// 持有 doubleEncryption 锁读取标记，与批量加解密互斥
func (s *Service) SetKey(ctx context.Context, id chain.ChainID, privateKeyHex, password string) error {
	cfg := s.registry.Get(id)
	return s.withEntry(ctx, DoubleEncryptionKey, func() error {
		enabled, err := s.DoubleEncryptionEnabled(ctx)
		if err != nil {
			return err
		}
		value := privateKeyHex
		if enabled {
			if password == "" {
				return fmt.Errorf("%w: double encryption requires the password", errno.ErrWrongPassword)
			}
			if err := s.VerifyPasswordIfSet(ctx, password); err != nil {
				return err
			}
			blob, err := s.cipher.Encrypt(privateKeyHex, password)
			if err != nil {
				return err
			}
			value = blob.String()
		}
		return s.withEntry(ctx, cfg.KeyName(), func() error {
			return s.store.Set(ctx, cfg.KeyName(), value)
		})
	})
}

// GetKey 返回明文私钥。条目为密文时需要口令，口令错误返回 ErrWrongPassword；
// 硬件钱包没有本地私钥，返回 ErrKeyNotFound
func (s *Service) GetKey(ctx context.Context, id chain.ChainID, password string) (string, error) {
	cfg := s.registry.Get(id)
	v, ok, err := s.store.Get(ctx, cfg.KeyName())
	if err != nil {
		return "", err
	}
	if !ok || v == "" {
		return "", fmt.Errorf("%w: %s", errno.ErrKeyNotFound, id)
	}
	blob, encrypted := crypto_util.ParseBlob(v)
	if !encrypted {
		return v, nil
	}
	plain, err := s.cipher.Decrypt(blob, password)
	if err != nil {
		return "", fmt.Errorf("%w: %w", errno.ErrWrongPassword, err)
	}
	return plain, nil
}

// RemoveAll 钱包销毁时调用：删除所有私钥与口令/PIN 相关条目
func (s *Service) RemoveAll(ctx context.Context) error {
	var errs []error
	for _, cfg := range s.registry.All() {
		name := cfg.KeyName()
		if err := s.withEntry(ctx, name, func() error { return s.store.Remove(ctx, name) }); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", cfg.ID, err))
		}
	}
	for _, name := range []string{DoubleEncryptionKey, PinCodeKey, PasswordHashKey} {
		if err := s.store.Remove(ctx, name); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
