package vault

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"wallet-custody/internal/chain"
	"wallet-custody/pkg/crypto_util"
	"wallet-custody/pkg/errno"
	"wallet-custody/pkg/monitor"
)

const (
	DirectionEncrypt = "encrypt"
	DirectionDecrypt = "decrypt"
	DirectionRekey   = "rekey"
)

// MigrationError 批量迁移中途失败。已处理的链保持新状态，
// 重新执行同一操作即可完成剩余部分 (已是目标状态的条目会被跳过)
type MigrationError struct {
	Direction string
	Done      []chain.ChainID
	Pending   []chain.ChainID
	Err       error
}

func (e *MigrationError) Error() string {
	return fmt.Sprintf("%s keys incomplete (done: %s, pending: %s): %v",
		e.Direction, joinIDs(e.Done), joinIDs(e.Pending), e.Err)
}

func (e *MigrationError) Unwrap() []error {
	return []error{errno.ErrMigrationIncomplete, e.Err}
}

func joinIDs(ids []chain.ChainID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = string(id)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// EncryptAllKeys 开启双重加密：逐链读取明文私钥，用口令加密后覆盖。
// 全部成功后才写入 doubleEncryption 标记
func (s *Service) EncryptAllKeys(ctx context.Context, password string) (err error) {
	defer func() {
		monitor.KeyMigrationTotal.WithLabelValues(DirectionEncrypt, monitor.Result(err)).Inc()
	}()
	if password == "" {
		return fmt.Errorf("%w: empty password", errno.ErrWrongPassword)
	}
	return s.withMigrationLocks(ctx, func() error {
		if err := s.VerifyPasswordIfSet(ctx, password); err != nil {
			return err
		}
		if err := s.migrate(ctx, DirectionEncrypt, func(value string) (string, bool, error) {
			if _, encrypted := crypto_util.ParseBlob(value); encrypted {
				return "", false, nil
			}
			blob, err := s.cipher.Encrypt(value, password)
			if err != nil {
				return "", false, err
			}
			return blob.String(), true, nil
		}); err != nil {
			return err
		}
		return s.store.Set(ctx, DoubleEncryptionKey, "true")
	})
}

// DecryptAllKeys 关闭双重加密：逐链解密并以明文覆盖
func (s *Service) DecryptAllKeys(ctx context.Context, password string) (err error) {
	defer func() {
		monitor.KeyMigrationTotal.WithLabelValues(DirectionDecrypt, monitor.Result(err)).Inc()
	}()
	if password == "" {
		return fmt.Errorf("%w: empty password", errno.ErrWrongPassword)
	}
	return s.withMigrationLocks(ctx, func() error {
		if err := s.VerifyPasswordIfSet(ctx, password); err != nil {
			return err
		}
		if err := s.migrate(ctx, DirectionDecrypt, func(value string) (string, bool, error) {
			blob, encrypted := crypto_util.ParseBlob(value)
			if !encrypted {
				return "", false, nil
			}
			plain, err := s.cipher.Decrypt(blob, password)
			if err != nil {
				return "", false, fmt.Errorf("%w: %w", errno.ErrWrongPassword, err)
			}
			return plain, true, nil
		}); err != nil {
			return err
		}
		return s.store.Remove(ctx, DoubleEncryptionKey)
	})
}

// withMigrationLocks 加锁顺序固定为 passwordHash -> doubleEncryption -> 单条私钥
func (s *Service) withMigrationLocks(ctx context.Context, fn func() error) error {
	return s.withEntry(ctx, PasswordHashKey, func() error {
		return s.withEntry(ctx, DoubleEncryptionKey, fn)
	})
}

// rekeyAll 把密文私钥从旧口令转加密到新口令。已能用新口令解开的条目视为完成，
// 调用方需持有 passwordHash 与 doubleEncryption 锁
func (s *Service) rekeyAll(ctx context.Context, oldPassword, newPassword string) (err error) {
	defer func() {
		monitor.KeyMigrationTotal.WithLabelValues(DirectionRekey, monitor.Result(err)).Inc()
	}()
	if oldPassword == "" {
		return fmt.Errorf("%w: double encryption requires the current password", errno.ErrWrongPassword)
	}
	return s.migrate(ctx, DirectionRekey, func(value string) (string, bool, error) {
		blob, encrypted := crypto_util.ParseBlob(value)
		plain := value
		if encrypted {
			if _, derr := s.cipher.Decrypt(blob, newPassword); derr == nil {
				return "", false, nil
			}
			var derr error
			if plain, derr = s.cipher.Decrypt(blob, oldPassword); derr != nil {
				return "", false, fmt.Errorf("%w: %w", errno.ErrWrongPassword, derr)
			}
		}
		next, eerr := s.cipher.Encrypt(plain, newPassword)
		if eerr != nil {
			return "", false, eerr
		}
		return next.String(), true, nil
	})
}

// migrate 对每条链的条目执行 transform。transform 返回 changed=false 表示已是目标状态。
// 某条链失败后不再处理剩余链，也不回滚已完成的链
func (s *Service) migrate(ctx context.Context, direction string, transform func(string) (string, bool, error)) error {
	configs := s.registry.All()
	var done []chain.ChainID
	for i, cfg := range configs {
		name := cfg.KeyName()
		err := s.withEntry(ctx, name, func() error {
			value, ok, err := s.store.Get(ctx, name)
			if err != nil {
				return err
			}
			if !ok || value == "" {
				return nil
			}
			next, changed, err := transform(value)
			if err != nil || !changed {
				return err
			}
			return s.store.Set(ctx, name, next)
		})
		if err != nil {
			pending := make([]chain.ChainID, 0, len(configs)-i)
			for _, c := range configs[i:] {
				pending = append(pending, c.ID)
			}
			s.log.Error("key migration stopped",
				zap.String("direction", direction),
				zap.String("chain", string(cfg.ID)),
				zap.Int("done", len(done)),
				zap.Error(err))
			return &MigrationError{Direction: direction, Done: done, Pending: pending, Err: err}
		}
		done = append(done, cfg.ID)
	}
	s.log.Info("key migration finished", zap.String("direction", direction), zap.Int("chains", len(done)))
	return nil
}
