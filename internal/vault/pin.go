package vault

import (
	"context"
	"crypto/subtle"
	"fmt"

	"wallet-custody/pkg/crypto_util"
	"wallet-custody/pkg/errno"
)

func passwordHash(password string) string {
	return crypto_util.CalculateBlake3([]byte(password))
}

// SetPassword 保存口令摘要。已设置过口令时必须提供旧口令。
// 双重加密开启时先把全部私钥从旧口令转加密到新口令，成功后才写入新摘要；
// 中途失败返回 *MigrationError，摘要保持旧值，用同样的参数重试即可继续。
// 旧 PIN 绑定的是旧摘要，改口令后会被清除，pinReset 为 true
func (s *Service) SetPassword(ctx context.Context, oldPassword, newPassword string) (pinReset bool, err error) {
	if newPassword == "" {
		return false, fmt.Errorf("%w: empty password", errno.ErrWrongPassword)
	}
	err = s.withEntry(ctx, PasswordHashKey, func() error {
		_, ok, err := s.store.Get(ctx, PasswordHashKey)
		if err != nil {
			return err
		}
		if ok {
			match, err := s.CheckPassword(ctx, oldPassword)
			if err != nil {
				return err
			}
			if !match {
				return errno.ErrWrongPassword
			}
		}
		return s.withEntry(ctx, DoubleEncryptionKey, func() error {
			enabled, err := s.DoubleEncryptionEnabled(ctx)
			if err != nil {
				return err
			}
			if enabled {
				if err := s.rekeyAll(ctx, oldPassword, newPassword); err != nil {
					return err
				}
			}
			if err := s.store.Set(ctx, PasswordHashKey, passwordHash(newPassword)); err != nil {
				return err
			}
			return s.withEntry(ctx, PinCodeKey, func() error {
				_, hadPin, err := s.store.Get(ctx, PinCodeKey)
				if err != nil || !hadPin {
					return err
				}
				if err := s.store.Remove(ctx, PinCodeKey); err != nil {
					return err
				}
				pinReset = true
				return nil
			})
		})
	})
	if err != nil {
		return false, err
	}
	if pinReset {
		s.log.Info("password changed, pin cleared")
	}
	return pinReset, nil
}

// CheckPassword 与已保存的摘要比较；未设置口令时返回 false
func (s *Service) CheckPassword(ctx context.Context, password string) (bool, error) {
	stored, ok, err := s.store.Get(ctx, PasswordHashKey)
	if err != nil {
		return false, err
	}
	if !ok || password == "" {
		return false, nil
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(passwordHash(password))) == 1, nil
}

// VerifyPassword 口令不匹配时返回 ErrWrongPassword
func (s *Service) VerifyPassword(ctx context.Context, password string) error {
	match, err := s.CheckPassword(ctx, password)
	if err != nil {
		return err
	}
	if !match {
		return errno.ErrWrongPassword
	}
	return nil
}

// VerifyPasswordIfSet 未设置口令摘要时不做校验
func (s *Service) VerifyPasswordIfSet(ctx context.Context, password string) error {
	_, ok, err := s.store.Get(ctx, PasswordHashKey)
	if err != nil || !ok {
		return err
	}
	return s.VerifyPassword(ctx, password)
}

// SetPin 用 PIN 加密当前口令摘要：pinCode = encrypt(passwordHash, pin)
func (s *Service) SetPin(ctx context.Context, pin, password string) error {
	if pin == "" {
		return fmt.Errorf("%w: empty pin", errno.ErrWrongPin)
	}
	// 与 SetPassword 同序加锁，校验与写入之间口令不会被替换
	return s.withEntry(ctx, PasswordHashKey, func() error {
		if err := s.VerifyPassword(ctx, password); err != nil {
			return err
		}
		blob, err := s.cipher.Encrypt(passwordHash(password), pin)
		if err != nil {
			return err
		}
		return s.withEntry(ctx, PinCodeKey, func() error {
			return s.store.Set(ctx, PinCodeKey, blob.String())
		})
	})
}

// CheckPin 解密 pinCode 并与当前口令摘要比较。
// 解密失败 (PIN 错误) 返回 (false, nil)，不是错误
func (s *Service) CheckPin(ctx context.Context, pin string) (bool, error) {
	if pin == "" {
		return false, nil
	}
	raw, ok, err := s.store.Get(ctx, PinCodeKey)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	blob, isBlob := crypto_util.ParseBlob(raw)
	if !isBlob {
		return false, nil
	}
	hash, err := s.cipher.Decrypt(blob, pin)
	if err != nil {
		return false, nil
	}
	live, ok, err := s.store.Get(ctx, PasswordHashKey)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	return subtle.ConstantTimeCompare([]byte(hash), []byte(live)) == 1, nil
}

// VerifyPin PIN 不正确时返回 ErrWrongPin
func (s *Service) VerifyPin(ctx context.Context, pin string) error {
	match, err := s.CheckPin(ctx, pin)
	if err != nil {
		return err
	}
	if !match {
		return errno.ErrWrongPin
	}
	return nil
}

// PinEnabled 是否设置了 PIN
func (s *Service) PinEnabled(ctx context.Context) (bool, error) {
	_, ok, err := s.store.Get(ctx, PinCodeKey)
	return ok, err
}

// RemovePin 关闭 PIN 解锁，需要口令
func (s *Service) RemovePin(ctx context.Context, password string) error {
	if err := s.VerifyPassword(ctx, password); err != nil {
		return err
	}
	return s.withEntry(ctx, PinCodeKey, func() error {
		return s.store.Remove(ctx, PinCodeKey)
	})
}
