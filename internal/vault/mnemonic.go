package vault

import (
	"context"
	"fmt"

	"wallet-custody/internal/chain"
	"wallet-custody/pkg/bip32"
	"wallet-custody/pkg/bip39"
)

// ImportMnemonic 从助记词派生每条链 account 0 的私钥并写入存储，返回各链地址
func (s *Service) ImportMnemonic(ctx context.Context, mnemonic, passphrase, password string) (map[chain.ChainID]string, error) {
	seed, err := bip39.MnemonicToSeed(mnemonic, passphrase)
	if err != nil {
		return nil, err
	}
	master, err := bip32.NewMasterKeyFromSeed(seed)
	if err != nil {
		return nil, err
	}

	addresses := make(map[chain.ChainID]string)
	for _, cfg := range s.registry.All() {
		key, err := master.Derive(cfg.DerivationPath)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", cfg.ID, err)
		}
		pub, err := key.ECPubKey()
		if err != nil {
			return nil, err
		}
		addr, err := cfg.AddressFromPublicKey(pub.SerializeUncompressed())
		if err != nil {
			return nil, fmt.Errorf("%s: %w", cfg.ID, err)
		}
		privHex, err := master.PrivateKeyHex(cfg.DerivationPath)
		if err != nil {
			return nil, err
		}
		if err := s.SetKey(ctx, cfg.ID, privHex, password); err != nil {
			return nil, fmt.Errorf("%s: %w", cfg.ID, err)
		}
		addresses[cfg.ID] = addr
	}
	return addresses, nil
}
