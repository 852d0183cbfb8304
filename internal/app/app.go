// Package app 按配置组装客户端与各服务，供 wallet-server 与 wallet-cli 共用
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"wallet-custody/internal/chain"
	"wallet-custody/internal/chain/evm"
	"wallet-custody/internal/chain/tron"
	"wallet-custody/internal/dispatcher"
	"wallet-custody/internal/event"
	"wallet-custody/internal/fee"
	"wallet-custody/internal/hardware"
	"wallet-custody/internal/hardware/ledger"
	"wallet-custody/internal/keystore"
	"wallet-custody/internal/model"
	"wallet-custody/internal/mq"
	"wallet-custody/internal/reconcile"
	"wallet-custody/internal/repository"
	"wallet-custody/internal/vault"
	"wallet-custody/pkg/config"
	"wallet-custody/pkg/crypto_util"
	"wallet-custody/pkg/database"
	"wallet-custody/pkg/logger"
	"wallet-custody/pkg/utils/lock"
)

type App struct {
	Config     *config.Config
	Registry   *chain.Registry
	Vault      *vault.Service
	Devices    *hardware.Manager
	Records    repository.TxRecordRepository
	Dispatcher *dispatcher.Dispatcher
	Reconciler *reconcile.Reconciler

	rdb     *redis.Client
	closers []func() error
}

// New 组装全部依赖。prompter 用于无线发现时让用户确认设备，可以为 nil
func New(ctx context.Context, cfg *config.Config, prompter hardware.Prompter) (_ *App, err error) {
	a := &App{Config: cfg}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	a.Registry, err = enabledRegistry(cfg)
	if err != nil {
		return nil, err
	}

	store, locks, err := a.keyStore(ctx)
	if err != nil {
		return nil, err
	}
	a.Vault = vault.NewService(store, locks, a.Registry, crypto_util.NewPassphraseCipher(cfg.Vault.ScryptN))

	a.Devices = hardware.NewManager(hardware.NewHIDBus(), hardware.UnsupportedRadio{}, prompter,
		hardware.WithDiscoveryTimeout(cfg.Hardware.DiscoveryTimeout),
		hardware.WithUSBOpenRetries(cfg.Hardware.UsbOpenRetries),
	)

	strategies, err := a.strategies(ctx)
	if err != nil {
		return nil, err
	}

	if a.Records, err = a.records(); err != nil {
		return nil, err
	}

	producer, err := a.producer(ctx)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, producer.Close)

	a.Dispatcher, err = dispatcher.New(a.Registry, strategies, a.Records, event.NewPublisher(producer, cfg.MQ.Topic), a.Devices)
	if err != nil {
		return nil, err
	}
	a.Reconciler = reconcile.NewReconciler(a.Records, a.Dispatcher.Trackers(), cfg.Reconcile.Confirmations, cfg.Reconcile.Interval,
		reconcile.WithLocker(locks))
	return a, nil
}

// enabledRegistry 只注册配置中启用的链，配置键为小写链符号
func enabledRegistry(cfg *config.Config) (*chain.Registry, error) {
	var enabled []chain.Config
	for _, c := range chain.DefaultRegistry().All() {
		cc, ok := cfg.Chains[strings.ToLower(string(c.ID))]
		if ok && !cc.Enabled {
			continue
		}
		enabled = append(enabled, c)
	}
	if len(enabled) == 0 {
		return nil, errors.New("app: no chain enabled")
	}
	return chain.NewRegistry(enabled...), nil
}

func (a *App) redisClient(ctx context.Context) (*redis.Client, error) {
	if a.rdb != nil {
		return a.rdb, nil
	}
	rc := a.Config.Redis
	rdb, err := database.ConnectRedis(ctx, rc.Addr, rc.Password, rc.DB)
	if err != nil {
		return nil, err
	}
	a.rdb = rdb
	a.closers = append(a.closers, rdb.Close)
	return rdb, nil
}

func (a *App) keyStore(ctx context.Context) (keystore.Store, lock.DistributedLock, error) {
	switch a.Config.App.KeyStore {
	case "", "memory":
		return keystore.NewMemory(), lock.NewLocalLock(), nil
	case "file":
		if a.Config.App.KeyStoreSecret == "" {
			return nil, nil, errors.New("app: file key store requires app.key_store_secret")
		}
		return keystore.NewFile(a.Config.App.KeyStorePath, a.Config.App.KeyStoreSecret, a.Config.Vault.ScryptN), lock.NewLocalLock(), nil
	case "redis":
		rdb, err := a.redisClient(ctx)
		if err != nil {
			return nil, nil, err
		}
		return keystore.NewRedis(rdb), lock.NewRedisLock(rdb), nil
	default:
		return nil, nil, fmt.Errorf("app: unknown key store %q", a.Config.App.KeyStore)
	}
}

func (a *App) strategies(ctx context.Context) (map[chain.ChainID]dispatcher.Strategy, error) {
	out := make(map[chain.ChainID]dispatcher.Strategy)
	for _, cfg := range a.Registry.All() {
		if !cfg.UsesGasPriceFeeModel {
			out[cfg.ID] = a.tronStrategy(cfg)
			continue
		}
		url := a.Config.Chains[strings.ToLower(string(cfg.ID))].RpcUrl
		if url == "" {
			return nil, fmt.Errorf("app: chains.%s.rpc_url is empty", strings.ToLower(string(cfg.ID)))
		}
		client, err := evm.Dial(ctx, url)
		if err != nil {
			return nil, fmt.Errorf("app: dial %s: %w", cfg.ID, err)
		}
		a.closers = append(a.closers, func() error { client.Close(); return nil })

		est := evm.NewEstimator(cfg, client)
		out[cfg.ID] = dispatcher.Strategy{
			Estimator: est,
			Builder:   evm.NewBuilder(cfg, client, est, a.Vault, a.Devices, ledger.BlindResolver{}),
			Tracker:   evm.NewTracker(client),
		}
	}
	return out, nil
}

func (a *App) tronStrategy(cfg chain.Config) dispatcher.Strategy {
	tc := a.Config.Tron
	client := tron.NewClient(tc.ApiUrl, tc.ApiKey, tc.RequestsPerSecond)
	prices := fee.CreditPrices{
		Bandwidth:  tc.BandwidthPrice,
		Energy:     tc.EnergyPrice,
		Activation: tc.ActivationFee,
	}
	est := tron.NewEstimator(cfg, client, prices, tc.FeeLimit)
	return dispatcher.Strategy{
		Estimator: est,
		Builder:   tron.NewBuilder(cfg, client, est, a.Vault, a.Devices),
		Tracker:   tron.NewTracker(client),
	}
}

func (a *App) records() (repository.TxRecordRepository, error) {
	switch a.Config.App.Records {
	case "", "memory":
		return repository.NewMemory(), nil
	case "postgres":
		db, err := database.ConnectPostgres(a.Config.DB.DSN(), model.AllModels()...)
		if err != nil {
			return nil, err
		}
		if sqlDB, err := db.DB(); err == nil {
			a.closers = append(a.closers, sqlDB.Close)
		}
		return repository.NewGormRepository(db), nil
	default:
		return nil, fmt.Errorf("app: unknown records backend %q", a.Config.App.Records)
	}
}

func (a *App) producer(ctx context.Context) (mq.Producer, error) {
	switch a.Config.MQ.Type {
	case "", "none":
		return mq.Nop{}, nil
	case "redis":
		logger.Info("使用 Redis Streams 作为消息队列...")
		rdb, err := a.redisClient(ctx)
		if err != nil {
			return nil, err
		}
		return mq.NewRedisProducer(rdb), nil
	case "kafka":
		logger.Info("使用 Kafka 作为消息队列...", zap.Strings("brokers", a.Config.Kafka.Brokers))
		return mq.NewKafkaProducer(a.Config.Kafka.Brokers), nil
	default:
		return nil, fmt.Errorf("app: unknown mq type %q", a.Config.MQ.Type)
	}
}

// Close 逆序释放资源
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
