package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/ssh-subscription/internal/cache"
	"github.com/magabrotheeeer/ssh-subscription/internal/catalog"
	"github.com/magabrotheeeer/ssh-subscription/internal/config"
	"github.com/magabrotheeeer/ssh-subscription/internal/http/handlers/health"
	"github.com/magabrotheeeer/ssh-subscription/internal/lib/jwt"
	"github.com/magabrotheeeer/ssh-subscription/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/ssh-subscription/internal/lib/sl"
	"github.com/magabrotheeeer/ssh-subscription/internal/paymentprovider"
	"github.com/magabrotheeeer/ssh-subscription/internal/provisioner"
	"github.com/magabrotheeeer/ssh-subscription/internal/services/account"
	"github.com/magabrotheeeer/ssh-subscription/internal/services/order"
	"github.com/magabrotheeeer/ssh-subscription/internal/services/sweeper"
	"github.com/magabrotheeeer/ssh-subscription/internal/storage"
	"github.com/magabrotheeeer/ssh-subscription/internal/storage/filestore"
	"github.com/magabrotheeeer/ssh-subscription/internal/storage/repository"
	"github.com/magabrotheeeer/ssh-subscription/internal/storage/sqlstore"
)

// Deps собранные компоненты движка. Их используют и HTTP-сервер, и CLI оператора.
type Deps struct {
	Repo     *repository.Storage
	Catalog  *catalog.Catalog
	Cache    *cache.Cache // nil, если redis не настроен
	Gateway  *paymentprovider.Client
	Orders   *order.Service
	Accounts *account.Service
	Sweeper  *sweeper.Sweeper
	Tokens   *jwt.MakerImpl
	Checks   map[string]health.Pinger

	closers []func() error
	log     *slog.Logger
}

// NewDeps открывает хранилище, кэш и брокер и собирает сервисы.
// Redis и RabbitMQ необязательны: без адреса компонент просто не подключается.
func NewDeps(ctx context.Context, cfg *config.Config, log *slog.Logger) (deps *Deps, err error) {
	const op = "engine.NewDeps"
	d := &Deps{
		Checks: make(map[string]health.Pinger),
		log:    log,
	}
	defer func() {
		if err != nil {
			d.Close()
		}
	}()

	backend, err := d.openBackend(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	d.Repo = repository.New(backend, log, cfg.Storage.MaxRetries)
	if err = d.Repo.SeedCatalog(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	d.Catalog, err = catalog.New(ctx, d.Repo, log)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	// Интерфейсные переменные остаются nil, если компонент не подключен.
	var (
		orderCache order.Cache
		lease      sweeper.Lease
		publisher  *rabbitmq.Publisher
	)
	if cfg.RedisConnection.Addr != "" {
		d.Cache, err = cache.InitServer(ctx, cfg.RedisConnection)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		d.closers = append(d.closers, d.Cache.Close)
		d.Checks["redis"] = d.Cache
		orderCache, lease = d.Cache, d.Cache
	} else {
		log.Warn("redis is not configured, locks are process-local")
	}

	if cfg.RabbitMQURL != "" {
		publisher, err = d.openPublisher(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	} else {
		log.Warn("rabbitmq is not configured, access events are not published")
	}

	var (
		orderPub   order.Publisher
		accountPub account.Publisher
		sweepPub   sweeper.Publisher
	)
	if publisher != nil {
		orderPub, accountPub, sweepPub = publisher, publisher, publisher
	}

	prov := provisioner.NewSystem(cfg.Provisioner, provisioner.ExecRunner{}, log)
	d.Gateway = paymentprovider.NewClient(cfg.Gateway, log)
	d.Orders = order.NewService(d.Repo, d.Gateway, d.Catalog, orderCache, orderPub, cfg.Order, log)
	d.Accounts = account.NewService(d.Repo, prov, accountPub, cfg.ServerInfo, log)
	d.Sweeper = sweeper.NewSweeper(d.Repo, prov, lease, sweepPub, cfg.Sweep, log)
	d.Tokens = jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL)

	return d, nil
}

func (d *Deps) openBackend(ctx context.Context, cfg *config.Config) (storage.Backend, error) {
	switch cfg.Storage.Driver {
	case sqlstore.DialectPostgres, sqlstore.DialectSQLite:
		store, err := sqlstore.Open(ctx, cfg.Storage.Driver, cfg.Storage.DSN, d.log)
		if err != nil {
			return nil, err
		}
		d.closers = append(d.closers, store.Close)
		d.Checks["database"] = store
		d.log.Info("using sql storage", slog.String("driver", cfg.Storage.Driver))
		return store, nil
	default:
		d.log.Info("using file storage", slog.String("path", cfg.Storage.Path))
		return filestore.New(cfg.Storage.Path, d.log), nil
	}
}

func (d *Deps) openPublisher(ctx context.Context, cfg *config.Config) (*rabbitmq.Publisher, error) {
	conn, err := rabbitmq.Connect(ctx, cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		return nil, err
	}
	// Очереди уведомителя объявляются и здесь, чтобы события не терялись,
	// пока notifier еще не запущен.
	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetNotificationQueues())
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	d.closers = append(d.closers, ch.Close, conn.Close)
	d.Checks["rabbitmq"] = brokerCheck{conn: conn}
	return rabbitmq.NewPublisher(ch), nil
}

// Close освобождает подключения в порядке, обратном открытию.
func (d *Deps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil && !errors.Is(err, amqp.ErrClosed) {
			d.log.Error("failed to close dependency", sl.Err(err))
		}
	}
	d.closers = nil
}

type brokerCheck struct {
	conn *amqp.Connection
}

func (b brokerCheck) Ping(context.Context) error {
	if b.conn.IsClosed() {
		return amqp.ErrClosed
	}
	return nil
}
