// internal/storage/postgres/postgres.go
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/rovshanmuradov/launchpad-engine/internal/storage"
	"github.com/rovshanmuradov/launchpad-engine/internal/storage/models"
)

// ErrDuplicateRequest reports a consumed-request insert that hit the unique
// index, i.e. a replayed request id.
var ErrDuplicateRequest = errors.New("postgres: request id already consumed")

// gormLogger adapts zap to gorm's logger.Interface.
type gormLogger struct {
	zapLogger *zap.Logger
	logLevel  logger.LogLevel
}

func newGormLogger(zapLogger *zap.Logger) logger.Interface {
	return &gormLogger{
		zapLogger: zapLogger,
		logLevel:  logger.Warn,
	}
}

func (l *gormLogger) LogMode(level logger.LogLevel) logger.Interface {
	newLogger := *l
	newLogger.logLevel = level
	return &newLogger
}

func (l *gormLogger) Info(_ context.Context, msg string, data ...interface{}) {
	if l.logLevel >= logger.Info {
		l.zapLogger.Sugar().Infof(msg, data...)
	}
}

func (l *gormLogger) Warn(_ context.Context, msg string, data ...interface{}) {
	if l.logLevel >= logger.Warn {
		l.zapLogger.Sugar().Warnf(msg, data...)
	}
}

func (l *gormLogger) Error(_ context.Context, msg string, data ...interface{}) {
	if l.logLevel >= logger.Error {
		l.zapLogger.Sugar().Errorf(msg, data...)
	}
}

func (l *gormLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.logLevel <= logger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()

	fields := []zap.Field{
		zap.Duration("elapsed", elapsed),
		zap.String("sql", sql),
		zap.Int64("rows", rows),
	}

	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		l.zapLogger.Error("trace", append(fields, zap.Error(err))...)
		return
	}

	if l.logLevel >= logger.Info {
		l.zapLogger.Info("trace", fields...)
	}
}

// postgresStorage implements the Storage interface on gorm.
type postgresStorage struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewStorage(dsn string, zapLogger *zap.Logger) (storage.Storage, error) {
	gormLogger := newGormLogger(zapLogger.Named("gorm"))

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormLogger,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
		DisableForeignKeyConstraintWhenMigrating: true,
		SkipDefaultTransaction:                   true,
		TranslateError:                           true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return &postgresStorage{
		db:     db,
		logger: zapLogger,
	}, nil
}

// RunMigrations applies the schema under an advisory lock so concurrent
// engine instances do not race the migration.
func (p *postgresStorage) RunMigrations() error {
	var lockObtained bool
	err := p.db.Raw("SELECT pg_try_advisory_lock(214)").Scan(&lockObtained).Error
	if err != nil {
		return fmt.Errorf("failed to acquire migration lock: %w", err)
	}
	if !lockObtained {
		return fmt.Errorf("another migration is in progress")
	}
	defer p.db.Exec("SELECT pg_advisory_unlock(214)")

	err = p.db.AutoMigrate(
		&models.Launch{},
		&models.Trade{},
		&models.ConsumedRequest{},
		&models.VestingClaim{},
	)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

func (p *postgresStorage) SaveLaunch(ctx context.Context, launch *models.Launch) error {
	if err := p.db.WithContext(ctx).Create(launch).Error; err != nil {
		return fmt.Errorf("failed to save launch: %w", err)
	}
	return nil
}

func (p *postgresStorage) UpdateLaunchStatus(ctx context.Context, asset string, status string) error {
	res := p.db.WithContext(ctx).
		Model(&models.Launch{}).
		Where("asset = ?", asset).
		Update("status", status)
	if res.Error != nil {
		return fmt.Errorf("failed to update launch status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("launch not found: %s", asset)
	}
	return nil
}

func (p *postgresStorage) GetLaunch(ctx context.Context, asset string) (*models.Launch, error) {
	var launch models.Launch
	err := p.db.WithContext(ctx).Where("asset = ?", asset).First(&launch).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get launch: %w", err)
	}
	return &launch, nil
}

func (p *postgresStorage) SaveTrade(ctx context.Context, trade *models.Trade) error {
	if err := p.db.WithContext(ctx).Create(trade).Error; err != nil {
		return fmt.Errorf("failed to save trade: %w", err)
	}
	return nil
}

func (p *postgresStorage) ListTrades(ctx context.Context, asset string, limit, offset int) ([]*models.Trade, error) {
	var trades []*models.Trade
	err := p.db.WithContext(ctx).
		Where("asset = ?", asset).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&trades).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list trades: %w", err)
	}
	return trades, nil
}

func (p *postgresStorage) ConsumeRequest(ctx context.Context, requestID string) error {
	err := p.db.WithContext(ctx).Create(&models.ConsumedRequest{RequestID: requestID}).Error
	if err != nil {
		if isDuplicate(err) {
			return ErrDuplicateRequest
		}
		return fmt.Errorf("failed to consume request: %w", err)
	}
	return nil
}

// isDuplicate matches a unique-index violation whether gorm translated it
// or the raw driver error surfaced.
func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (p *postgresStorage) ListConsumedRequests(ctx context.Context) ([]string, error) {
	var ids []string
	err := p.db.WithContext(ctx).
		Model(&models.ConsumedRequest{}).
		Pluck("request_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list consumed requests: %w", err)
	}
	return ids, nil
}

func (p *postgresStorage) SaveVestingClaim(ctx context.Context, claim *models.VestingClaim) error {
	if err := p.db.WithContext(ctx).Create(claim).Error; err != nil {
		return fmt.Errorf("failed to save vesting claim: %w", err)
	}
	return nil
}
