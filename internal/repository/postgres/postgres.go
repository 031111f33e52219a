package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/landscape-rescale/internal/config"
	apperrors "github.com/landscape-rescale/internal/pkg/errors"
)

const applicationName = "landscape-rescale"

// DB - пул соединений к PostGIS с наблюдениями и слоями единиц
type DB struct {
	*sqlx.DB
	logger *zap.Logger
}

// New открывает пул через pgx. Параметры сессии (application_name, statement_timeout)
// задаются в конфиге соединения, а не отдельными SET.
func New(cfg *config.DatabaseConfig, logger *zap.Logger) (*DB, error) {
	connConfig, err := pgx.ParseConfig(fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
	))
	if err != nil {
		return nil, apperrors.Wrap(fmt.Errorf("parse database config: %w", err), apperrors.ErrInvalidConfig)
	}

	connConfig.RuntimeParams["application_name"] = applicationName
	if cfg.StatementTimeout > 0 {
		connConfig.RuntimeParams["statement_timeout"] = fmt.Sprintf("%d", cfg.StatementTimeout.Milliseconds())
	}

	db := sqlx.NewDb(stdlib.OpenDB(*connConfig), "pgx")

	db.SetMaxOpenConns(cfg.MaxConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, apperrors.Wrap(fmt.Errorf("ping %s:%d/%s: %w", cfg.Host, cfg.Port, cfg.DBName, err), apperrors.ErrDatabaseError)
	}

	logger.Info("PostGIS source connected",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("database", cfg.DBName),
		zap.Duration("statement_timeout", cfg.StatementTimeout),
	)

	return &DB{DB: db, logger: logger}, nil
}

func (db *DB) Close() error {
	db.logger.Info("Closing PostGIS source connection")
	return db.DB.Close()
}

func (db *DB) Health(ctx context.Context) error {
	return db.PingContext(ctx)
}

// NewDBForTest оборачивает готовое соединение (testhelpers)
func NewDBForTest(sqlxDB *sqlx.DB, logger *zap.Logger) *DB {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DB{DB: sqlxDB, logger: logger}
}

// quoteIdent экранирует идентификатор из конфигурации; "schema.table" делится по точке
func quoteIdent(name string) string {
	return pgx.Identifier(strings.Split(name, ".")).Sanitize()
}
