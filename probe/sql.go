package probe

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/jonwraymond/healops/health"
)

// DB is the subset of *sql.DB used by SQLProbe.
type DB interface {
	PingContext(ctx context.Context) error
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// SQLConfig configures a MySQL probe.
type SQLConfig struct {
	// Name is the stable dependency name.
	Name string

	Host     string
	Port     int
	User     string
	Password string
	Database string

	// Timeout bounds connect, ping and query.
	// Default: 10 seconds
	Timeout time.Duration

	// Open returns the database handle for a DSN.
	// Default: sql.Open with the mysql driver.
	Open func(dsn string) (DB, error)
}

// DSN returns the go-sql-driver/mysql data source name.
func (c SQLConfig) DSN() string {
	mc := mysql.NewConfig()
	mc.User = c.User
	mc.Passwd = c.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
	mc.DBName = c.Database
	mc.Timeout = c.Timeout
	mc.ReadTimeout = c.Timeout
	mc.WriteTimeout = c.Timeout
	return mc.FormatDSN()
}

// SQLProbe checks a MySQL database with a ping followed by SELECT 1.
type SQLProbe struct {
	config SQLConfig

	mu sync.Mutex
	db DB
}

// NewSQLProbe creates a MySQL probe. The connection pool is opened lazily
// on the first probe.
func NewSQLProbe(config SQLConfig) *SQLProbe {
	if config.Host == "" {
		config.Host = "localhost"
	}
	if config.Port == 0 {
		config.Port = 3306
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	if config.Open == nil {
		config.Open = func(dsn string) (DB, error) {
			return sql.Open("mysql", dsn)
		}
	}
	return &SQLProbe{config: config}
}

// Name returns the dependency name.
func (p *SQLProbe) Name() string { return p.config.Name }

// Kind returns health.KindDatabase.
func (p *SQLProbe) Kind() health.Kind { return health.KindDatabase }

// Probe pings the database and runs a trivial query.
func (p *SQLProbe) Probe(ctx context.Context) health.Check {
	start := time.Now()

	err := withTimeout(ctx, p.config.Timeout, func(ctx context.Context) error {
		db, err := p.handle()
		if err != nil {
			return err
		}
		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("ping: %w", err)
		}
		if _, err := db.ExecContext(ctx, "SELECT 1"); err != nil {
			return fmt.Errorf("select 1: %w", err)
		}
		return nil
	})

	latency := time.Since(start)
	if err != nil {
		return health.Unhealthy("Failed to connect to MySQL database", err).WithLatency(latency)
	}
	return health.Healthy(fmt.Sprintf("Connected to %s:%d/%s",
		p.config.Host, p.config.Port, p.config.Database)).WithLatency(latency)
}

// Close releases the connection pool if one was opened.
func (p *SQLProbe) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if c, ok := p.db.(interface{ Close() error }); ok {
		p.db = nil
		return c.Close()
	}
	return nil
}

func (p *SQLProbe) handle() (DB, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.db != nil {
		return p.db, nil
	}
	db, err := p.config.Open(p.config.DSN())
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	p.db = db
	return db, nil
}

var _ health.Probe = (*SQLProbe)(nil)
