package neo4jdb

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/jasonroberts79/cyberpunk-looter/internal/knowledge/conn"
	"github.com/jasonroberts79/cyberpunk-looter/internal/platform/logger"
)

// Client wraps the Neo4j driver behind the conn.Session surface so the rest
// of the engine never sees driver types.
type Client struct {
	Driver   neo4j.DriverWithContext
	Database string
	log      *logger.Logger
}

var _ conn.Session = (*Client)(nil)

type Config struct {
	URI      string
	User     string
	Password string
	Database string
	Timeout  time.Duration
	MaxPool  int
}

func ConfigFromEnv() Config {
	cfg := Config{
		URI:      strings.TrimSpace(os.Getenv("NEO4J_URI")),
		User:     strings.TrimSpace(os.Getenv("NEO4J_USERNAME")),
		Password: strings.TrimSpace(os.Getenv("NEO4J_PASSWORD")),
		Database: strings.TrimSpace(os.Getenv("NEO4J_DATABASE")),
		Timeout:  10 * time.Second,
		MaxPool:  50,
	}
	if cfg.User == "" {
		cfg.User = "neo4j"
	}
	if v := strings.TrimSpace(os.Getenv("NEO4J_TIMEOUT_SECONDS")); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			cfg.Timeout = time.Duration(parsed) * time.Second
		}
	}
	if v := strings.TrimSpace(os.Getenv("NEO4J_MAX_POOL_SIZE")); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			cfg.MaxPool = parsed
		}
	}
	return cfg
}

func New(ctx context.Context, cfg Config, log *logger.Logger) (*Client, error) {
	if log == nil {
		return nil, fmt.Errorf("neo4jdb: logger required")
	}
	if cfg.URI == "" {
		return nil, fmt.Errorf("neo4jdb: missing NEO4J_URI")
	}

	auth := neo4j.BasicAuth(cfg.User, cfg.Password, "")
	driver, err := neo4j.NewDriverWithContext(cfg.URI, auth, func(c *neo4j.Config) {
		if cfg.MaxPool > 0 {
			c.MaxConnectionPoolSize = cfg.MaxPool
		}
		if cfg.Timeout > 0 {
			c.SocketConnectTimeout = cfg.Timeout
		}
	})
	if err != nil {
		return nil, fmt.Errorf("neo4jdb: init driver: %w", err)
	}

	vctx := ctx
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		vctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}
	if err := driver.VerifyConnectivity(vctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("neo4jdb: verify connectivity: %w", err)
	}

	return &Client{
		Driver:   driver,
		Database: cfg.Database,
		log:      log.With("client", "Neo4jDB"),
	}, nil
}

// Dialer adapts New into the connection manager's Dialer shape.
func Dialer(cfg Config, log *logger.Logger) conn.Dialer {
	return func(ctx context.Context) (conn.Session, error) {
		return New(ctx, cfg, log)
	}
}

// Run executes one parameterized statement and materializes every record as
// a map keyed by its return aliases.
func (c *Client) Run(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error) {
	if c == nil || c.Driver == nil {
		return nil, fmt.Errorf("neo4jdb: client closed")
	}
	session := c.Driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: c.Database,
	})
	defer session.Close(ctx)

	res, err := session.Run(ctx, cypher, params)
	if err != nil {
		return nil, err
	}
	records, err := res.Collect(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, 0, len(records))
	for _, rec := range records {
		row := make(map[string]any, len(rec.Keys))
		for _, key := range rec.Keys {
			v, _ := rec.Get(key)
			row[key] = v
		}
		out = append(out, row)
	}
	return out, nil
}

// RunBatch executes the statements inside one managed write transaction, so
// a source's delete/insert/link sequence commits or rolls back as a unit.
func (c *Client) RunBatch(ctx context.Context, statements []conn.Statement) error {
	if c == nil || c.Driver == nil {
		return fmt.Errorf("neo4jdb: client closed")
	}
	if len(statements) == 0 {
		return nil
	}
	session := c.Driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: c.Database,
	})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		for _, st := range statements {
			res, err := tx.Run(ctx, st.Cypher, st.Params)
			if err != nil {
				return nil, err
			}
			if _, err := res.Consume(ctx); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	return err
}

// Ping is a trivial round trip; VerifyConnectivity alone does not prove the
// server is serving queries.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.Run(ctx, "RETURN 1 AS ok", nil)
	return err
}

func (c *Client) Close(ctx context.Context) error {
	if c == nil || c.Driver == nil {
		return nil
	}
	err := c.Driver.Close(ctx)
	c.Driver = nil
	return err
}
