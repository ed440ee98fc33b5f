// Package conn provides shared database connection pools.
package conn

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Option defines connection options for PostgreSQL.
type Option struct {
	// ConnString is the full postgres DSN or URL.
	ConnString string
	// Config overrides the default gorm configuration.
	Config *gorm.Config
}

// Client wraps a PostgreSQL connection pool.
type Client struct {
	db *gorm.DB
}

// New creates a PostgreSQL client from the provided options.
func New(option Option) (*Client, error) {
	if option.ConnString == "" {
		return nil, fmt.Errorf("postgres connection string is empty")
	}

	config := option.Config
	if config == nil {
		config = &gorm.Config{}
	}

	db, err := gorm.Open(postgres.Open(option.ConnString), config)
	if err != nil {
		return nil, err
	}

	return &Client{db: db}, nil
}

// DB returns the underlying gorm.DB instance.
func (c *Client) DB() *gorm.DB {
	if c == nil {
		return nil
	}
	return c.db
}

// Close closes the underlying connection pool.
func (c *Client) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
