package config

import (
	"errors"
	"time"
)

const defaultTransactionTimeout = 10 * time.Second

type DbConfig struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	DbName   string `mapstructure:"db-name"`
	// Address must point at a replica set: reward commits run in transactions
	Address            string        `mapstructure:"address"`
	TransactionTimeout time.Duration `mapstructure:"transaction-timeout"`
}

func (cfg *DbConfig) Validate() error {
	if cfg.Address == "" {
		return errors.New("database address is required")
	}
	if cfg.DbName == "" {
		return errors.New("database name is required")
	}
	if cfg.Username != "" && cfg.Password == "" {
		return errors.New("database password is required when username is set")
	}
	if cfg.TransactionTimeout <= 0 {
		cfg.TransactionTimeout = defaultTransactionTimeout
	}

	return nil
}
