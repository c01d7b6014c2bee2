package executor

import (
	"errors"
	"time"
)

var (
	ErrInvalidMaxConnections = errors.New("max connections must be positive")
	ErrInvalidConnectTimeout = errors.New("connect timeout must be positive")
)

// Pool defaults for PostgreSQL datasources. A pool_max_conns URL parameter wins over the default.
const (
	defaultMaxConnections    = int32(10)
	defaultMaxConnLifetime   = time.Hour
	defaultMaxConnIdleTime   = time.Minute * 5
	defaultHealthCheckPeriod = time.Minute
	defaultConnectTimeout    = time.Second * 5
)

// ServiceOption defines a functional option for configuring a Service.
type ServiceOption func(*Service) error

// WithMaxConnections sets the PostgreSQL pool size.
func WithMaxConnections(maxConnections int32) ServiceOption {
	return func(s *Service) error {
		if maxConnections <= 0 {
			return ErrInvalidMaxConnections
		}

		s.maxConnections = maxConnections

		return nil
	}
}

// WithConnectTimeout bounds establishing a single database connection.
func WithConnectTimeout(timeout time.Duration) ServiceOption {
	return func(s *Service) error {
		if timeout <= 0 {
			return ErrInvalidConnectTimeout
		}

		s.connectTimeout = timeout

		return nil
	}
}
