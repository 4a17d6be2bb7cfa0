package server

import (
	"net/http"
	"strconv"
	"time"
)

// EnvConfig defines fields used for parsing from environment variables
type EnvConfig struct {
	Host string `env:"HOST" envDefault:"0.0.0.0"`
	Port uint16 `env:"PORT" envDefault:"9000"`
}

// Option alters the http.Server built during NewServer
type Option interface {
	apply(*http.Server)
}

type optionFunc func(s *http.Server)

func (f optionFunc) apply(s *http.Server) { f(s) }

// WithEnvConfig enables processing exported EnvConfig struct to act as a source of config parameters for http.Server
func WithEnvConfig(cfg EnvConfig) Option {
	return optionFunc(func(s *http.Server) {
		s.Addr = cfg.Host + ":" + strconv.FormatUint(uint64(cfg.Port), 10)
	})
}

// ReadTimeout sets read timeout for http.Server
func ReadTimeout(d time.Duration) Option {
	return optionFunc(func(s *http.Server) {
		s.ReadTimeout = d
	})
}

// WriteTimeout sets write timeout for http.Server
func WriteTimeout(d time.Duration) Option {
	return optionFunc(func(s *http.Server) {
		s.WriteTimeout = d
	})
}
