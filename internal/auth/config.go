package auth

import "time"

// EnvConfig defines fields used for parsing token parameters from
// environment variables. The secret has no default: the process refuses to
// start without one, and it must never appear in logs or responses.
type EnvConfig struct {
	Secret string        `env:"TOKEN_SECRET,required"`
	TTL    time.Duration `env:"TOKEN_TTL" envDefault:"24h"`
}
