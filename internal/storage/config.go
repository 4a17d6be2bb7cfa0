package storage

import (
	"strconv"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"golang.org/x/crypto/bcrypt"
)

// Config defines fields used for connecting to the database and hashing
// credentials. BcryptCost trades login/registration latency for hash
// strength.
type Config struct {
	User       string `env:"DB_USER" envDefault:"postgres"`
	Password   string `env:"DB_PASSWORD" envDefault:"postgres"`
	Host       string `env:"DB_HOST" envDefault:"localhost"`
	Port       uint16 `env:"DB_PORT" envDefault:"5432"`
	DBName     string `env:"DB_NAME" envDefault:"messagely"`
	BcryptCost int    `env:"BCRYPT_COST" envDefault:"10"`
}

// DSN builds a keyword/value connection string from Config fields
func (c Config) DSN() string {
	return "user=" + c.User +
		" password=" + c.Password +
		" host=" + c.Host +
		" port=" + strconv.FormatUint(uint64(c.Port), 10) +
		" dbname=" + c.DBName +
		" sslmode=disable"
}

// TestConfig points at the database used by DB-backed tests. The minimal
// bcrypt cost keeps fixture registration fast.
var TestConfig = Config{
	User:       "postgres",
	Password:   "postgres",
	Host:       "localhost",
	Port:       5432,
	DBName:     "messagely_test",
	BcryptCost: bcrypt.MinCost,
}

// Option alters the default configuration of the pgxpool.Config used during new Store construction
type Option interface {
	apply(*pgxpool.Config)
}

type optionFunc func(c *pgxpool.Config)

func (f optionFunc) apply(c *pgxpool.Config) { f(c) }

// ConnectionTimeout sets timeout for connection to be established
func ConnectionTimeout(d time.Duration) Option {
	return optionFunc(func(c *pgxpool.Config) {
		c.ConnConfig.ConnectTimeout = d
	})
}
