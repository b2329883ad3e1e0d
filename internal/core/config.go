package core

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config contains all of the configuration options available to any of the
// FireNET server components.
type Config struct {
	// Hostname or IP address on which the server will listen for connections.
	Hostname string `mapstructure:"hostname"`
	// Port on which the server will listen for client connections.
	Port int `mapstructure:"port"`

	// Number of worker goroutines across which connections are distributed.
	MaxThreads int `mapstructure:"max_threads"`
	// Maximum number of concurrent connections the server will allow.
	MaxConnections int `mapstructure:"max_connections"`
	// Maximum size (in bytes) of a single inbound envelope.
	MaxPacketSize int `mapstructure:"max_packet_size"`
	// Number of malformed/oversized packets tolerated before a client is disconnected.
	MaxBadPackets int `mapstructure:"max_bad_packets"`
	// Seconds a client may take to complete the TLS handshake.
	HandshakeTimeout int `mapstructure:"handshake_timeout"`
	// Seconds of inactivity after which a connection is closed by the idle sweep.
	IdleTimeout int `mapstructure:"idle_timeout"`
	// Seconds allowed for a single write to a client to flush.
	WriteTimeout int `mapstructure:"write_timeout"`

	// Full path to file to which logs will be written. Blank will write to stdout.
	LogFilePath string `mapstructure:"log_file_path"`
	// Minimum level of a log required to be written. Options: debug, info, warn, error
	LogLevel string `mapstructure:"log_level"`

	// Full (or relative to the current directory) path to the shop catalog file.
	ShopFile string `mapstructure:"shop_file"`

	TLS struct {
		// X.509 certificate presented to connecting clients.
		CertificateFile string `mapstructure:"certificate_file"`
		// Private key corresponding to certificate_file.
		KeyFile string `mapstructure:"key_file"`
	} `mapstructure:"tls"`

	Database struct {
		// Where account records live: "kv" keeps them in the key-value store
		// alongside profiles, "sql" uses the relational users table.
		AccountsEngine string `mapstructure:"accounts_engine"`

		Redis struct {
			// Connection URL of the Redis instance (e.g. redis://localhost:6379).
			URL string `mapstructure:"url"`
			// Connection pool sizing.
			PoolSize     int `mapstructure:"pool_size"`
			MinIdleConns int `mapstructure:"min_idle_conns"`
		} `mapstructure:"redis"`

		SQL struct {
			// Hostname of the Postgres instance holding the users table.
			Host string `mapstructure:"host"`
			// Port on which the Postgres instance is accepting connections.
			Port int `mapstructure:"port"`
			// Name of the database.
			Name string `mapstructure:"name"`
			// Username and password of a user with full RW privileges to ${name}.
			Username string `mapstructure:"username"`
			Password string `mapstructure:"password"`
			// Set to verify-full if the Postgres instance supports SSL.
			SSLMode string `mapstructure:"sslmode"`
		} `mapstructure:"sql"`
	} `mapstructure:"database"`

	Debugging struct {
		// Log decoded envelopes to the server log.
		PacketLoggingEnabled bool `mapstructure:"packet_logging_enabled"`
		// Log SQL statements issued against the accounts database.
		DatabaseLoggingEnabled bool `mapstructure:"database_logging_enabled"`
	} `mapstructure:"debugging"`
}

const envVarPrefix = "FIRENET"

// LoadConfig initializes Viper with the contents of the config file under configPath.
func LoadConfig(configPath string) *Config {
	viper.AddConfigPath(configPath)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetEnvPrefix(envVarPrefix)
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if errors.Is(err, viper.ConfigFileNotFoundError{}) {
			fmt.Printf("error reading config file: no config file in path %s", configPath)
		} else {
			fmt.Printf("error reading config file: %v", err)
		}
		os.Exit(1)
	}

	// This allows us to set nested yaml config options through environment
	// variables. For example, database.redis.url can be set using:
	// <envVarPrefix>_DATABASE_REDIS_URL
	for _, k := range viper.AllKeys() {
		envVar := strings.ReplaceAll(strings.ToUpper(k), ".", "_")
		if err := viper.BindEnv(k, envVarPrefix+"_"+envVar); err != nil {
			fmt.Printf("error binding %s to %s", k, envVarPrefix+"_"+envVar)
			os.Exit(1)
		}
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		fmt.Printf("error unmarshaling config object: %v", err)
		os.Exit(1)
	}
	return config
}

// ListenAddress returns the host:port pair the server should bind to.
func (c *Config) ListenAddress() string {
	return fmt.Sprintf("%s:%v", c.Hostname, c.Port)
}

const databaseURITemplate = "host=%s port=%d dbname=%s user=%s password=%s sslmode=%s"

// DatabaseURL returns a Postgres connection string generated from the
// configured sql database values.
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf(
		databaseURITemplate,
		c.Database.SQL.Host,
		c.Database.SQL.Port,
		c.Database.SQL.Name,
		c.Database.SQL.Username,
		c.Database.SQL.Password,
		c.Database.SQL.SSLMode,
	)
}

// HandshakeTimeoutDuration returns the TLS handshake timeout as a time.Duration.
func (c *Config) HandshakeTimeoutDuration() time.Duration {
	return time.Duration(c.HandshakeTimeout) * time.Second
}

// IdleTimeoutDuration returns the idle eviction threshold as a time.Duration.
func (c *Config) IdleTimeoutDuration() time.Duration {
	return time.Duration(c.IdleTimeout) * time.Second
}

// WriteTimeoutDuration returns the per-write flush deadline as a time.Duration.
func (c *Config) WriteTimeoutDuration() time.Duration {
	return time.Duration(c.WriteTimeout) * time.Second
}
