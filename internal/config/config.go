package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL          string
	NATSURL              string
	NATSPositionSubject  string
	NATSETASubjectPrefix string
	LogNATSSubjects      bool
	KafkaBrokers         string
	KafkaETATopic        string
	TickInterval         time.Duration
	TripsRefreshInterval time.Duration
	PreloadHorizon       time.Duration
	GeocodeTimeout       time.Duration
	ComputeConcurrency   int
	Seed                 int64
	HTTPAddr             string
	Location             *time.Location
}

// Load reads envFiles (or .env when none are given) into the environment,
// then builds the config from environment variables.
func Load(envFiles ...string) (*Config, error) {
	// Missing .env files are fine; everything can come from the environment.
	_ = godotenv.Load(envFiles...)

	cfg := &Config{}

	// Database URL: prefer DATABASE_URL / PG_DSN, else build from PG* vars
	dsn := firstNonEmpty(
		os.Getenv("DATABASE_URL"),
		os.Getenv("PG_DSN"),
	)
	if dsn == "" {
		host := getenvDefault("PGHOST", "127.0.0.1")
		port := getenvDefault("PGPORT", "5432")
		user := getenvDefault("PGUSER", "postgres")
		pass := os.Getenv("PGPASSWORD")
		db := os.Getenv("PGDATABASE")
		if db == "" {
			return nil, errors.New("PGDATABASE or DATABASE_URL must be set")
		}
		sslmode := getenvDefault("PGSSLMODE", "disable")
		if pass != "" {
			cfg.DatabaseURL = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", urlEscape(user), urlEscape(pass), host, port, db, sslmode)
		} else {
			cfg.DatabaseURL = fmt.Sprintf("postgres://%s@%s:%s/%s?sslmode=%s", urlEscape(user), host, port, db, sslmode)
		}
	} else {
		cfg.DatabaseURL = dsn
	}

	cfg.NATSURL = getenvDefault("NATS_URL", "nats://127.0.0.1:4222")
	cfg.NATSPositionSubject = getenvDefault("NATS_POSITION_SUBJECT", "vehicles.>")
	cfg.NATSETASubjectPrefix = strings.TrimSuffix(getenvDefault("NATS_ETA_SUBJECT_PREFIX", "eta"), ".")
	cfg.LogNATSSubjects = parseBool(os.Getenv("LOG_NATS_SUBJECTS"))

	// Kafka is optional; empty KAFKA_BROKERS disables it.
	cfg.KafkaBrokers = strings.TrimSpace(os.Getenv("KAFKA_BROKERS"))
	cfg.KafkaETATopic = getenvDefault("KAFKA_ETA_TOPIC", "trip-eta")

	var err error
	if cfg.TickInterval, err = positiveDuration("TICK_INTERVAL_SEC", time.Second, 60*time.Second); err != nil {
		return nil, err
	}
	if cfg.TripsRefreshInterval, err = positiveDuration("TRIPS_REFRESH_INTERVAL_SEC", time.Second, 60*time.Second); err != nil {
		return nil, err
	}
	if cfg.GeocodeTimeout, err = positiveDuration("GEOCODE_TIMEOUT_MS", time.Millisecond, 5*time.Second); err != nil {
		return nil, err
	}

	// Preload horizon (minutes)
	if v := os.Getenv("TRIPS_PRELOAD_MINUTES"); v != "" {
		min, err := strconv.Atoi(v)
		if err != nil || min < 0 {
			return nil, fmt.Errorf("invalid TRIPS_PRELOAD_MINUTES: %q", v)
		}
		cfg.PreloadHorizon = time.Duration(min) * time.Minute
	} else {
		cfg.PreloadHorizon = 30 * time.Minute
	}

	if v := os.Getenv("COMPUTE_CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid COMPUTE_CONCURRENCY: %q", v)
		}
		cfg.ComputeConcurrency = n
	} else {
		cfg.ComputeConcurrency = 8
	}

	// Random seed; 0 seeds from the clock
	if v := os.Getenv("SEED"); v != "" {
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid SEED: %q", v)
		}
		cfg.Seed = seed
	}

	// HTTP listen address for /metrics and the ETA API. Empty disables it.
	if v, ok := os.LookupEnv("HTTP_ADDR"); ok {
		cfg.HTTPAddr = v
	} else {
		cfg.HTTPAddr = ":9102"
	}

	// Time zone
	tzName := getenvDefault("TZ", "")
	if tzName == "" {
		cfg.Location = time.Local
	} else {
		loc, err := time.LoadLocation(tzName)
		if err != nil {
			return nil, fmt.Errorf("invalid TZ: %v", err)
		}
		cfg.Location = loc
	}

	return cfg, nil
}

// RandSeed returns Seed, or a clock-derived seed when Seed is 0.
func (c *Config) RandSeed() int64 {
	if c.Seed != 0 {
		return c.Seed
	}
	return time.Now().UnixNano()
}

func positiveDuration(key string, unit, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return time.Duration(n) * unit, nil
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	default:
		return false
	}
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func urlEscape(s string) string {
	// Minimal escape for DSN user/pass with special chars
	r := strings.NewReplacer("@", "%40", ":", "%3A", "/", "%2F", "?", "%3F", "#", "%23")
	return r.Replace(s)
}
