// Package config reads service settings from the environment, after loading
// an optional .env file.
package config

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverFile     = "file"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"

	AssetsLocal = "local"
	AssetsS3    = "s3"
)

type Config struct {
	Port string

	DataDriver   string
	DataFile     string
	DatabaseURL  string
	DocumentName string
	RedisAddr    string
	RedisKey     string

	AssetDriver    string
	UploadDir      string
	S3Bucket       string
	AWSRegion      string
	S3Endpoint     string
	MaxUploadBytes int64

	APIPassword     string
	APIPasswordHash string
	JWTSecret       string
	TokenTTL        time.Duration
	// TrustedProxies may name the client through X-Forwarded-For.
	TrustedProxies []netip.Prefix

	AMQPURL   string
	AMQPQueue string

	MetricsEnabled bool
	MetricsToken   string

	LogFile    string
	StaticDir  string
	CORSOrigin string
}

// AuthEnabled reports whether a shared secret guards the mutating routes.
func (c Config) AuthEnabled() bool {
	return c.APIPassword != "" || c.APIPasswordHash != ""
}

// Load reads .env when present (existing variables win) and then the
// environment. It returns every invalid setting in one error.
func Load() (Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

func FromEnv() (Config, error) {
	var errs []error

	c := Config{
		Port:         getenv("PORT", "3000"),
		DataDriver:   strings.ToLower(getenv("DATA_DRIVER", DriverFile)),
		DataFile:     getenv("DATA_FILE", "menu.json"),
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		DocumentName: getenv("DOCUMENT_NAME", "products"),
		RedisAddr:    getenv("REDIS_ADDR", "localhost:6379"),
		RedisKey:     getenv("REDIS_KEY", "menu:products"),

		AssetDriver: strings.ToLower(getenv("ASSET_DRIVER", AssetsLocal)),
		UploadDir:   getenv("UPLOAD_DIR", "uploads"),
		S3Bucket:    os.Getenv("S3_BUCKET"),
		AWSRegion:   getenv("AWS_REGION", "us-east-1"),
		S3Endpoint:  os.Getenv("S3_ENDPOINT"),

		APIPassword:     os.Getenv("API_PASSWORD"),
		APIPasswordHash: os.Getenv("API_PASSWORD_HASH"),
		JWTSecret:       os.Getenv("JWT_SECRET"),

		AMQPURL:   os.Getenv("AMQP_URL"),
		AMQPQueue: getenv("AMQP_QUEUE", "catalog.events"),

		MetricsToken: os.Getenv("METRICS_TOKEN"),

		LogFile:    os.Getenv("LOG_FILE"),
		StaticDir:  getenv("STATIC_DIR", "public"),
		CORSOrigin: getenv("CORS_ORIGIN", "*"),
	}

	var err error
	if c.MaxUploadBytes, err = getInt64("MAX_UPLOAD_BYTES", 5<<20); err != nil {
		errs = append(errs, err)
	}
	if c.TokenTTL, err = getDuration("TOKEN_TTL", 15*time.Minute); err != nil {
		errs = append(errs, err)
	}
	if c.MetricsEnabled, err = getBool("METRICS_ENABLED", true); err != nil {
		errs = append(errs, err)
	}
	if c.TrustedProxies, err = getPrefixes("TRUSTED_PROXIES"); err != nil {
		errs = append(errs, err)
	}

	switch c.DataDriver {
	case DriverFile:
	case DriverPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required when DATA_DRIVER=postgres"))
		}
	case DriverRedis:
	default:
		errs = append(errs, fmt.Errorf("DATA_DRIVER: unknown driver %q", c.DataDriver))
	}

	switch c.AssetDriver {
	case AssetsLocal:
	case AssetsS3:
		if c.S3Bucket == "" {
			errs = append(errs, errors.New("S3_BUCKET is required when ASSET_DRIVER=s3"))
		}
	default:
		errs = append(errs, fmt.Errorf("ASSET_DRIVER: unknown driver %q", c.AssetDriver))
	}

	if c.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("MAX_UPLOAD_BYTES must be positive"))
	}
	if c.JWTSecret != "" && len(c.JWTSecret) < 32 {
		errs = append(errs, errors.New("JWT_SECRET must be at least 32 chars"))
	}

	return c, errors.Join(errs...)
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getInt64(k string, def int64) (int64, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def, fmt.Errorf("%s: %w", k, err)
	}
	return n, nil
}

func getDuration(k string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def, fmt.Errorf("%s: %w", k, err)
	}
	return d, nil
}

func getBool(k string, def bool) (bool, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def, fmt.Errorf("%s: %w", k, err)
	}
	return b, nil
}

// getPrefixes reads a comma-separated list of CIDRs or bare addresses.
func getPrefixes(k string) ([]netip.Prefix, error) {
	var out []netip.Prefix
	for _, f := range strings.Split(os.Getenv(k), ",") {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		if strings.Contains(f, "/") {
			p, err := netip.ParsePrefix(f)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			out = append(out, p.Masked())
			continue
		}
		a, err := netip.ParseAddr(f)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		out = append(out, netip.PrefixFrom(a, a.BitLen()))
	}
	return out, nil
}
