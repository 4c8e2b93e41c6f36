package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env        string `env:"ENV" env-default:"local"`
	HTTP       HTTP
	GRPC       GRPC
	Postgres   Postgres
	Redis      Redis
	Kafka      Kafka
	Tracing    Tracing
	Gateway    Gateway
	Admin      Admin
	Dispatcher Dispatcher
}

type HTTP struct {
	Port string `env:"HTTP_PORT" env-default:":8083"`
}

type GRPC struct {
	Port string `env:"GRPC_PORT" env-default:":50053"`
}

type Postgres struct {
	Host     string `env:"DB_HOST" env-default:"localhost"`
	Port     string `env:"DB_PORT" env-default:"5432"`
	User     string `env:"DB_USER" env-default:"postgres"`
	Password string `env:"DB_PASSWORD" env-default:"postgres"`
	Name     string `env:"DB_NAME" env-default:"storefrontdb"`
}

func (p Postgres) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		p.Host, p.Port, p.User, p.Password, p.Name)
}

type Redis struct {
	Host     string `env:"REDIS_HOST" env-default:"localhost"`
	Port     string `env:"REDIS_PORT" env-default:"6379"`
	Password string `env:"REDIS_PASSWORD"`
}

func (r Redis) Addr() string {
	return fmt.Sprintf("%s:%s", r.Host, r.Port)
}

type Kafka struct {
	Broker string `env:"KAFKA_BROKER" env-default:"localhost:9092"`
	Topic  string `env:"KAFKA_TOPIC" env-default:"order_events"`
}

type Tracing struct {
	JaegerEndpoint string `env:"JAEGER_ENDPOINT" env-default:"http://localhost:14268/api/traces"`
}

// Gateway holds the merchant credentials for the payment gateway. An empty
// Passphrase disables the passphrase step of the signature.
type Gateway struct {
	MerchantID  string `env:"PAYFAST_MERCHANT_ID" env-required:"true"`
	MerchantKey string `env:"PAYFAST_MERCHANT_KEY" env-required:"true"`
	Passphrase  string `env:"PAYFAST_PASSPHRASE"`
	ProcessURL  string `env:"PAYFAST_PROCESS_URL" env-default:"https://sandbox.payfast.co.za/eng/process"`
	SiteBaseURL string `env:"SITE_BASE_URL" env-default:"http://localhost:8083"`
}

type Admin struct {
	JWTSecret string `env:"ADMIN_JWT_SECRET" env-required:"true"`
}

type Dispatcher struct {
	Workers   int           `env:"DISPATCH_WORKERS" env-default:"4"`
	QueueSize int           `env:"DISPATCH_QUEUE_SIZE" env-default:"128"`
	Timeout   time.Duration `env:"DISPATCH_TIMEOUT" env-default:"5s"`
}

// Load reads the configuration from the process environment.
func Load() (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return &cfg, nil
}
