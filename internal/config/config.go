package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Message queue backends.
const (
	BackendAMQP   = "amqp"
	BackendKafka  = "kafka"
	BackendMemory = "memory"
)

type Config struct {
	ServiceName string `envconfig:"SERVICE_NAME" default:"payment"`
	Env         string `envconfig:"ENV" default:"dev"`
	Port        int    `envconfig:"SHOP_PAYMENT_PORT" default:"8080"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	LogFile     string `envconfig:"LOG_FILE"`

	UserHost string `envconfig:"USER_HOST" default:"user"`
	UserPort int    `envconfig:"USER_PORT" default:"8080"`
	CartHost string `envconfig:"CART_HOST" default:"cart"`
	CartPort int    `envconfig:"CART_PORT" default:"8080"`

	PaymentGateway string        `envconfig:"PAYMENT_GATEWAY" default:"https://paypal.com/"`
	PaymentDelayMS int           `envconfig:"PAYMENT_DELAY_MS" default:"0"`
	ClientTimeout  time.Duration `envconfig:"CLIENT_TIMEOUT" default:"0"` // zero keeps the transport defaults

	MQBackend      string   `envconfig:"MQ_BACKEND" default:"amqp"`
	AMQPHost       string   `envconfig:"AMQP_HOST" default:"rabbitmq"`
	AMQPUser       string   `envconfig:"AMQP_USER" default:"guest"`
	AMQPPassword   string   `envconfig:"AMQP_PASSWORD" default:"guest"`
	AMQPExchange   string   `envconfig:"AMQP_EXCHANGE" default:"robot-shop"`
	AMQPQueue      string   `envconfig:"AMQP_QUEUE" default:"orders"`
	AMQPRoutingKey string   `envconfig:"AMQP_ROUTING_KEY" default:"orders"`
	KafkaBrokers   []string `envconfig:"KAFKA_BROKERS" default:"localhost:9092"`
	KafkaTopic     string   `envconfig:"KAFKA_TOPIC" default:"orders"`

	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	cfg.MQBackend = strings.ToLower(strings.TrimSpace(cfg.MQBackend))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	for name, port := range map[string]int{
		"SHOP_PAYMENT_PORT": c.Port,
		"USER_PORT":         c.UserPort,
		"CART_PORT":         c.CartPort,
	} {
		if port < 1 || port > 65535 {
			errs = append(errs, fmt.Errorf("config: %s out of range: %d", name, port))
		}
	}
	if c.PaymentDelayMS < 0 {
		errs = append(errs, fmt.Errorf("config: PAYMENT_DELAY_MS must not be negative: %d", c.PaymentDelayMS))
	}
	if strings.TrimSpace(c.PaymentGateway) == "" {
		errs = append(errs, errors.New("config: PAYMENT_GATEWAY is empty"))
	}
	switch c.MQBackend {
	case BackendAMQP, BackendMemory:
	case BackendKafka:
		if len(c.KafkaBrokers) == 0 {
			errs = append(errs, errors.New("config: KAFKA_BROKERS is empty"))
		}
	default:
		errs = append(errs, fmt.Errorf("config: unknown MQ_BACKEND %q", c.MQBackend))
	}
	return errors.Join(errs...)
}

func (c *Config) Addr() string { return ":" + strconv.Itoa(c.Port) }

func (c *Config) UserAddr() string { return net.JoinHostPort(c.UserHost, strconv.Itoa(c.UserPort)) }

func (c *Config) CartAddr() string { return net.JoinHostPort(c.CartHost, strconv.Itoa(c.CartPort)) }

func (c *Config) PublishDelay() time.Duration {
	return time.Duration(c.PaymentDelayMS) * time.Millisecond
}
