package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
)

// Config 进程级配置，全部来自环境变量，缺省值面向本地开发。
type Config struct {
	Port            string `envconfig:"APP_PORT" default:"8080" validate:"required,numeric"`
	Env             string `envconfig:"APP_ENV" default:"dev" validate:"oneof=dev test prod"`
	StaticDir       string `envconfig:"STATIC_DIR" default:"./web" validate:"required"`
	WsReadLimit     int64  `envconfig:"WS_READ_LIMIT_BYTES" default:"65536" validate:"gt=0"`
	WsSendBuffer    int    `envconfig:"WS_SEND_BUFFER" default:"256" validate:"gt=0"`
	RateLimitPerSec int    `envconfig:"RATE_LIMIT_PER_SEC" default:"20" validate:"gt=0"`
	RateLimitBurst  int    `envconfig:"RATE_LIMIT_BURST" default:"40" validate:"gt=0"`
}

var validate = validator.New()

// Load 读取环境变量并校验，配置非法时直接报错而不是带病启动。
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate 校验配置字段约束。
func Validate(cfg Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
