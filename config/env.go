package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// ParseEnv 从环境变量加载配置
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// ServerConfig 后端服务（行存储 + 实时频道）配置，-addr / -db 参数可覆盖
type ServerConfig struct {
	Addr    string `env:"PIXELROOM_ADDR" envDefault:":8080"`
	DBPath  string `env:"PIXELROOM_DB" envDefault:"pixelroom.db"`
	LogFile string `env:"PIXELROOM_LOG" envDefault:"server.log"`
	// 为空时不校验 apikey
	APIKey string `env:"PIXELROOM_API_KEY"`
}

// ClientConfig 终端客户端配置
type ClientConfig struct {
	URL     string `env:"PIXELROOM_URL"`
	APIKey  string `env:"PIXELROOM_API_KEY"`
	LogFile string `env:"PIXELROOM_CLIENT_LOG" envDefault:"client.log"`
	AppName string `env:"PIXELROOM_PROFILE" envDefault:"pixelroom"`
}

// Missing 返回缺失的必填项。缺失只记录启动错误，客户端照常渲染
func (c ClientConfig) Missing() []string {
	var missing []string
	if c.URL == "" {
		missing = append(missing, "PIXELROOM_URL")
	}
	if c.APIKey == "" {
		missing = append(missing, "PIXELROOM_API_KEY")
	}
	return missing
}
