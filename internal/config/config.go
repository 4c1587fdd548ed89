// Package config 负责加载和管理应用程序的配置
// 使用 viper 库支持 YAML 配置文件和环境变量覆盖
package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Config 是应用程序的根配置结构
// 包含所有子配置模块
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`   // 服务器配置
	Database DatabaseConfig `mapstructure:"database"` // 数据库配置
	Redis    RedisConfig    `mapstructure:"redis"`    // Redis 配置
	LLM      LLMConfig      `mapstructure:"llm"`      // LLM 服务配置
	Chat     ChatConfig     `mapstructure:"chat"`     // 对话行为配置
}

// ServerConfig 服务器相关配置
type ServerConfig struct {
	Port int      `mapstructure:"port"` // 监听端口，默认 8080
	Mode string   `mapstructure:"mode"` // 运行模式: debug / release
	CORS []string `mapstructure:"cors"` // CORS 允许的域名
}

// DatabaseConfig 数据库连接配置
// Driver 决定后端类型，支持 MySQL / Postgres / SQLite
type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"`         // 数据库类型: mysql / postgres / sqlite
	DSN          string `mapstructure:"dsn"`            // 完整连接串，非空时优先于离散字段
	Host         string `mapstructure:"host"`           // 数据库主机地址
	Port         int    `mapstructure:"port"`           // 数据库端口
	Username     string `mapstructure:"username"`       // 数据库用户名
	Password     string `mapstructure:"password"`       // 数据库密码
	Database     string `mapstructure:"database"`       // 数据库名称（sqlite 时为 .db 文件路径）
	Charset      string `mapstructure:"charset"`        // 字符集（仅 mysql）
	MaxIdleConns int    `mapstructure:"max_idle_conns"` // 最大空闲连接数
	MaxOpenConns int    `mapstructure:"max_open_conns"` // 最大打开连接数
	MaxLifetime  int    `mapstructure:"max_lifetime"`   // 连接最大生命周期（秒）
}

// RedisConfig Redis 连接配置
// Redis 仅作为窗口快照与活跃会话指针的缓存，Enabled 为 false 时
// 所有读取直接回源数据库
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`   // 是否启用 Redis 缓存
	Host     string `mapstructure:"host"`      // Redis 主机地址
	Port     int    `mapstructure:"port"`      // Redis 端口
	Username string `mapstructure:"username"`  // Redis 用户名（阿里云需要）
	Password string `mapstructure:"password"`  // Redis 密码
	DB       int    `mapstructure:"db"`        // 数据库索引 (0-15)
	PoolSize int    `mapstructure:"pool_size"` // 连接池大小
}

// LLMConfig LLM 服务配置
// Provider 在启动时决定使用哪个供应商变体，运行期不再切换
type LLMConfig struct {
	Provider           string  `mapstructure:"provider"`             // 供应商: openai / azure / qwen
	APIKey             string  `mapstructure:"api_key"`              // API Key
	Endpoint           string  `mapstructure:"endpoint"`             // API 地址覆盖（可选；azure 必填）
	AzureDeployment    string  `mapstructure:"azure_deployment"`     // Azure 部署名称
	AzureAPIVersion    string  `mapstructure:"azure_api_version"`    // Azure API 版本
	DefaultModel       string  `mapstructure:"default_model"`        // 默认模型
	DefaultTemperature float64 `mapstructure:"default_temperature"`  // 默认温度
	TimeoutSeconds     int     `mapstructure:"timeout_seconds"`      // HTTP 超时（秒）
}

// ChatConfig 对话行为配置
type ChatConfig struct {
	// WindowK 对话窗口大小
	// LLM 每次只看到最近 K 轮（K 对 human/ai 消息），默认 10
	WindowK int `mapstructure:"window_k"`

	// PromptTemplate Prompt 模板文件路径
	// 模板必须包含 {hackprompt}、{history}、{input} 三个占位符
	// 为空时使用内置默认模板
	PromptTemplate string `mapstructure:"prompt_template"`
}

// Load 从指定路径加载配置文件
// 支持环境变量覆盖配置项
// 参数:
//   - configPath: 配置文件目录路径 (如 "./configs")
//
// 返回:
//   - *Config: 配置对象
//   - error: 如果加载失败则返回错误
func Load(configPath string) (*Config, error) {
	// 创建新的 viper 实例
	v := viper.New()

	// 设置配置文件
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)

	// 启用环境变量
	v.AutomaticEnv()
	// 将环境变量中的 _ 映射到配置的 .
	// 例如: DATABASE_HOST -> database.host
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// 绑定环境变量
	bindEnvVariables(v)

	// 设置默认值（当配置文件中未指定时使用）
	setDefaults(v)

	// 读取配置文件（如果不存在则使用默认值和环境变量）
	if err := v.ReadInConfig(); err != nil {
		// 如果配置文件不存在，继续使用默认值和环境变量
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	// 将配置解析到结构体
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// bindEnvVariables 绑定环境变量到配置项
func bindEnvVariables(v *viper.Viper) {
	// 服务器配置
	v.BindEnv("server.port", "SERVER_PORT")
	v.BindEnv("server.mode", "SERVER_MODE")

	// 数据库配置
	v.BindEnv("database.driver", "DATABASE_DRIVER")
	v.BindEnv("database.dsn", "DATABASE_URL")
	v.BindEnv("database.host", "DATABASE_HOST")
	v.BindEnv("database.port", "DATABASE_PORT")
	v.BindEnv("database.username", "DATABASE_USERNAME")
	v.BindEnv("database.password", "DATABASE_PASSWORD")
	v.BindEnv("database.database", "DATABASE_NAME")

	// Redis 配置
	v.BindEnv("redis.enabled", "REDIS_ENABLED")
	v.BindEnv("redis.host", "REDIS_HOST")
	v.BindEnv("redis.port", "REDIS_PORT")
	v.BindEnv("redis.username", "REDIS_USERNAME")
	v.BindEnv("redis.password", "REDIS_PASSWORD")

	// LLM 配置
	v.BindEnv("llm.provider", "LLM_PROVIDER")
	v.BindEnv("llm.api_key", "LLM_API_KEY")
	v.BindEnv("llm.endpoint", "LLM_ENDPOINT")
	v.BindEnv("llm.azure_deployment", "AZURE_DEPLOYMENT")
	v.BindEnv("llm.azure_api_version", "AZURE_API_VERSION")

	// 对话配置
	v.BindEnv("chat.window_k", "CHAT_WINDOW_K")
	v.BindEnv("chat.prompt_template", "CHAT_PROMPT_TEMPLATE")
}

// setDefaults 设置配置项的默认值
// 当配置文件中没有指定某个值时，将使用这里设置的默认值
func setDefaults(v *viper.Viper) {
	// 服务器默认配置
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.cors", []string{"http://localhost:3000", "http://localhost:5173"})

	// 数据库默认配置
	// 默认 sqlite，保持开箱即用
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.database", "hackgpt_convo.db")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.charset", "utf8mb4")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("database.max_lifetime", 3600)

	// Redis 默认配置
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 100)

	// LLM 默认配置
	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.default_model", "gpt-4o")
	v.SetDefault("llm.default_temperature", 0.5)
	v.SetDefault("llm.timeout_seconds", 60)

	// 对话默认配置
	v.SetDefault("chat.window_k", 10)
}
