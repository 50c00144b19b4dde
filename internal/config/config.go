package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Database    DatabaseConfig    `mapstructure:"database"`
	Server      ServerConfig      `mapstructure:"server"`
	Referral    ReferralConfig    `mapstructure:"referral"`
	Staking     StakingConfig     `mapstructure:"staking"`
	EVM         EVMConfig         `mapstructure:"evm"`
	Solana      SolanaConfig      `mapstructure:"solana"`
	Leaderboard LeaderboardConfig `mapstructure:"leaderboard"`
	Snapshot    SnapshotConfig    `mapstructure:"snapshot"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"dbname"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
}

func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		d.User, d.Password, d.Host, d.Port, d.DBName)
}

type ServerConfig struct {
	Port         int `mapstructure:"port"`
	ReadTimeout  int `mapstructure:"read_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
}

// SpecialCode 特殊推荐码，不属于任何地址
type SpecialCode struct {
	MinSwap     float64 `mapstructure:"min_swap"`
	BonusPoints float64 `mapstructure:"bonus_points"`
	Description string  `mapstructure:"description"`
}

type ReferralConfig struct {
	SignupBonus     float64 `mapstructure:"signup_bonus"`
	RefereeBonus    float64 `mapstructure:"referee_bonus"`
	DailyBonusRate  float64 `mapstructure:"daily_bonus_rate"`
	MinSwapAmount   float64 `mapstructure:"min_swap_amount"`
	BaseRolls       int     `mapstructure:"base_rolls"`
	BonusRolls      int     `mapstructure:"bonus_rolls"`
	UnlockThreshold int     `mapstructure:"unlock_threshold"`

	// 生成唯一推荐码的最大尝试次数
	MaxCodeAttempts int `mapstructure:"max_code_attempts"`
	// common 数字池拒绝采样的最大尝试次数
	MaxCommonAttempts int `mapstructure:"max_common_attempts"`

	// key 为大写的特殊码
	SpecialCodes map[string]SpecialCode `mapstructure:"special_codes"`
}

// Special 按大小写不敏感方式查找特殊码
func (r *ReferralConfig) Special(code string) (SpecialCode, bool) {
	sc, ok := r.SpecialCodes[strings.ToUpper(strings.TrimSpace(code))]
	return sc, ok
}

type TokenConfig struct {
	Symbol string `mapstructure:"symbol"`
	// evm 或 solana
	Namespace string `mapstructure:"namespace"`
	// ERC20 合约地址或 SPL mint
	Address         string `mapstructure:"address"`
	StakingContract string `mapstructure:"staking_contract"`
	Decimals        int    `mapstructure:"decimals"`
}

type StakingConfig struct {
	Tokens []TokenConfig `mapstructure:"tokens"`
	// 质押合约中的 storedPoints 放大了 10^PointsScaleExp
	PointsScaleExp int `mapstructure:"points_scale_exp"`
}

// Token 返回指定符号的代币配置
func (s *StakingConfig) Token(symbol string) (*TokenConfig, bool) {
	for i := range s.Tokens {
		if strings.EqualFold(s.Tokens[i].Symbol, symbol) {
			return &s.Tokens[i], true
		}
	}
	return nil, false
}

// StakingTokens 返回配置了质押合约的代币
func (s *StakingConfig) StakingTokens() []TokenConfig {
	var tokens []TokenConfig
	for _, t := range s.Tokens {
		if t.StakingContract != "" {
			tokens = append(tokens, t)
		}
	}
	return tokens
}

// TokensFor 返回指定命名空间下的代币
func (s *StakingConfig) TokensFor(namespace string) []TokenConfig {
	var tokens []TokenConfig
	for _, t := range s.Tokens {
		if strings.EqualFold(t.Namespace, namespace) {
			tokens = append(tokens, t)
		}
	}
	return tokens
}

type EVMConfig struct {
	ID                 string  `mapstructure:"id"`
	RPCURL             string  `mapstructure:"rpc_url"`
	ConfirmationBlocks int     `mapstructure:"confirmation_blocks"`
	StartBlock         int64   `mapstructure:"start_block"`
	BatchSize          int     `mapstructure:"batch_size"`
	PullInterval       int     `mapstructure:"pull_interval"`
	RequestsPerSecond  float64 `mapstructure:"requests_per_second"`
	IndexStakers       bool    `mapstructure:"index_stakers"`
}

type SolanaConfig struct {
	RPCURL            string  `mapstructure:"rpc_url"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
}

type LeaderboardConfig struct {
	RefreshCron  string `mapstructure:"refresh_cron"`
	Workers      int    `mapstructure:"workers"`
	DefaultLimit int    `mapstructure:"default_limit"`
	MaxLimit     int    `mapstructure:"max_limit"`
}

type SnapshotConfig struct {
	Cron string `mapstructure:"cron"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15)
	v.SetDefault("server.write_timeout", 60)

	v.SetDefault("referral.signup_bonus", 1000)
	v.SetDefault("referral.referee_bonus", 1000)
	v.SetDefault("referral.daily_bonus_rate", 0.1)
	v.SetDefault("referral.min_swap_amount", 100)
	v.SetDefault("referral.base_rolls", 3)
	v.SetDefault("referral.bonus_rolls", 3)
	v.SetDefault("referral.unlock_threshold", 3)
	v.SetDefault("referral.max_code_attempts", 100)
	v.SetDefault("referral.max_common_attempts", 1000)
	v.SetDefault("referral.special_codes", map[string]interface{}{
		"PUNK":   map[string]interface{}{"min_swap": 5, "bonus_points": 500, "description": "Solana Cypherpunk Hackathon code"},
		"LAUNCH": map[string]interface{}{"min_swap": 10, "bonus_points": 250, "description": "Launch week special"},
		"VIP":    map[string]interface{}{"min_swap": 5, "bonus_points": 1000, "description": "VIP early access"},
	})

	v.SetDefault("staking.points_scale_exp", 11)

	v.SetDefault("evm.id", "base")
	v.SetDefault("evm.confirmation_blocks", 5)
	v.SetDefault("evm.batch_size", 2000)
	v.SetDefault("evm.pull_interval", 30)
	v.SetDefault("evm.requests_per_second", 10)
	v.SetDefault("solana.requests_per_second", 10)

	v.SetDefault("leaderboard.refresh_cron", "0 0 * * * *")
	v.SetDefault("leaderboard.workers", 8)
	v.SetDefault("leaderboard.default_limit", 100)
	v.SetDefault("leaderboard.max_limit", 1000)

	v.SetDefault("snapshot.cron", "0 5 0 * * *")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.output", "stdout")
}

func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("REFERRAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return decode(v)
}

// Default 返回仅包含默认值的配置，用于测试和无配置文件启动
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg, err := decode(v)
	if err != nil {
		panic(err)
	}
	return cfg
}

func decode(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// viper 会把 map 的 key 转为小写，特殊码统一按大写匹配
	specials := make(map[string]SpecialCode, len(config.Referral.SpecialCodes))
	for code, sc := range config.Referral.SpecialCodes {
		specials[strings.ToUpper(code)] = sc
	}
	config.Referral.SpecialCodes = specials

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) Validate() error {
	r := c.Referral
	if r.BaseRolls < 1 {
		return fmt.Errorf("referral.base_rolls must be >= 1, got %d", r.BaseRolls)
	}
	if r.BonusRolls < 0 || r.UnlockThreshold < 0 {
		return fmt.Errorf("referral.bonus_rolls and referral.unlock_threshold must be >= 0")
	}
	if r.MaxCodeAttempts < 1 || r.MaxCommonAttempts < 1 {
		return fmt.Errorf("referral.max_code_attempts and referral.max_common_attempts must be >= 1")
	}
	if r.DailyBonusRate < 0 || r.MinSwapAmount < 0 {
		return fmt.Errorf("referral rates and minimums must be non-negative")
	}
	for _, t := range c.Staking.Tokens {
		switch strings.ToLower(t.Namespace) {
		case "evm", "solana":
		default:
			return fmt.Errorf("token %s: unsupported namespace %q", t.Symbol, t.Namespace)
		}
		if t.Decimals < 0 {
			return fmt.Errorf("token %s: negative decimals", t.Symbol)
		}
	}
	if c.Leaderboard.Workers < 1 {
		return fmt.Errorf("leaderboard.workers must be >= 1")
	}
	return nil
}
