package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App    AppConfig    `mapstructure:"app"`
	Server ServerConfig `mapstructure:"server"`
	Log    LogConfig    `mapstructure:"log"`
	DB     DBConfig     `mapstructure:"db"`

	Scheduler   SchedulerConfig   `mapstructure:"scheduler"`
	Health      HealthConfig      `mapstructure:"health"`
	Graduation  GraduationConfig  `mapstructure:"graduation"`
	Allocator   AllocatorConfig   `mapstructure:"allocator"`
	Competition CompetitionConfig `mapstructure:"competition"`
	KillSwitch  KillSwitchConfig  `mapstructure:"kill_switch"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type ServerConfig struct {
	HTTPAddr string `mapstructure:"http_addr"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Timezone        string        `mapstructure:"timezone"`
}

// SchedulerConfig drives the periodic supervision tick
// (health -> graduation -> allocation).
type SchedulerConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	TickSpec        string        `mapstructure:"tick_spec"`
	StrategyTimeout time.Duration `mapstructure:"strategy_timeout"`
	AutoGraduate    bool          `mapstructure:"auto_graduate"`
	CapitalPool     float64       `mapstructure:"capital_pool"`
}

type HealthConfig struct {
	MaxDailyLossPct     float64 `mapstructure:"max_daily_loss_pct"`
	MaxDrawdownPct      float64 `mapstructure:"max_drawdown_pct"`
	MinWinRate          float64 `mapstructure:"min_win_rate"`
	MinTradesForWinRate int     `mapstructure:"min_trades_for_win_rate"`
}

// GraduationConfig holds the fixed capital assigned on entry to each stage.
// The eligibility gate matrix itself lives in the graduation engine.
type GraduationConfig struct {
	PaperCapital     float64 `mapstructure:"paper_capital"`
	MicroLiveCapital float64 `mapstructure:"micro_live_capital"`
	MiniLiveCapital  float64 `mapstructure:"mini_live_capital"`
	FullLiveCapital  float64 `mapstructure:"full_live_capital"`

	BacktestMinAgeDays int `mapstructure:"backtest_min_age_days"`
	BacktestMinTrades  int `mapstructure:"backtest_min_trades"`
}

// AllocatorConfig is the qualification bar for capital allocation. Same
// shape of check as graduation, independently tunable.
type AllocatorConfig struct {
	MinReturnPct   float64 `mapstructure:"min_return_pct"`
	MinSharpe      float64 `mapstructure:"min_sharpe"`
	MinWinRate     float64 `mapstructure:"min_win_rate"`
	MaxDrawdownPct float64 `mapstructure:"max_drawdown_pct"`
	MinTrades      int     `mapstructure:"min_trades"`
}

type CompetitionConfig struct {
	StartingCapital float64 `mapstructure:"starting_capital"`
}

type KillSwitchConfig struct {
	AdminPassword string `mapstructure:"admin_password"`
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("STRAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()

	v.SetDefault("app.env", "dev")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)
	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("db.timezone", "UTC")

	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.tick_spec", "@every 30s")
	v.SetDefault("scheduler.strategy_timeout", "5s")
	v.SetDefault("scheduler.auto_graduate", true)
	v.SetDefault("scheduler.capital_pool", 10000)

	v.SetDefault("health.max_daily_loss_pct", 10.0)
	v.SetDefault("health.max_drawdown_pct", 20.0)
	v.SetDefault("health.min_win_rate", 40.0)
	v.SetDefault("health.min_trades_for_win_rate", 20)

	v.SetDefault("graduation.paper_capital", 10000)
	v.SetDefault("graduation.micro_live_capital", 50)
	v.SetDefault("graduation.mini_live_capital", 200)
	v.SetDefault("graduation.full_live_capital", 1000)
	v.SetDefault("graduation.backtest_min_age_days", 7)
	v.SetDefault("graduation.backtest_min_trades", 10)

	v.SetDefault("allocator.min_return_pct", 2.0)
	v.SetDefault("allocator.min_sharpe", 1.0)
	v.SetDefault("allocator.min_win_rate", 45.0)
	v.SetDefault("allocator.max_drawdown_pct", 20.0)
	v.SetDefault("allocator.min_trades", 10)

	v.SetDefault("competition.starting_capital", 10000)

	v.SetDefault("kill_switch.admin_password", "")

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
