package config

import (
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env        string     `yaml:"env" env:"ENV" env-default:"local"`
	HTTPServer HTTPServer `yaml:"http_server"`
	Storage    Storage    `yaml:"storage"`
	Game       Game       `yaml:"game"`
	Metrics    Metrics    `yaml:"metrics"`
}

type HTTPServer struct {
	Address     string        `yaml:"address" env:"HTTP_ADDRESS" env-default:"localhost:8080"`
	Timeout     time.Duration `yaml:"timeout" env-default:"4s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
}

type Storage struct {
	Driver    string `yaml:"driver" env:"STORAGE_DRIVER" env-default:"memory"`
	RedisAddr string `yaml:"redis_addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	MySQLDSN  string `yaml:"mysql_dsn" env:"MYSQL_DSN"`
}

// Game carries the round timing and payout constants. BetSec and RunSec are
// the countdown and live windows; DoneSec is the dwell on the settled round
// before the next one opens.
type Game struct {
	BetSec       int     `yaml:"bet_sec" env:"GAME_BET_SEC" env-default:"7"`
	RunSec       int     `yaml:"run_sec" env:"GAME_RUN_SEC" env-default:"30"`
	DoneSec      int     `yaml:"done_sec" env:"GAME_DONE_SEC" env-default:"0"`
	BaseOpen     float64 `yaml:"base_open" env-default:"100"`
	StartBalance float64 `yaml:"start_balance" env-default:"10"`
	InsuranceFee float64 `yaml:"insurance_fee" env-default:"0.5"`
	HistoryLimit int     `yaml:"history_limit" env-default:"50"`
	SeriesPerSec int     `yaml:"series_per_sec" env-default:"10"`
}

type Metrics struct {
	Port string `yaml:"port" env:"METRICS_PORT" env-default:"9090"`
}

func MustLoad() *Config {
	cfg := &Config{}

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			log.Fatalf("cannot read config from env: %s", err)
		}

		return cfg
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Fatalf("config file does not exist: %s", configPath)
	}

	if err := cleanenv.ReadConfig(configPath, cfg); err != nil {
		log.Fatalf("cannot read config: %s", err)
	}

	return cfg
}
