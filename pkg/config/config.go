package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rezkym/fx-exchange/pkg/currency"
	"github.com/rezkym/fx-exchange/pkg/provider"
)

type Server struct {
	Scheme string `envconfig:"SCHEME" default:"http"`
	Host   string `envconfig:"HOST" default:"localhost"`
	Port   int    `envconfig:"PORT" default:"3000" validate:"min=1,max=65535"`
}

// Addr is the listen address of the dashboard API.
func (s Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type Log struct {
	Level      int    `envconfig:"LEVEL" default:"0"`
	Format     string `envconfig:"FORMAT" default:"text" validate:"oneof=json text"`
	TimeFormat string `envconfig:"TIME_FORMAT" default:"2006-01-02 15:04:05"`
	Prefix     string `envconfig:"PREFIX" default:"[fx]"`
}

//revive:disable
type RatesAPI struct {
	ApiUrl      string        `envconfig:"URL" default:"http://localhost:8080/api" validate:"required,url"`
	ApiKey      string        `envconfig:"API_KEY"`
	HTTPTimeout time.Duration `envconfig:"HTTP_TIMEOUT" default:"10s"`
}

//revive:enable

type Live struct {
	PollInterval     time.Duration `envconfig:"POLL_INTERVAL" default:"10s" validate:"gt=0"`
	HistoryInterval  time.Duration `envconfig:"HISTORY_INTERVAL" default:"5m"`
	WindowLength     int           `envconfig:"WINDOW_LENGTH" default:"24"`
	WindowUnit       string        `envconfig:"WINDOW_UNIT" default:"hour"`
	WindowResolution string        `envconfig:"WINDOW_RESOLUTION" default:"minute"`
}

// Window is the history window a newly watched pair starts with.
func (l Live) Window() provider.HistoryWindow {
	return provider.HistoryWindow{
		Length:     l.WindowLength,
		Unit:       l.WindowUnit,
		Resolution: l.WindowResolution,
	}
}

type Conversion struct {
	ReportingCurrency string        `envconfig:"REPORTING_CURRENCY" default:"USD"`
	TTL               time.Duration `envconfig:"TTL" default:"60s" validate:"gt=0"`
	Concurrency       int           `envconfig:"CONCURRENCY" default:"4" validate:"min=1"`
}

// Reporting parses the reporting currency.
func (c Conversion) Reporting() (currency.Code, error) {
	return currency.ParseCode(c.ReportingCurrency)
}

type EventBus struct {
	Driver       string   `envconfig:"DRIVER" default:"memory" validate:"oneof=memory redis kafka"`
	RedisURL     string   `envconfig:"REDIS_URL" default:"redis://localhost:6379/0"`
	KafkaBrokers []string `envconfig:"KAFKA_BROKERS" default:"localhost:9092"`
	Stream       string   `envconfig:"STREAM" default:"fx:events"`
	Group        string   `envconfig:"GROUP" default:"fx-dashboard"`
}

type Notice struct {
	Capacity int `envconfig:"CAPACITY" default:"100" validate:"min=1"`
}

type RateLimit struct {
	MaxRequests int           `envconfig:"MAX_REQUESTS" default:"100"`
	Window      time.Duration `envconfig:"WINDOW" default:"1m"`
}

type App struct {
	Env        string     `envconfig:"APP_ENV" default:"development"`
	Server     Server     `envconfig:"SERVER"`
	Log        Log        `envconfig:"LOG"`
	RatesAPI   RatesAPI   `envconfig:"RATES_API"`
	Live       Live       `envconfig:"LIVE"`
	Conversion Conversion `envconfig:"CONVERSION"`
	EventBus   EventBus   `envconfig:"EVENT_BUS"`
	Notice     Notice     `envconfig:"NOTICE"`
	RateLimit  RateLimit  `envconfig:"RATE_LIMIT"`
}

// IsProduction reports whether the app runs with APP_ENV=production.
func (a *App) IsProduction() bool {
	return strings.EqualFold(a.Env, "production")
}
