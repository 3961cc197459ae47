package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"smsgate-backend/lib/configutil"
	"smsgate-backend/lib/serviceutil"
	"smsgate-backend/lib/sqliteutil"
	"smsgate-backend/lib/telemetry"
	"smsgate-backend/services/acquisition"
	"smsgate-backend/services/ledger"
	ledgerdb "smsgate-backend/services/ledger/db"
)

type Config struct {
	Database string `json:"database"`
	Port     int    `json:"port"`
	Verbose  bool   `json:"verbose"`
	// LinkBase is the public deep link prefix for referral links.
	LinkBase string `json:"link_base"`

	NumberPrice         int64                         `json:"number_price"`
	Rewards             map[string]acquisition.Reward `json:"rewards"`
	PageSize            int                           `json:"page_size"`
	PollIntervalSeconds int                           `json:"poll_interval_seconds"`
	PollDeadlineSeconds int                           `json:"poll_deadline_seconds"`
	FetchTimeoutSeconds int                           `json:"fetch_timeout_seconds"`
	AdminIds            []int64                       `json:"admin_ids"`

	Smtp acquisition.SmtpConfig `json:"smtp"`
}

func (c Config) acquisitionConfig() acquisition.Config {
	cfg := acquisition.DefaultConfig()
	if c.NumberPrice > 0 {
		cfg.NumberPrice = c.NumberPrice
	}
	if len(c.Rewards) > 0 {
		cfg.Rewards = c.Rewards
	}
	if c.PageSize > 0 {
		cfg.PageSize = c.PageSize
	}
	if c.PollIntervalSeconds > 0 {
		cfg.PollInterval = time.Duration(c.PollIntervalSeconds) * time.Second
	}
	if c.PollDeadlineSeconds > 0 {
		cfg.PollDeadline = time.Duration(c.PollDeadlineSeconds) * time.Second
	}
	if c.FetchTimeoutSeconds > 0 {
		cfg.FetchTimeout = time.Duration(c.FetchTimeoutSeconds) * time.Second
	}
	cfg.AdminIds = c.AdminIds
	return cfg
}

func main() {
	ctx := serviceutil.SignalContext()

	config, err := configutil.ReadConfig[Config]("config.json5")
	if err != nil {
		serviceutil.Fatal("failed to read config", err)
	}
	telemetry.InitSlog(config.Verbose)

	err = telemetry.SetupFromEnv(ctx, "smsgate")
	if err != nil {
		serviceutil.Fatal("failed to setup telemetry", err)
	}
	defer telemetry.Shutdown(context.Background())
	telemetry.InstrumentPerfStats(ctx)

	dsn := config.Database
	if dsn == "" {
		dsn = "smsgate.db"
	}
	db, err := sqliteutil.OpenDB(ledgerdb.Schema, dsn)
	if err != nil {
		serviceutil.Fatal("failed to open database", err)
	}
	defer db.Close()

	ledgerService := ledger.NewService(db)

	var notifier acquisition.Notifier
	if config.Smtp.Server != "" {
		notifier = acquisition.NewEmailNotifier(config.Smtp)
	}

	acquisitionService := acquisition.NewService(acquisition.Options{
		Config: config.acquisitionConfig(),
		Ledger: ledgerService,
		// the chat transport and membership gate are provided by the
		// frontend deployment; standalone runs log deliveries and skip
		// the join requirement
		Messenger: acquisition.LogMessenger{},
		Gate:      acquisition.OpenGatekeeper{},
		Notifier:  notifier,
	})

	port := config.Port
	if port == 0 {
		port = 8444
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		stats, err := ledgerService.Stats(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(stats)
	})
	registerApi(mux, acquisitionService, config.LinkBase)
	go serviceutil.StartHttpServer(port, mux)

	<-ctx.Done()
}
