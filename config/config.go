package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Addr                 string
	DatabaseURL          string
	ServiceToken         string // shared secret the gateway presents
	AllowedOrigins       string
	SyncServiceURL       string
	MembershipServiceURL string
	MembershipToken      string
	AuthServiceURL       string // optional; enables the query-token SSE route
	StatsReconcileEvery  time.Duration
	WalletPollEvery      time.Duration
	StatementExport      bool
}

func Load() (Config, error) {
	addr := os.Getenv("PORT")
	if addr != "" {
		if !strings.HasPrefix(addr, ":") {
			addr = ":" + addr
		}
	} else {
		addr = envDefault("LEDGER_ADDR", ":5300")
	}

	cfg := Config{
		Addr:                 addr,
		DatabaseURL:          strings.TrimSpace(os.Getenv("DATABASE_URL")),
		ServiceToken:         strings.TrimSpace(os.Getenv("LEDGER_SERVICE_TOKEN")),
		AllowedOrigins:       normalizeOrigins(envDefault("ALLOWED_ORIGINS", "http://localhost:3000")),
		SyncServiceURL:       strings.TrimRight(strings.TrimSpace(os.Getenv("SYNC_SERVICE_URL")), "/"),
		MembershipServiceURL: strings.TrimRight(strings.TrimSpace(os.Getenv("MEMBERSHIP_SERVICE_URL")), "/"),
		MembershipToken:      strings.TrimSpace(os.Getenv("MEMBERSHIP_SERVICE_TOKEN")),
		AuthServiceURL:       strings.TrimRight(strings.TrimSpace(os.Getenv("AUTH_SERVICE_URL")), "/"),
		StatsReconcileEvery:  envDurationDefault("STATS_RECONCILE_EVERY", 10*time.Minute),
		WalletPollEvery:      envDurationDefault("WALLET_POLL_EVERY", 10*time.Second),
		StatementExport:      envBoolDefault("STATEMENT_EXPORT_ENABLED", false),
	}
	if cfg.MembershipToken == "" {
		cfg.MembershipToken = cfg.ServiceToken
	}

	if cfg.DatabaseURL == "" {
		return cfg, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.ServiceToken == "" {
		return cfg, fmt.Errorf("LEDGER_SERVICE_TOKEN is required")
	}
	if cfg.SyncServiceURL == "" {
		return cfg, fmt.Errorf("SYNC_SERVICE_URL is required")
	}
	if cfg.MembershipServiceURL == "" {
		return cfg, fmt.Errorf("MEMBERSHIP_SERVICE_URL is required")
	}
	return cfg, nil
}

// normalizeOrigins trims the comma-separated origin list for fiber's CORS config.
func normalizeOrigins(v string) string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ",")
}

func envDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envDurationDefault(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func envBoolDefault(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
