package app

import (
	"strings"
	"testing"
	"time"
)

func TestParseConfig_Defaults(t *testing.T) {
	for _, k := range []string{"RPC_URL", "PORT", "RPC_TIMEOUT", "STORE_BACKEND", "POSTGRES_URL", "LOG_FORMAT", "TELEGRAM_TOKEN"} {
		t.Setenv(k, "")
	}

	cfg, err := parseConfig()
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if cfg.RPCURL != "https://eth.llamarpc.com" || cfg.Port != 3000 || cfg.RPCTimeout != 15*time.Second {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.StoreBackend != StoreMemory || cfg.Addr() != ":3000" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestParseConfig_FromEnv(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("RPC_TIMEOUT", "3s")
	t.Setenv("STORE_BACKEND", " Badger ")
	t.Setenv("BADGER_PATH", "/tmp/ledger")
	t.Setenv("TELEGRAM_CHAT_ID", "-100123")

	cfg, err := parseConfig()
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if cfg.Port != 8080 || cfg.RPCTimeout != 3*time.Second {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.StoreBackend != StoreBadger || cfg.BadgerPath != "/tmp/ledger" {
		t.Fatalf("unexpected store config: %+v", cfg)
	}
	if cfg.TelegramChatID != -100123 {
		t.Fatalf("expected chat id, got=%d", cfg.TelegramChatID)
	}
}

func TestValidate(t *testing.T) {
	ok := Config{RPCURL: "http://node", Port: 1, RPCTimeout: time.Second, StoreBackend: StoreMemory, LogFormat: "json"}
	if err := ok.Validate(); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	bad := ok
	bad.StoreBackend = StorePostgres
	bad.Port = 0
	err := bad.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"POSTGRES_URL", "PORT"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %s in %q", want, err.Error())
		}
	}

	bad = ok
	bad.StoreBackend = "redis"
	if err := bad.Validate(); err == nil || !strings.Contains(err.Error(), "redis") {
		t.Fatalf("expected unknown backend error, got=%v", err)
	}
}
