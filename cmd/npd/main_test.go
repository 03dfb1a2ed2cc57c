package main

import (
	"testing"

	"github.com/soren-m/now_playing/internal/npd"
)

func TestBuildModulesModuleOnlyFilter(t *testing.T) {
	cfg := npd.Config{}
	cfg.Modules.Transport.Enabled = true
	cfg.Modules.Transport.NodeID = "np:transport:test"
	cfg.Modules.Transport.Driver = "memory"

	logger := npd.NewLogger(npd.LogConfig{Level: "error"})
	modules, err := buildModules(cfg, nil, logger, "transport", false)
	if err != nil {
		t.Fatalf("buildModules: %v", err)
	}
	if len(modules) != 1 {
		t.Fatalf("expected 1 module")
	}

	_, err = buildModules(cfg, nil, logger, "embedded_mqtt", false)
	if err == nil {
		t.Fatalf("expected error for filtered module")
	}
}

func TestBuildModulesRejectsUnknownDriver(t *testing.T) {
	cfg := npd.Config{}
	cfg.Modules.Transport.Enabled = true
	cfg.Modules.Transport.NodeID = "np:transport:test"
	cfg.Modules.Transport.Driver = "cassette"

	logger := npd.NewLogger(npd.LogConfig{Level: "error"})
	if _, err := buildModules(cfg, nil, logger, "", false); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
}

func TestApplyOverridesUsesEmbeddedBroker(t *testing.T) {
	cfg := npd.Config{}
	cfg.Modules.EmbeddedMQTT.Enabled = true
	cfg.Modules.EmbeddedMQTT.Listen = "127.0.0.1:18833"

	applyOverrides(&cfg, "", "", "", "", "", "")
	if cfg.Server.Broker != "mqtt://127.0.0.1:18833" {
		t.Fatalf("unexpected broker %q", cfg.Server.Broker)
	}
	if cfg.Server.TopicBase != "np/v1" {
		t.Fatalf("unexpected topic base %q", cfg.Server.TopicBase)
	}
}
