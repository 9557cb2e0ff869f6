package config

import (
	"reflect"
	"sort"
	"strings"

	logx "vellum/pkg/logx"
)

// SummarizeConfigChange returns (1) a compact list of changed sections and
// (2) safe structured attrs for logging (never includes secrets like tokens
// or API keys).
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 6)
	attrs := make([]logx.Field, 0, 20)

	// Server (never log token values; count only)
	if strings.TrimSpace(oldCfg.Server.Addr) != strings.TrimSpace(newCfg.Server.Addr) ||
		oldCfg.Server.Debug != newCfg.Server.Debug ||
		oldCfg.Server.CORS != newCfg.Server.CORS ||
		!sameTokenSet(oldCfg.Server.Tokens, newCfg.Server.Tokens) ||
		strings.TrimSpace(oldCfg.Server.ReadTimeout) != strings.TrimSpace(newCfg.Server.ReadTimeout) ||
		strings.TrimSpace(oldCfg.Server.WriteTimeout) != strings.TrimSpace(newCfg.Server.WriteTimeout) ||
		strings.TrimSpace(oldCfg.Server.IdleTimeout) != strings.TrimSpace(newCfg.Server.IdleTimeout) {
		changed = append(changed, "server")
		attrs = append(attrs,
			logx.String("server.addr", strings.TrimSpace(newCfg.Server.Addr)),
			logx.Bool("server.debug", newCfg.Server.Debug),
			logx.Bool("server.cors", newCfg.Server.CORS),
			logx.Int("server.token_count", len(newCfg.Server.Tokens)),
		)
	}

	// Logging
	if oldCfg.Logging.Level != newCfg.Logging.Level ||
		oldCfg.Logging.Console != newCfg.Logging.Console ||
		oldCfg.Logging.File.Enabled != newCfg.Logging.File.Enabled ||
		strings.TrimSpace(oldCfg.Logging.File.Path) != strings.TrimSpace(newCfg.Logging.File.Path) {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logx.level", newCfg.Logging.Level),
			logx.Bool("logx.console", newCfg.Logging.Console),
			logx.Bool("logx.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	// Pprof
	if oldCfg.Pprof != newCfg.Pprof {
		changed = append(changed, "pprof")
		attrs = append(attrs,
			logx.Bool("pprof.enabled", newCfg.Pprof.Enabled),
			logx.String("pprof.address", strings.TrimSpace(newCfg.Pprof.Address)),
		)
	}

	// Storage
	if oldCfg.Storage != newCfg.Storage {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", strings.TrimSpace(newCfg.Storage.Driver)),
			logx.Bool("storage.path_set", strings.TrimSpace(newCfg.Storage.Path) != ""),
			logx.String("storage.busy_timeout", strings.TrimSpace(newCfg.Storage.BusyTimeout)),
		)
	}

	// Scheduler defaults + auto trigger.
	// Auto may be nil (omitted); treat nil as disabled for the summary.
	oAuto := derefAuto(oldCfg.Scheduler.Auto)
	nAuto := derefAuto(newCfg.Scheduler.Auto)
	if strings.TrimSpace(oldCfg.Scheduler.Timezone) != strings.TrimSpace(newCfg.Scheduler.Timezone) ||
		oldCfg.Scheduler.DaysToSchedule != newCfg.Scheduler.DaysToSchedule ||
		oAuto != nAuto {
		changed = append(changed, "scheduler")
		attrs = append(attrs,
			logx.String("scheduler.timezone", strings.TrimSpace(newCfg.Scheduler.Timezone)),
			logx.Int("scheduler.days_to_schedule", newCfg.Scheduler.DaysToSchedule),
			logx.Bool("scheduler.auto_enabled", nAuto.Enabled),
			logx.String("scheduler.auto_spec", strings.TrimSpace(nAuto.Spec)),
		)
	}

	// AI (never log the key; presence only)
	oAI := derefAI(oldCfg.AI)
	nAI := derefAI(newCfg.AI)
	oKeySet := strings.TrimSpace(oAI.APIKey) != ""
	nKeySet := strings.TrimSpace(nAI.APIKey) != ""
	oAI.APIKey = ""
	nAI.APIKey = ""
	if !reflect.DeepEqual(oAI, nAI) || oKeySet != nKeySet {
		changed = append(changed, "ai")
		attrs = append(attrs,
			logx.Bool("ai.enabled", nAI.Enabled),
			logx.Bool("ai.key_set", nKeySet),
			logx.String("ai.model", strings.TrimSpace(nAI.Model)),
			logx.Int("ai.daily_limit", nAI.DailyLimit),
		)
	}

	sort.Strings(changed)
	return changed, attrs
}

func derefAuto(a *AutoScheduleConfig) AutoScheduleConfig {
	if a == nil {
		return AutoScheduleConfig{}
	}
	return *a
}

func derefAI(a *AIConfig) AIConfig {
	if a == nil {
		return AIConfig{}
	}
	return *a
}

// sameTokenSet compares token maps without retaining or exposing values.
func sameTokenSet(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}
