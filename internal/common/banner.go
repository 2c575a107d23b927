package common

import (
	"fmt"
	"strings"

	"github.com/ternarybob/banner"
)

// PrintBanner displays the application banner with the watch target and run mode
func PrintBanner(config *Config, version string, watch bool) {
	banner.Print(BannerTitle(config), version)
	fmt.Println(BannerDetail(config, watch))
}

// BannerTitle names the watched symbol, e.g. "SET Watch KBANK"
func BannerTitle(config *Config) string {
	return fmt.Sprintf("SET Watch %s", config.Watch.Symbol)
}

// BannerDetail summarises how this process will run
func BannerDetail(config *Config, watch bool) string {
	mode := "single run"
	if watch {
		mode = "watch " + config.Schedule.Cron
	}

	var flags []string
	if config.Watch.DryRun {
		flags = append(flags, "dry-run")
	}
	if config.Watch.ForceSend {
		flags = append(flags, "force-send")
	}
	if len(flags) > 0 {
		mode += " [" + strings.Join(flags, ", ") + "]"
	}

	return fmt.Sprintf("  mode: %s | lang: %s | state: %s", mode, config.Watch.Lang, config.State.Type)
}
