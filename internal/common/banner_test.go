package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBannerTitle(t *testing.T) {
	cfg := NewDefaultConfig()
	assert.Equal(t, "SET Watch KBANK", BannerTitle(cfg))
}

func TestBannerDetail(t *testing.T) {
	cfg := NewDefaultConfig()
	assert.Equal(t, "  mode: single run | lang: th | state: file", BannerDetail(cfg, false))

	cfg.Watch.DryRun = true
	cfg.Watch.ForceSend = true
	cfg.State.Type = "badger"
	assert.Equal(t, "  mode: watch */30 * * * * [dry-run, force-send] | lang: th | state: badger", BannerDetail(cfg, true))
}
