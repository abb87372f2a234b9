package live

import (
	"time"

	"github.com/spf13/viper"
)

// Config holds the broadcast subsystem settings. An empty WhipBase
// disables the whole surface; the chat itself keeps working.
type Config struct {
	WhipBase string `mapstructure:"whip_base"`
	WhepBase string `mapstructure:"whep_base"`

	// TokenSecret signs stream tokens. Must be at least 32 bytes.
	TokenSecret string `mapstructure:"token_secret"`
	// EdgeSecret authenticates the media edge's auth callbacks.
	EdgeSecret string `mapstructure:"edge_secret"`

	TokenTTL      time.Duration `mapstructure:"token_ttl"`
	StartingTTL   time.Duration `mapstructure:"starting_ttl"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

func (c Config) Enabled() bool {
	return c.WhipBase != "" && c.WhepBase != ""
}

func Setup(v *viper.Viper, prefix string) {
	p := func(key string) string { return prefix + "." + key }

	v.SetDefault(p("whip_base"), "")
	v.SetDefault(p("whep_base"), "")
	v.SetDefault(p("token_secret"), "")
	v.SetDefault(p("edge_secret"), "")
	v.SetDefault(p("token_ttl"), "60s")
	v.SetDefault(p("starting_ttl"), "90s")
	v.SetDefault(p("sweep_interval"), "10s")
}
