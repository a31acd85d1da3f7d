package cli

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/lanegraph/pkg/errors"
	"github.com/matzehuels/lanegraph/pkg/render"
	"github.com/matzehuels/lanegraph/pkg/session"
)

// Config is the content of the config file:
//
//	page_size = 1000
//	first_lane = 0
//	unconcealable_refs = ["*"]
//	palette = "bright"
//
//	[cache]
//	dir = "~/.cache/lanegraph"
//	redis_addr = ""
//	ttl = "168h"
//
//	[server]
//	addr = "127.0.0.1:8080"
//	root = "."
type Config struct {
	PageSize          int          `toml:"page_size"`
	FirstLane         int          `toml:"first_lane"`
	UnconcealableRefs []string     `toml:"unconcealable_refs"`
	Palette           string       `toml:"palette"`
	Cache             CacheConfig  `toml:"cache"`
	Server            ServerConfig `toml:"server"`
}

// CacheConfig configures the commit details cache.
type CacheConfig struct {
	Dir           string        `toml:"dir"`
	RedisAddr     string        `toml:"redis_addr"`
	RedisPassword string        `toml:"redis_password"`
	RedisDB       int           `toml:"redis_db"`
	TTL           time.Duration `toml:"ttl"`
}

// ServerConfig configures the serve command.
type ServerConfig struct {
	Addr string `toml:"addr"`
	Root string `toml:"root"`
}

// Defaults returns the configuration used when no file is present.
func Defaults() Config {
	return Config{
		PageSize:          session.DefaultPageSize,
		UnconcealableRefs: []string{"*"},
		Palette:           render.DefaultPalette,
		Cache:             CacheConfig{TTL: 7 * 24 * time.Hour},
		Server:            ServerConfig{Addr: "127.0.0.1:8080", Root: "."},
	}
}

// LoadConfig reads the config file at path on top of [Defaults]. A missing
// file is only an error when required is set, i.e. the user named it.
// Unknown keys are rejected.
func LoadConfig(path string, required bool) (Config, error) {
	cfg := Defaults()
	if path == "" {
		return cfg, nil
	}
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		if !required && stderrors.Is(err, fs.ErrNotExist) {
			return Defaults(), nil
		}
		return Config{}, errors.Wrap(errors.ErrCodeInvalidFormat, err, "config %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, errors.New(errors.ErrCodeInvalidFormat, "config %s: unknown keys %s", path, strings.Join(keys, ", "))
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	if c.PageSize <= 0 {
		return errors.New(errors.ErrCodeInvalidInput, "page_size must be positive, got %d", c.PageSize)
	}
	if !render.ValidPalette(c.Palette) {
		return errors.New(errors.ErrCodeInvalidInput, "unknown palette %q (have %s)", c.Palette, strings.Join(render.PaletteNames(), ", "))
	}
	if c.Cache.TTL < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "cache.ttl must not be negative")
	}
	return nil
}

// sessionOptions maps the config to session options.
func (c Config) sessionOptions() session.Options {
	return session.Options{
		PageSize:      c.PageSize,
		FirstLane:     c.FirstLane,
		Unconcealable: c.UnconcealableRefs,
	}
}
