/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	bind           string
	port           int
	prefix         string
	profile        bool
	rateBurst      int
	rateLimit      float64
	rounds         int
	seed           int64
	sessionTimeout time.Duration
	tlsCert        string
	tlsKey         string
	trustProxy     bool
	verbose        bool
	version        bool

	logger zerolog.Logger
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.rounds < 1 {
		return fmt.Errorf("invalid round count (must be at least 1): %d", c.rounds)
	}
	if c.sessionTimeout < 0 {
		return fmt.Errorf("invalid session timeout (must not be negative): %s", c.sessionTimeout)
	}
	if c.rateLimit < 0 || c.rateBurst < 0 {
		return fmt.Errorf("invalid rate limit (must not be negative): %v/s, burst %d", c.rateLimit, c.rateBurst)
	}
	if c.rateLimit > 0 && c.rateBurst < 1 {
		return errors.New("--rate-burst must be at least 1 when --rate-limit is set")
	}
	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("RAJAMANTRI")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "rajamantri",
		Short:         "Hosts rooms of the Raja Mantri Chor Sipahi party game.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			cfg.logger = newLogger(cfg, cmd.ErrOrStderr())
			return ServePage(cmd.Context(), cfg, args)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: RAJAMANTRI_BIND)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: RAJAMANTRI_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: RAJAMANTRI_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: RAJAMANTRI_PROFILE)")
	fs.IntVar(&cfg.rateBurst, "rate-burst", 10, "burst size allowed per client for game actions (env: RAJAMANTRI_RATE_BURST)")
	fs.Float64Var(&cfg.rateLimit, "rate-limit", 5, "game actions allowed per second per client, 0 to disable (env: RAJAMANTRI_RATE_LIMIT)")
	fs.IntVarP(&cfg.rounds, "rounds", "r", 3, "rounds played when a room does not choose (env: RAJAMANTRI_ROUNDS)")
	fs.Int64Var(&cfg.seed, "seed", 0, "seed for dealing roles, 0 for a time-based seed (env: RAJAMANTRI_SEED)")
	fs.DurationVar(&cfg.sessionTimeout, "session-timeout", 0, "time before idle rooms are removed, 0 to keep forever (env: RAJAMANTRI_SESSION_TIMEOUT)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: RAJAMANTRI_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: RAJAMANTRI_TLS_KEY)")
	fs.BoolVar(&cfg.trustProxy, "trust-proxy", false, "key rate limits on CF-Connecting-IP/X-Real-IP and honor X-Forwarded-Proto (env: RAJAMANTRI_TRUST_PROXY)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: RAJAMANTRI_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: RAJAMANTRI_VERSION)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("rajamantri v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
