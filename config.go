/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	bind             string
	contentDir       string
	fallbackPrefix   string
	iconExt          string
	iconsDir         string
	levelsFile       string
	port             int
	prefix           string
	productionHosts  []string
	productionPrefix string
	profile          bool
	resetDelay       time.Duration
	retireMatches    bool
	sessionTimeout   time.Duration
	soundsDir        string
	tlsCert          string
	tlsKey           string
	verbose          bool
	version          bool
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.resetDelay <= 0 {
		return fmt.Errorf("invalid reset delay (must be positive): %s", c.resetDelay)
	}
	if c.productionPrefix == "" || c.fallbackPrefix == "" {
		return errors.New("--production-prefix and --fallback-prefix must not be empty")
	}
	if strings.ContainsAny(c.iconExt, "/.") || c.iconExt == "" {
		return fmt.Errorf("invalid icon extension: %q", c.iconExt)
	}
	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

func (c *Config) sourceResolver() SourceResolver {
	return SourceResolver{
		ProductionHosts:  c.productionHosts,
		ProductionPrefix: c.productionPrefix,
		FallbackPrefix:   c.fallbackPrefix,
	}
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("AUDIOMATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "audiomatch",
		Short:         "An audio memory game: find the two tiles whose clips belong together.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return ServePage(ctx, cfg, args)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: AUDIOMATCH_BIND)")
	fs.StringVar(&cfg.contentDir, "content-dir", "", "directory to serve audio clips from under /play/ and /play_content/ (env: AUDIOMATCH_CONTENT_DIR)")
	fs.StringVar(&cfg.fallbackPrefix, "fallback-prefix", "/play_content/", "path prepended to clips on non-production hosts (env: AUDIOMATCH_FALLBACK_PREFIX)")
	fs.StringVar(&cfg.iconExt, "icon-ext", "jpeg", "file extension of tile icons (env: AUDIOMATCH_ICON_EXT)")
	fs.StringVar(&cfg.iconsDir, "icons-dir", "", "directory to serve tile icons from under /Icons/ (env: AUDIOMATCH_ICONS_DIR)")
	fs.StringVar(&cfg.levelsFile, "levels", "", "yaml file overriding the built-in level table, reloaded on change (env: AUDIOMATCH_LEVELS)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: AUDIOMATCH_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: AUDIOMATCH_PREFIX)")
	fs.StringSliceVar(&cfg.productionHosts, "production-host", []string{"konradbogen.com", "www.konradbogen.com"}, "hostnames that receive the production clip prefix (env: AUDIOMATCH_PRODUCTION_HOST)")
	fs.StringVar(&cfg.productionPrefix, "production-prefix", "/play/", "path prepended to clips on production hosts (env: AUDIOMATCH_PRODUCTION_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: AUDIOMATCH_PROFILE)")
	fs.DurationVar(&cfg.resetDelay, "reset-delay", time.Second, "time a match result stays on screen before the selection is cleared (env: AUDIOMATCH_RESET_DELAY)")
	fs.BoolVar(&cfg.retireMatches, "retire-matches", false, "deactivate tiles once their pair has been found (env: AUDIOMATCH_RETIRE_MATCHES)")
	fs.DurationVar(&cfg.sessionTimeout, "session-timeout", 60*time.Minute, "time before idle game sessions are ended (env: AUDIOMATCH_SESSION_TIMEOUT)")
	fs.StringVar(&cfg.soundsDir, "sounds-dir", "", "directory to serve feedback sounds from under /Sounds/ (env: AUDIOMATCH_SOUNDS_DIR)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: AUDIOMATCH_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: AUDIOMATCH_TLS_KEY)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: AUDIOMATCH_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: AUDIOMATCH_VERSION)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("audiomatch v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
