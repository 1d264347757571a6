package options

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/Hamza-Xoho/digital-surveyor/internal/config"
	"github.com/Hamza-Xoho/digital-surveyor/internal/session"
)

const EnvPrefix = "SURVEYOR"

type Options struct {
	APIURL    string
	TokenFile string
	LogLevel  string
	Output    string
	Timeout   time.Duration
	Geodesic  bool
}

func NewOptions() *Options {
	return &Options{
		APIURL:   config.DefaultAPIURL,
		LogLevel: "warn",
		Output:   "table",
		Timeout:  90 * time.Second,
	}
}

func (o *Options) Flags(fs *pflag.FlagSet) {
	fs.StringVar(&o.APIURL, "api-url", o.APIURL, "Base URL of the assessment backend API.")
	fs.StringVar(&o.TokenFile, "token-file", o.TokenFile, "Where the session token is kept. Defaults to the user config directory.")
	fs.StringVar(&o.LogLevel, "log-level", o.LogLevel, "Log level (debug, info, warn, error).")
	fs.StringVarP(&o.Output, "output", "o", o.Output, "Output format: table or json.")
	fs.DurationVar(&o.Timeout, "timeout", o.Timeout, "Per-request timeout against the backend.")
	fs.BoolVar(&o.Geodesic, "geodesic", o.Geodesic, "Scale envelope longitude by latitude instead of the fixed UK factor.")
}

// Load overlays SURVEYOR_* environment variables onto flags the user did not set.
// Flag names map to variables by upper-casing and replacing '-' with '_'.
func (o *Options) Load(fs *pflag.FlagSet) error {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(fs); err != nil {
		return err
	}

	o.APIURL = strings.TrimRight(v.GetString("api-url"), "/")
	o.TokenFile = v.GetString("token-file")
	o.LogLevel = v.GetString("log-level")
	o.Output = strings.ToLower(v.GetString("output"))
	o.Timeout = v.GetDuration("timeout")
	o.Geodesic = v.GetBool("geodesic")

	if o.TokenFile == "" {
		p, err := session.DefaultTokenPath()
		if err != nil {
			return fmt.Errorf("resolve token file: %w", err)
		}
		o.TokenFile = p
	}
	return o.Validate()
}

func (o *Options) Validate() error {
	switch o.Output {
	case "table", "json":
	default:
		return fmt.Errorf("--output must be table or json, got %q", o.Output)
	}
	if o.Timeout <= 0 {
		return fmt.Errorf("--timeout must be positive, got %s", o.Timeout)
	}
	return nil
}
