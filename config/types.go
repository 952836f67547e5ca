// Package config defines the YAML configuration schema for ddnsd and
// builds the runtime task set from it.
package config

import (
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so intervals can be written as "5m" or
// "90s" in YAML.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return errors.Wrapf(err, "parsing duration %q", raw)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

// Root is the top-level structure of the config file. Interfaces,
// providers, and notifiers are declared once by name and referenced
// from tasks.
type Root struct {
	Base       Base                 `yaml:"base"`
	Interfaces map[string]Interface `yaml:"interfaces"`
	Providers  map[string]Provider  `yaml:"providers"`
	Notifiers  map[string]Notifier  `yaml:"notifiers"`
	Tasks      map[string]Task      `yaml:"tasks"`
}

// Base holds process-wide settings.
type Base struct {
	// StartupStagger is the delay inserted between consecutive task
	// start times so many tasks don't hit the provider at once.
	StartupStagger Duration `yaml:"startup_stagger"`
}

// Interface declares an address source.
type Interface struct {
	Kind      string   `yaml:"kind"`   // interface, web, static
	Prefix    string   `yaml:"prefix"` // DNS-name prefix, "@" for apex
	Name      string   `yaml:"name"`   // kind=interface: OS interface name
	URLs      []string `yaml:"urls"`   // kind=web: lookup service endpoints
	Addresses []string `yaml:"addresses"`
}

// Provider declares a DNS provider account.
type Provider struct {
	Kind   string `yaml:"kind"` // cloudflare, godaddy, fake
	Token  string `yaml:"token"`
	Key    string `yaml:"key"`
	Secret string `yaml:"secret"`
	Domain string `yaml:"domain"`
	TTL    int    `yaml:"ttl"`
	Force  bool   `yaml:"force"`
}

// Notifier declares a change-notification channel.
type Notifier struct {
	Kind     string   `yaml:"kind"` // webhook, email
	URL      string   `yaml:"url"`
	Host     string   `yaml:"host"`
	Port     int      `yaml:"port"`
	Username string   `yaml:"username"`
	Password string   `yaml:"password"`
	From     string   `yaml:"from"`
	To       []string `yaml:"to"`
}

// Task binds an interface, a provider, and notifiers into one periodic
// sync job.
type Task struct {
	Interface string   `yaml:"interface"`
	Provider  string   `yaml:"provider"`
	Notifiers []string `yaml:"notifiers"`
	Family    string   `yaml:"family"` // ipv4, ipv6, all
	Interval  Duration `yaml:"interval"`
}
