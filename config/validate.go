package config

import (
	"github.com/miekg/dns"
	"github.com/pkg/errors"
)

// DefaultTTL is applied to providers that leave ttl unset.
const DefaultTTL = 300

// Validate checks the declaration kinds, cross-references, and value
// ranges. Any failure here is fatal to startup or reload.
func (r *Root) Validate() error {
	if len(r.Tasks) == 0 {
		return errors.New("config declares no tasks")
	}

	for name, iface := range r.Interfaces {
		switch iface.Kind {
		case "interface":
			if iface.Name == "" {
				return errors.Errorf("interface %s: kind interface requires a name", name)
			}
		case "web":
			if len(iface.URLs) == 0 {
				return errors.Errorf("interface %s: kind web requires urls", name)
			}
		case "static":
			if len(iface.Addresses) == 0 {
				return errors.Errorf("interface %s: kind static requires addresses", name)
			}
		default:
			return errors.Errorf("interface %s: unknown kind %q", name, iface.Kind)
		}
		if iface.Prefix == "" {
			return errors.Errorf("interface %s: prefix cannot be empty (use %q for the apex)", name, "@")
		}
	}

	for name, provider := range r.Providers {
		switch provider.Kind {
		case "cloudflare", "godaddy", "fake":
		default:
			return errors.Errorf("provider %s: unknown kind %q", name, provider.Kind)
		}
		if provider.Kind != "fake" {
			if _, ok := dns.IsDomainName(provider.Domain); !ok || provider.Domain == "" {
				return errors.Errorf("provider %s: %q is not a valid domain name", name, provider.Domain)
			}
		}
		if provider.TTL < 0 {
			return errors.Errorf("provider %s: negative ttl", name)
		}
	}

	for name, notifier := range r.Notifiers {
		switch notifier.Kind {
		case "webhook":
			if notifier.URL == "" {
				return errors.Errorf("notifier %s: kind webhook requires a url", name)
			}
		case "email":
			if notifier.Host == "" || notifier.From == "" || len(notifier.To) == 0 {
				return errors.Errorf("notifier %s: kind email requires host, from, and to", name)
			}
		default:
			return errors.Errorf("notifier %s: unknown kind %q", name, notifier.Kind)
		}
	}

	for name, task := range r.Tasks {
		if _, ok := r.Interfaces[task.Interface]; !ok {
			return errors.Errorf("task %s: references undeclared interface %q", name, task.Interface)
		}
		if _, ok := r.Providers[task.Provider]; !ok {
			return errors.Errorf("task %s: references undeclared provider %q", name, task.Provider)
		}
		for _, ref := range task.Notifiers {
			if _, ok := r.Notifiers[ref]; !ok {
				return errors.Errorf("task %s: references undeclared notifier %q", name, ref)
			}
		}
		switch task.Family {
		case "ipv4", "ipv6", "all":
		default:
			return errors.Errorf("task %s: family must be ipv4, ipv6, or all; got %q", name, task.Family)
		}
		if task.Interval.Std() <= 0 {
			return errors.Errorf("task %s: interval must be positive", name)
		}
	}

	return nil
}
