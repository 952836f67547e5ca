package config

import (
	"net/http"
	"sort"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/honsun/ddnsd"
)

// DefaultStagger is used when base.startup_stagger is unset.
const DefaultStagger = 2 * time.Second

// Build constructs the runtime task set declared by an already
// validated Root. Declarations are instantiated once and shared by
// every task that references them.
func Build(root *Root, logger *zap.Logger) (*ddnsd.Batch, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	resolvers := make(map[string]ddnsd.Resolver)
	for name, iface := range root.Interfaces {
		resolver, err := buildResolver(iface)
		if err != nil {
			return nil, errors.Wrapf(err, "building interface %s", name)
		}
		resolvers[name] = resolver
	}

	providers := make(map[string]ddnsd.Provider)
	for name, decl := range root.Providers {
		provider, err := buildProvider(decl, logger)
		if err != nil {
			return nil, errors.Wrapf(err, "building provider %s", name)
		}
		providers[name] = provider
	}

	notifiers := make(map[string]ddnsd.Notifier)
	for name, decl := range root.Notifiers {
		notifier, err := buildNotifier(decl)
		if err != nil {
			return nil, errors.Wrapf(err, "building notifier %s", name)
		}
		notifiers[name] = notifier
	}

	// Sorted task order keeps stagger assignment stable across loads.
	names := make([]string, 0, len(root.Tasks))
	for name := range root.Tasks {
		names = append(names, name)
	}
	sort.Strings(names)

	tasks := make([]*ddnsd.Task, 0, len(names))
	for _, name := range names {
		decl := root.Tasks[name]
		providerDecl := root.Providers[decl.Provider]
		ttl := providerDecl.TTL
		if ttl == 0 {
			ttl = DefaultTTL
		}
		taskNotifiers := make([]ddnsd.Notifier, 0, len(decl.Notifiers))
		for _, ref := range decl.Notifiers {
			taskNotifiers = append(taskNotifiers, notifiers[ref])
		}
		task, err := ddnsd.NewTask(&ddnsd.TaskOptions{
			Logger:    logger,
			Name:      name,
			Families:  families(decl.Family),
			Interval:  decl.Interval.Std(),
			Resolver:  resolvers[decl.Interface],
			Provider:  providers[decl.Provider],
			Notifiers: taskNotifiers,
			TTL:       ttl,
			Force:     providerDecl.Force,
		})
		if err != nil {
			return nil, errors.Wrapf(err, "building task %s", name)
		}
		tasks = append(tasks, task)
	}

	stagger := root.Base.StartupStagger.Std()
	if stagger <= 0 {
		stagger = DefaultStagger
	}
	return &ddnsd.Batch{Tasks: tasks, Stagger: stagger}, nil
}

func buildResolver(iface Interface) (ddnsd.Resolver, error) {
	switch iface.Kind {
	case "interface":
		return ddnsd.InterfaceResolver(iface.Prefix, iface.Name), nil
	case "web":
		return ddnsd.WebResolver(iface.Prefix, iface.URLs...)
	case "static":
		return ddnsd.StaticResolver(iface.Prefix, iface.Addresses...)
	default:
		return nil, errors.Errorf("unknown interface kind %q", iface.Kind)
	}
}

func buildProvider(decl Provider, logger *zap.Logger) (ddnsd.Provider, error) {
	switch decl.Kind {
	case "cloudflare":
		return ddnsd.NewCloudflare(decl.Token, decl.Domain, logger)
	case "godaddy":
		return ddnsd.NewGoDaddy(decl.Key, decl.Secret, decl.Domain, logger)
	case "fake":
		return ddnsd.NewFake(logger), nil
	default:
		return nil, errors.Errorf("unknown provider kind %q", decl.Kind)
	}
}

func buildNotifier(decl Notifier) (ddnsd.Notifier, error) {
	switch decl.Kind {
	case "webhook":
		return ddnsd.NewWebhook(decl.URL, http.DefaultClient), nil
	case "email":
		return ddnsd.NewEmail(&ddnsd.EmailOptions{
			Host:     decl.Host,
			Port:     decl.Port,
			Username: decl.Username,
			Password: decl.Password,
			From:     decl.From,
			To:       decl.To,
		})
	default:
		return nil, errors.Errorf("unknown notifier kind %q", decl.Kind)
	}
}

func families(selection string) []ddnsd.Family {
	switch selection {
	case "ipv4":
		return []ddnsd.Family{ddnsd.FamilyV4}
	case "ipv6":
		return []ddnsd.Family{ddnsd.FamilyV6}
	default:
		return []ddnsd.Family{ddnsd.FamilyV4, ddnsd.FamilyV6}
	}
}
