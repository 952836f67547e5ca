package ddnsd

import (
	"context"
	"net"
	"net/netip"

	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// InterfaceResolver constructs a resolver that reports the global-scope
// addresses of the named network interfaces under the given prefix.
// If no interfaces are named then all interfaces are consulted.
//
// Loopback, link-local, private, and unspecified addresses are never
// reported: records at a public provider pointing at them would be
// useless at best.
func InterfaceResolver(prefix string, ifaces ...string) Resolver {
	return &interfaceResolver{prefix: prefix, ifaces: ifaces}
}

type interfaceResolver struct {
	prefix string
	ifaces []string
}

func (r *interfaceResolver) Resolve(ctx context.Context, family Family) (map[string][]netip.Addr, error) {
	var raw []net.Addr
	if len(r.ifaces) == 0 {
		addrs, err := net.InterfaceAddrs()
		if err != nil {
			return nil, errors.Wrap(err, "listing interface addresses")
		}
		raw = addrs
	} else {
		for _, name := range r.ifaces {
			iface, err := net.InterfaceByName(name)
			if err != nil {
				return nil, errors.Wrapf(ErrInterfaceNotFound, "%s: %s", name, err)
			}
			addrs, err := iface.Addrs()
			if err != nil {
				return nil, errors.Wrapf(err, "listing addresses of %s", name)
			}
			raw = append(raw, addrs...)
		}
	}

	var found []netip.Addr
	for _, addr := range raw {
		// addr looks like ip+net:203.0.113.7/24
		p, err := netip.ParsePrefix(addr.String())
		if err != nil {
			continue
		}
		found = append(found, p.Addr())
	}
	found = lo.Filter(found, func(addr netip.Addr, _ int) bool {
		return family.Matches(addr) && isGlobal(addr)
	})
	if len(found) == 0 {
		return nil, errors.Wrapf(ErrNoAddress, "no global %s address", family)
	}
	return map[string][]netip.Addr{r.prefix: found}, nil
}

func isGlobal(addr netip.Addr) bool {
	if addr.Is4() || addr.Is4In6() {
		return !(addr.IsUnspecified() || addr.IsPrivate() || addr.IsLoopback() || addr.IsLinkLocalUnicast())
	}
	return !(addr.IsLoopback() || addr.IsUnspecified() || addr.IsLinkLocalUnicast())
}
