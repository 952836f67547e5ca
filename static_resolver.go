package ddnsd

import (
	"context"
	"net/netip"

	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// StaticResolver constructs a resolver that always reports the given
// fixed addresses under prefix. Useful for hosts whose public address
// is known out of band.
func StaticResolver(prefix string, addrs ...string) (Resolver, error) {
	parsed := make([]netip.Addr, 0, len(addrs))
	for _, a := range addrs {
		addr, err := netip.ParseAddr(a)
		if err != nil {
			return nil, errors.Wrapf(err, "parsing address %q", a)
		}
		parsed = append(parsed, addr)
	}
	return &staticResolver{prefix: prefix, addrs: parsed}, nil
}

type staticResolver struct {
	prefix string
	addrs  []netip.Addr
}

func (r *staticResolver) Resolve(ctx context.Context, family Family) (map[string][]netip.Addr, error) {
	matching := lo.Filter(r.addrs, func(addr netip.Addr, _ int) bool {
		return family.Matches(addr)
	})
	if len(matching) == 0 {
		return nil, errors.Wrapf(ErrNoAddress, "no static %s address configured", family)
	}
	return map[string][]netip.Addr{r.prefix: matching}, nil
}
