package ddnsd

import (
	"context"
	"net/netip"
	"sort"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// Applied is one (prefix, address) pair that a reconciliation cycle
// created, repointed, or (in force mode) reaffirmed at the provider.
type Applied struct {
	Prefix string
	Addr   netip.Addr
}

// Reconcile fetches the provider's current records for family, diffs
// them against the locally observed addresses in local, and applies the
// minimal set of create/update/delete calls. Existing record identities
// are reused wherever possible: an address rotation costs one update,
// not a delete plus a create.
//
// The returned slice holds every address that ended up live because of
// this cycle, in the order it was applied. An empty result means the
// provider already matched.
//
// When force is set, records whose address already matches are
// re-submitted unchanged. Most providers will not show an observable
// change for these calls; the point is to refresh TTL and other
// provider-side metadata.
//
// A failing provider call aborts the rest of that prefix and returns
// the error. Mutations already applied are not rolled back; the next
// cycle re-diffs and converges.
func Reconcile(ctx context.Context, logger *zap.Logger, provider Provider, local map[string][]netip.Addr, ttl int, force bool, family Family) ([]Applied, error) {
	remote, err := provider.ListRecords(ctx, family)
	if err != nil {
		return nil, errors.Wrap(err, "listing remote records")
	}
	if len(remote) == 0 {
		logger.Info("no remote records for zone", zap.Stringer("family", family))
	} else {
		logger.Info("fetched remote records",
			zap.Stringer("family", family),
			zap.Strings("records", describeRemote(remote)))
	}

	var applied []Applied

	// Sorted prefix order keeps provider call sequences reproducible.
	prefixes := lo.Keys(local)
	sort.Strings(prefixes)

	for _, prefix := range prefixes {
		addrs := local[prefix]
		records, exists := remote[prefix]
		if !exists {
			for _, addr := range addrs {
				logger.Info("creating record", zap.String("prefix", prefix), zap.Stringer("addr", addr))
				if err := provider.CreateRecord(ctx, prefix, addr, ttl); err != nil {
					return applied, errors.Wrapf(err, "creating record for %s", addr)
				}
				applied = append(applied, Applied{Prefix: prefix, Addr: addr})
			}
			continue
		}

		localSet := newAddrSet()
		for _, addr := range addrs {
			localSet.add(addr, nil)
		}
		remoteSet := newAddrSet()
		var dupes []Record
		for _, rec := range records {
			if remoteSet.has(rec.Addr()) {
				dupes = append(dupes, rec)
				continue
			}
			remoteSet.add(rec.Addr(), rec)
		}

		if force {
			for _, addr := range localSet.order {
				rec, ok := remoteSet.get(addr)
				if !ok {
					continue
				}
				logger.Info("force refreshing record", zap.String("prefix", prefix), zap.Stringer("addr", addr))
				if err := provider.UpdateRecord(ctx, rec, addr); err != nil {
					return applied, errors.Wrapf(err, "refreshing record for %s", addr)
				}
				applied = append(applied, Applied{Prefix: prefix, Addr: addr})
			}
		}

		stale := remoteSet.except(localSet) // records whose address is no longer local
		fresh := localSet.except(remoteSet) // local addresses with no record yet

		// Pair stale records with fresh addresses positionally; each
		// pair is a single update that repoints the existing record.
		n := len(stale)
		if len(fresh) < n {
			n = len(fresh)
		}
		for i := 0; i < n; i++ {
			rec, _ := remoteSet.get(stale[i])
			addr := fresh[i]
			logger.Info("updating record",
				zap.String("prefix", prefix),
				zap.Stringer("from", stale[i]),
				zap.Stringer("to", addr))
			if err := provider.UpdateRecord(ctx, rec, addr); err != nil {
				return applied, errors.Wrapf(err, "updating record to %s", addr)
			}
			applied = append(applied, Applied{Prefix: prefix, Addr: addr})
		}
		for _, addr := range stale[n:] {
			rec, _ := remoteSet.get(addr)
			logger.Info("deleting surplus record", zap.String("prefix", prefix), zap.Stringer("addr", addr))
			if err := provider.DeleteRecord(ctx, rec); err != nil {
				return applied, errors.Wrapf(err, "deleting record for %s", addr)
			}
		}
		// Addresses are the only identity the diff knows; extra records
		// carrying an address already seen are pruned so exactly one
		// record per (prefix, address) remains.
		for _, rec := range dupes {
			logger.Info("deleting duplicate record", zap.String("prefix", prefix), zap.Stringer("addr", rec.Addr()))
			if err := provider.DeleteRecord(ctx, rec); err != nil {
				return applied, errors.Wrapf(err, "deleting duplicate record for %s", rec.Addr())
			}
		}
		for _, addr := range fresh[n:] {
			logger.Info("creating record", zap.String("prefix", prefix), zap.Stringer("addr", addr))
			if err := provider.CreateRecord(ctx, prefix, addr, ttl); err != nil {
				return applied, errors.Wrapf(err, "creating record for %s", addr)
			}
			applied = append(applied, Applied{Prefix: prefix, Addr: addr})
		}
	}

	if len(applied) == 0 {
		logger.Info("remote already matches local, nothing to do")
	}
	return applied, nil
}

// addrSet is an insertion-ordered address set. Membership is by address
// value only; each member may carry a back-reference to the provider
// record it came from. Duplicate addresses collapse to the first entry.
type addrSet struct {
	order []netip.Addr
	recs  map[netip.Addr]Record
}

func newAddrSet() *addrSet {
	return &addrSet{recs: make(map[netip.Addr]Record)}
}

func (s *addrSet) add(addr netip.Addr, rec Record) {
	if _, ok := s.recs[addr]; ok {
		return
	}
	s.order = append(s.order, addr)
	s.recs[addr] = rec
}

func (s *addrSet) has(addr netip.Addr) bool {
	_, ok := s.recs[addr]
	return ok
}

func (s *addrSet) get(addr netip.Addr) (Record, bool) {
	rec, ok := s.recs[addr]
	return rec, ok
}

// except returns the members of s absent from other, in insertion order.
func (s *addrSet) except(other *addrSet) []netip.Addr {
	return lo.Filter(s.order, func(addr netip.Addr, _ int) bool {
		return !other.has(addr)
	})
}

func describeRemote(remote map[string][]Record) []string {
	prefixes := lo.Keys(remote)
	sort.Strings(prefixes)
	var out []string
	for _, prefix := range prefixes {
		for _, rec := range remote[prefix] {
			out = append(out, prefix+" -> "+rec.Addr().String())
		}
	}
	return out
}
