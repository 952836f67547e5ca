package ddnsd

import (
	"context"
	"net/netip"
)

// Family selects between IPv4 and IPv6 addresses and records.
type Family int

const (
	FamilyV4 Family = iota + 1
	FamilyV6
)

func (f Family) String() string {
	switch f {
	case FamilyV4:
		return "IPv4"
	case FamilyV6:
		return "IPv6"
	default:
		return "unknown"
	}
}

// RecordType returns the DNS record type managed for this family.
func (f Family) RecordType() string {
	if f == FamilyV6 {
		return "AAAA"
	}
	return "A"
}

// Matches reports whether addr belongs to this family.
func (f Family) Matches(addr netip.Addr) bool {
	switch f {
	case FamilyV4:
		return addr.Is4() || addr.Is4In6()
	case FamilyV6:
		return addr.Is6() && !addr.Is4In6()
	default:
		return false
	}
}

// Resolver reports the current addresses of some local vantage point,
// grouped by the DNS-name prefix they should be published under
// ("@" for the zone apex).
type Resolver interface {
	Resolve(ctx context.Context, family Family) (map[string][]netip.Addr, error)
}

// Record is a handle to an existing remote DNS record. Handles are only
// valid within the reconciliation cycle that listed them; providers may
// reassign identifiers between cycles.
type Record interface {
	Addr() netip.Addr
}

// Provider is the capability the reconciliation engine drives. List
// returns the provider's present records for one address family grouped
// by prefix; the mutators operate on a single record each.
type Provider interface {
	ListRecords(ctx context.Context, family Family) (map[string][]Record, error)
	CreateRecord(ctx context.Context, prefix string, addr netip.Addr, ttl int) error
	UpdateRecord(ctx context.Context, rec Record, addr netip.Addr) error
	DeleteRecord(ctx context.Context, rec Record) error
}

// Notifier delivers a "these addresses are now live" message after a
// cycle that changed something. Delivery failures never roll back DNS
// changes.
type Notifier interface {
	Notify(ctx context.Context, addrs []netip.Addr) error
}
