package ddnsd

import (
	"context"
	"net/netip"
	"strings"
	"sync"

	"github.com/cloudflare/cloudflare-go"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// NewCloudflare returns a Provider managing A/AAAA records in the
// Cloudflare zone that contains domain. Record names are resolved
// relative to the registrable root of domain.
func NewCloudflare(token, domain string, logger *zap.Logger) (Provider, error) {
	api, err := cloudflare.NewWithAPIToken(token)
	if err != nil {
		return nil, errors.Wrap(err, "creating cloudflare api client")
	}
	_, root, err := SplitDomain(domain)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &cloudflareProvider{
		api:     api,
		root:    root,
		logger:  logger,
		comment: "managed by ddnsd",
	}, nil
}

type cloudflareProvider struct {
	api    *cloudflare.API
	root   string
	logger *zap.Logger

	comment string // attached to each record we create

	mu     sync.Mutex
	zoneID string
}

type cloudflareRecord struct {
	id   string
	name string
	ttl  int
	addr netip.Addr
}

func (r *cloudflareRecord) Addr() netip.Addr { return r.addr }

// zone looks up and caches the zone ID for the managed root. The ID is
// stable for the provider's lifetime; only record IDs are cycle-scoped.
func (cf *cloudflareProvider) zone(ctx context.Context) (string, error) {
	cf.mu.Lock()
	defer cf.mu.Unlock()
	if cf.zoneID != "" {
		return cf.zoneID, nil
	}
	zones, err := cf.api.ListZones(ctx)
	if err != nil {
		return "", errors.Wrapf(ErrProviderUnavailable, "listing zones: %s", err)
	}
	longest := 0
	for _, z := range zones {
		if strings.HasSuffix(cf.root, z.Name) && len(z.Name) > longest {
			longest, cf.zoneID = len(z.Name), z.ID
		}
	}
	if longest == 0 {
		return "", errors.Wrapf(ErrProviderRejected, "no zone matching %q", cf.root)
	}
	cf.logger.Debug("resolved cloudflare zone", zap.String("zone", cf.zoneID))
	return cf.zoneID, nil
}

func (cf *cloudflareProvider) ListRecords(ctx context.Context, family Family) (map[string][]Record, error) {
	zid, err := cf.zone(ctx)
	if err != nil {
		return nil, err
	}

	groups := make(map[string][]Record)
	params := cloudflare.ListDNSRecordsParams{
		Type:       family.RecordType(),
		ResultInfo: cloudflare.ResultInfo{PerPage: 50},
	}
	for {
		page, info, err := cf.api.ListDNSRecords(ctx, cloudflare.ZoneIdentifier(zid), params)
		if err != nil {
			return nil, errors.Wrapf(ErrProviderUnavailable, "listing dns records: %s", err)
		}
		for _, rec := range page {
			addr, err := netip.ParseAddr(rec.Content)
			if err != nil {
				cf.logger.Warn("skipping record with unparseable content",
					zap.String("name", rec.Name), zap.String("content", rec.Content))
				continue
			}
			prefix := Apex
			if rec.Name != cf.root {
				prefix = strings.TrimSuffix(rec.Name, "."+cf.root)
			}
			groups[prefix] = append(groups[prefix], &cloudflareRecord{
				id:   rec.ID,
				name: rec.Name,
				ttl:  rec.TTL,
				addr: addr,
			})
		}
		if info == nil {
			break
		}
		params.ResultInfo = info.Next()
		if params.ResultInfo.Done() {
			break
		}
	}
	return groups, nil
}

func (cf *cloudflareProvider) CreateRecord(ctx context.Context, prefix string, addr netip.Addr, ttl int) error {
	zid, err := cf.zone(ctx)
	if err != nil {
		return err
	}
	_, err = cf.api.CreateDNSRecord(ctx, cloudflare.ZoneIdentifier(zid), cloudflare.CreateDNSRecordParams{
		Type:    recordType(addr),
		Name:    JoinDomain(prefix, cf.root),
		Content: addr.String(),
		TTL:     ttl,
		Comment: cf.comment,
	})
	if err != nil {
		return errors.Wrapf(ErrProviderRejected, "creating record: %s", err)
	}
	return nil
}

func (cf *cloudflareProvider) UpdateRecord(ctx context.Context, rec Record, addr netip.Addr) error {
	cfr, ok := rec.(*cloudflareRecord)
	if !ok {
		return errors.Wrap(ErrProviderRejected, "record does not belong to this provider")
	}
	zid, err := cf.zone(ctx)
	if err != nil {
		return err
	}
	_, err = cf.api.UpdateDNSRecord(ctx, cloudflare.ZoneIdentifier(zid), cloudflare.UpdateDNSRecordParams{
		ID:      cfr.id,
		Type:    recordType(addr),
		Name:    cfr.name,
		Content: addr.String(),
		TTL:     cfr.ttl,
	})
	if err != nil {
		return errors.Wrapf(ErrProviderRejected, "updating record %s: %s", cfr.id, err)
	}
	return nil
}

func (cf *cloudflareProvider) DeleteRecord(ctx context.Context, rec Record) error {
	cfr, ok := rec.(*cloudflareRecord)
	if !ok {
		return errors.Wrap(ErrProviderRejected, "record does not belong to this provider")
	}
	zid, err := cf.zone(ctx)
	if err != nil {
		return err
	}
	if err := cf.api.DeleteDNSRecord(ctx, cloudflare.ZoneIdentifier(zid), cfr.id); err != nil {
		return errors.Wrapf(ErrProviderRejected, "deleting record %s: %s", cfr.id, err)
	}
	return nil
}

func recordType(addr netip.Addr) string {
	if addr.Is4() || addr.Is4In6() {
		return "A"
	}
	return "AAAA"
}
