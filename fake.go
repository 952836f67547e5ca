package ddnsd

import (
	"context"
	"fmt"
	"net/netip"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// NewFake returns an in-memory Provider. It keeps records in process
// memory and logs every mutation, which makes it useful both as a
// dry-run provider kind and as a test double.
func NewFake(logger *zap.Logger) *Fake {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fake{
		logger:  logger,
		records: make(map[string][]*fakeRecord),
	}
}

type Fake struct {
	logger *zap.Logger

	mu      sync.Mutex
	nextID  int
	records map[string][]*fakeRecord
	ops     []string

	// Fail, when set, is returned by every provider call.
	Fail error
}

type fakeRecord struct {
	id     int
	prefix string
	addr   netip.Addr
	ttl    int
}

func (r *fakeRecord) Addr() netip.Addr { return r.addr }

// Seed installs a record directly, bypassing the op log.
func (f *Fake) Seed(prefix string, addrs ...netip.Addr) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, addr := range addrs {
		f.nextID++
		f.records[prefix] = append(f.records[prefix], &fakeRecord{id: f.nextID, prefix: prefix, addr: addr})
	}
}

// Ops returns the mutation log: one "create|update|delete ..." entry per
// provider call, in order.
func (f *Fake) Ops() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.ops...)
}

// Addrs returns the current addresses stored under prefix.
func (f *Fake) Addrs(prefix string) []netip.Addr {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []netip.Addr
	for _, rec := range f.records[prefix] {
		out = append(out, rec.addr)
	}
	return out
}

func (f *Fake) ListRecords(ctx context.Context, family Family) (map[string][]Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Fail != nil {
		return nil, f.Fail
	}
	groups := make(map[string][]Record)
	for prefix, recs := range f.records {
		for _, rec := range recs {
			if family.Matches(rec.addr) {
				groups[prefix] = append(groups[prefix], rec)
			}
		}
	}
	return groups, nil
}

func (f *Fake) CreateRecord(ctx context.Context, prefix string, addr netip.Addr, ttl int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Fail != nil {
		return f.Fail
	}
	f.nextID++
	f.records[prefix] = append(f.records[prefix], &fakeRecord{id: f.nextID, prefix: prefix, addr: addr, ttl: ttl})
	f.ops = append(f.ops, fmt.Sprintf("create %s %s", prefix, addr))
	f.logger.Info("fake: created record", zap.String("prefix", prefix), zap.Stringer("addr", addr))
	return nil
}

func (f *Fake) UpdateRecord(ctx context.Context, rec Record, addr netip.Addr) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Fail != nil {
		return f.Fail
	}
	fr, ok := rec.(*fakeRecord)
	if !ok {
		return errors.Wrap(ErrProviderRejected, "record does not belong to this provider")
	}
	old := fr.addr
	fr.addr = addr
	f.ops = append(f.ops, fmt.Sprintf("update %s %s -> %s", fr.prefix, old, addr))
	f.logger.Info("fake: updated record", zap.String("prefix", fr.prefix), zap.Stringer("addr", addr))
	return nil
}

func (f *Fake) DeleteRecord(ctx context.Context, rec Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Fail != nil {
		return f.Fail
	}
	fr, ok := rec.(*fakeRecord)
	if !ok {
		return errors.Wrap(ErrProviderRejected, "record does not belong to this provider")
	}
	recs := f.records[fr.prefix]
	for i, candidate := range recs {
		if candidate.id == fr.id {
			f.records[fr.prefix] = append(recs[:i:i], recs[i+1:]...)
			break
		}
	}
	f.ops = append(f.ops, fmt.Sprintf("delete %s %s", fr.prefix, fr.addr))
	f.logger.Info("fake: deleted record", zap.String("prefix", fr.prefix), zap.Stringer("addr", fr.addr))
	return nil
}
