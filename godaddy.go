package ddnsd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/netip"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const godaddyAPI = "https://api.godaddy.com"

// NewGoDaddy returns a Provider managing records for domain through the
// GoDaddy v1 domains API.
//
// GoDaddy addresses records by (type, name) rather than by an opaque
// identifier, so the record handle carries those fields. A PUT replaces
// every record sharing the pair, which matches how this tool uses it:
// one address per handle.
func NewGoDaddy(apiKey, secret, domain string, logger *zap.Logger) (Provider, error) {
	if apiKey == "" || secret == "" {
		return nil, errors.New("godaddy requires an api key and secret")
	}
	_, root, err := SplitDomain(domain)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.Logger = nil
	return &godaddyProvider{
		client:  client,
		baseURL: godaddyAPI,
		domain:  root,
		apiKey:  apiKey,
		secret:  secret,
		logger:  logger,
	}, nil
}

type godaddyProvider struct {
	client  *retryablehttp.Client
	baseURL string
	domain  string
	apiKey  string
	secret  string
	logger  *zap.Logger
}

type godaddyRecord struct {
	kind string
	name string
	ttl  int
	addr netip.Addr
}

func (r *godaddyRecord) Addr() netip.Addr { return r.addr }

type godaddyWireRecord struct {
	Data string `json:"data"`
	Name string `json:"name,omitempty"`
	Type string `json:"type,omitempty"`
	TTL  int    `json:"ttl"`
}

func (gd *godaddyProvider) ListRecords(ctx context.Context, family Family) (map[string][]Record, error) {
	kind := family.RecordType()
	url := fmt.Sprintf("%s/v1/domains/%s/records/%s", gd.baseURL, gd.domain, kind)
	body, err := gd.do(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	var wire []godaddyWireRecord
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, errors.Wrapf(ErrProviderUnavailable, "decoding record list: %s", err)
	}

	groups := make(map[string][]Record)
	for _, w := range wire {
		addr, err := netip.ParseAddr(w.Data)
		if err != nil {
			gd.logger.Warn("skipping record with unparseable data",
				zap.String("name", w.Name), zap.String("data", w.Data))
			continue
		}
		groups[w.Name] = append(groups[w.Name], &godaddyRecord{
			kind: kind,
			name: w.Name,
			ttl:  w.TTL,
			addr: addr,
		})
	}
	return groups, nil
}

func (gd *godaddyProvider) CreateRecord(ctx context.Context, prefix string, addr netip.Addr, ttl int) error {
	url := fmt.Sprintf("%s/v1/domains/%s/records", gd.baseURL, gd.domain)
	payload := []godaddyWireRecord{{
		Data: addr.String(),
		Name: prefix,
		Type: recordType(addr),
		TTL:  ttl,
	}}
	_, err := gd.do(ctx, http.MethodPatch, url, payload)
	return err
}

func (gd *godaddyProvider) UpdateRecord(ctx context.Context, rec Record, addr netip.Addr) error {
	gdr, ok := rec.(*godaddyRecord)
	if !ok {
		return errors.Wrap(ErrProviderRejected, "record does not belong to this provider")
	}
	url := fmt.Sprintf("%s/v1/domains/%s/records/%s/%s", gd.baseURL, gd.domain, gdr.kind, gdr.name)
	payload := []godaddyWireRecord{{
		Data: addr.String(),
		TTL:  gdr.ttl,
	}}
	_, err := gd.do(ctx, http.MethodPut, url, payload)
	return err
}

func (gd *godaddyProvider) DeleteRecord(ctx context.Context, rec Record) error {
	gdr, ok := rec.(*godaddyRecord)
	if !ok {
		return errors.Wrap(ErrProviderRejected, "record does not belong to this provider")
	}
	url := fmt.Sprintf("%s/v1/domains/%s/records/%s/%s", gd.baseURL, gd.domain, gdr.kind, gdr.name)
	_, err := gd.do(ctx, http.MethodDelete, url, nil)
	return err
}

func (gd *godaddyProvider) do(ctx context.Context, method, url string, payload any) ([]byte, error) {
	var raw []byte
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, errors.Wrap(err, "encoding request body")
		}
		raw = b
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, url, raw)
	if err != nil {
		return nil, errors.Wrap(err, "creating request")
	}
	req.Header.Set("Authorization", fmt.Sprintf("sso-key %s:%s", gd.apiKey, gd.secret))
	if raw != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := gd.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(ErrProviderUnavailable, "%s %s: %s", method, url, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(ErrProviderUnavailable, "reading response: %s", err)
	}
	switch {
	case resp.StatusCode >= 500:
		return nil, errors.Wrapf(ErrProviderUnavailable, "%s %s returned %s", method, url, resp.Status)
	case resp.StatusCode >= 400:
		return nil, errors.Wrapf(ErrProviderRejected, "%s %s returned %s", method, url, resp.Status)
	}
	return body, nil
}
