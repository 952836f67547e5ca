package ddnsd

import (
	"bufio"
	"context"
	stderrors "errors"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// WebResolver constructs a resolver which asks external web services
// for our public IP and publishes the answer under prefix.
//
// Each serviceURL must speak http and return status 200 with a valid
// IPv4 or IPv6 address as the first line of the response body.
//
// With a single serviceURL the resolver simply returns the response.
// With multiple, it queries up to three of them and only succeeds when
// the first two non-error responses agree on the address. DNS records
// are a sensitive thing to hand to a third party, so one wrong or
// compromised service must not be enough to repoint them.
//
// Services answer over whichever family the connection used, so a
// family-specific endpoint (e.g. https://v4.example.com) should be
// configured for each family the task selects; a response of the wrong
// family counts as a failed lookup.
func WebResolver(prefix string, serviceURL ...string) (Resolver, error) {
	var urls []*url.URL
	for _, u := range serviceURL {
		pu, err := url.Parse(u)
		if err != nil {
			return nil, errors.Wrapf(err, "parsing service url %q", u)
		}
		urls = append(urls, pu)
	}
	if len(urls) == 0 {
		return nil, errors.New("no ip lookup services were provided")
	}
	return &webResolver{prefix: prefix, serviceURLs: urls}, nil
}

type webResolver struct {
	prefix      string
	serviceURLs []*url.URL
	httpClient  *http.Client
}

func (wr *webResolver) Resolve(ctx context.Context, family Family) (map[string][]netip.Addr, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		addr netip.Addr
		err  error
	}

	results := make(chan result, 2)
	const useCount = 3

	serviceCount := len(wr.serviceURLs)
	var wg sync.WaitGroup
	wg.Add(useCount)
	for i := 0; i < useCount; i++ {
		u := wr.serviceURLs[i%serviceCount]
		go func() {
			defer wg.Done()
			r := result{}
			r.addr, r.err = wr.lookup(ctx, u)
			if r.err == nil && !family.Matches(r.addr) {
				r.err = errors.Wrapf(ErrNoAddress, "service answered with %s, want %s", r.addr, family)
			}
			select {
			case results <- r:
			default:
			}
		}()
	}
	go func() { wg.Wait(); close(results) }()

	agreed := 0
	var errs []error
	var ip netip.Addr
	for r := range results {
		if r.err != nil {
			errs = append(errs, r.err)
			continue
		}
		agreed++
		if (ip == netip.Addr{}) {
			ip = r.addr
			continue
		}
		if ip == r.addr {
			return map[string][]netip.Addr{wr.prefix: {ip}}, nil
		}
	}
	if agreed < 2 {
		return nil, errors.Wrapf(joinErrs(errs), "not enough ip lookup services responded")
	}
	return nil, errors.New("ip lookup services did not agree on our address")
}

func (wr *webResolver) lookup(ctx context.Context, u *url.URL) (netip.Addr, error) {
	// 15 seconds is an eternity for a request this small, but it bounds
	// every lookup even when the caller passed context.Background and a
	// client with no timeout.
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return netip.Addr{}, errors.Wrap(err, "creating request")
	}
	req.Header.Set("Cache-Control", "no-cache")

	httpclient := wr.httpClient
	if httpclient == nil {
		httpclient = http.DefaultClient
	}

	resp, err := httpclient.Do(req)
	if err != nil {
		return netip.Addr{}, errors.Wrap(err, "http request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return netip.Addr{}, errors.Errorf("http request returned %s", resp.Status)
	}

	line, _ := bufio.NewReader(resp.Body).ReadString('\n')
	addr, err := netip.ParseAddr(strings.TrimSpace(line))
	if err != nil {
		return netip.Addr{}, errors.Wrap(err, "parsing address from response body")
	}
	return addr, nil
}

func joinErrs(errs []error) error {
	if len(errs) == 0 {
		return errors.New("no responses")
	}
	return stderrors.Join(errs...)
}
