// Package safety implements the SSRF policy check for submitted URLs.
package safety

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"net/url"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/atlas-search/search-core/internal/search"
)

// Resolver looks up the IP addresses for a hostname. *net.Resolver
// satisfies it.
type Resolver interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

// blockedNetworks is the fixed deny-list of reserved ranges: loopback,
// RFC1918 private ranges and link-local (which covers cloud metadata
// endpoints).
var blockedNetworks = []netip.Prefix{
	netip.MustParsePrefix("127.0.0.0/8"),
	netip.MustParsePrefix("::1/128"),
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("169.254.0.0/16"),
}

// Config controls resolution behavior.
type Config struct {
	// Timeout bounds a single hostname lookup. A hostname under
	// adversarial control that never answers must not hold a slot forever.
	Timeout time.Duration
	// MaxParallel bounds concurrent resolutions across all requests.
	MaxParallel int64
}

// Validator resolves a URL's hostname and rejects it when any resolved
// address falls in a reserved range. It holds no per-URL state and never
// caches verdicts: DNS answers change between calls, so a passed check is
// valid only for the immediately following action.
type Validator struct {
	resolver Resolver
	sem      *semaphore.Weighted
	timeout  time.Duration
	logger   *zap.Logger
}

// New constructs a Validator. A nil resolver falls back to net.DefaultResolver.
func New(cfg Config, resolver Resolver, logger *zap.Logger) *Validator {
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = 32
	}
	return &Validator{
		resolver: resolver,
		sem:      semaphore.NewWeighted(cfg.MaxParallel),
		timeout:  cfg.Timeout,
		logger:   logger,
	}
}

// Validate parses the URL, resolves its hostname and checks every resolved
// address against the deny-list. Errors wrap the search sentinel taxonomy.
func (v *Validator) Validate(ctx context.Context, rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: parse url: %v", search.ErrInvalidInput, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: unsupported scheme %q", search.ErrInvalidInput, u.Scheme)
	}
	host := u.Hostname()
	if host == "" {
		return fmt.Errorf("%w: url has no hostname", search.ErrInvalidInput)
	}

	// A literal IP needs no resolution.
	if addr, parseErr := netip.ParseAddr(host); parseErr == nil {
		return v.checkAddr(host, addr)
	}

	addrs, err := v.resolve(ctx, host)
	if err != nil {
		return err
	}
	for _, ipAddr := range addrs {
		addr, ok := netip.AddrFromSlice(ipAddr.IP)
		if !ok {
			continue
		}
		if err := v.checkAddr(host, addr); err != nil {
			return err
		}
	}
	return nil
}

func (v *Validator) resolve(ctx context.Context, host string) ([]net.IPAddr, error) {
	if err := v.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("%w: %v", search.ErrResolutionFailure, err)
	}
	defer v.sem.Release(1)

	lookupCtx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()
	addrs, err := v.resolver.LookupIPAddr(lookupCtx, host)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", search.ErrResolutionFailure, host, err)
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("%w: %q resolved to no addresses", search.ErrResolutionFailure, host)
	}
	return addrs, nil
}

func (v *Validator) checkAddr(host string, addr netip.Addr) error {
	candidate := addr.Unmap()
	for _, network := range blockedNetworks {
		if network.Contains(candidate) {
			v.logger.Warn("blocked crawl target in reserved range",
				zap.String("host", host),
				zap.String("address", candidate.String()),
			)
			return fmt.Errorf("%w: access to restricted network (%s -> %s) is forbidden",
				search.ErrForbiddenNetwork, host, candidate)
		}
	}
	return nil
}
