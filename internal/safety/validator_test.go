package safety

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/atlas-search/search-core/internal/search"
)

type fakeResolver struct {
	addrs map[string][]string
	err   error
	block bool
}

func (f *fakeResolver) LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error) {
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	ips, ok := f.addrs[host]
	if !ok {
		return nil, &net.DNSError{Err: "no such host", Name: host, IsNotFound: true}
	}
	out := make([]net.IPAddr, 0, len(ips))
	for _, raw := range ips {
		out = append(out, net.IPAddr{IP: net.ParseIP(raw)})
	}
	return out, nil
}

func newTestValidator(resolver Resolver) *Validator {
	return New(Config{Timeout: time.Second, MaxParallel: 4}, resolver, zap.NewNop())
}

func TestValidate_AllowsPublicAddress(t *testing.T) {
	t.Parallel()

	v := newTestValidator(&fakeResolver{addrs: map[string][]string{
		"example.com": {"93.184.216.34"},
	}})
	require.NoError(t, v.Validate(context.Background(), "https://example.com/page"))
}

func TestValidate_RejectsReservedRanges(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		ip   string
	}{
		{"loopback", "127.0.0.1"},
		{"loopback high", "127.255.255.254"},
		{"rfc1918 ten", "10.1.2.3"},
		{"rfc1918 mid", "172.16.50.1"},
		{"rfc1918 edge", "172.31.255.255"},
		{"rfc1918 home", "192.168.0.10"},
		{"link local", "169.254.169.254"},
		{"v6 loopback", "::1"},
		{"v4 mapped loopback", "::ffff:127.0.0.1"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			v := newTestValidator(&fakeResolver{addrs: map[string][]string{
				"internal.test": {tc.ip},
			}})
			err := v.Validate(context.Background(), "http://internal.test/admin")
			require.ErrorIs(t, err, search.ErrForbiddenNetwork)
			require.Contains(t, err.Error(), "internal.test")
		})
	}
}

func TestValidate_RejectsWhenAnyAddressIsBlocked(t *testing.T) {
	t.Parallel()

	// A rebinding-style answer mixing a public and a private address must
	// still be rejected.
	v := newTestValidator(&fakeResolver{addrs: map[string][]string{
		"mixed.test": {"93.184.216.34", "10.0.0.5"},
	}})
	err := v.Validate(context.Background(), "http://mixed.test/")
	require.ErrorIs(t, err, search.ErrForbiddenNetwork)
}

func TestValidate_LiteralIPNeedsNoResolution(t *testing.T) {
	t.Parallel()

	v := newTestValidator(&fakeResolver{err: errors.New("resolver must not be called")})
	err := v.Validate(context.Background(), "http://127.0.0.1:8080/admin")
	require.ErrorIs(t, err, search.ErrForbiddenNetwork)

	require.NoError(t, v.Validate(context.Background(), "http://93.184.216.34/"))
}

func TestValidate_InvalidInput(t *testing.T) {
	t.Parallel()

	v := newTestValidator(&fakeResolver{})
	for _, raw := range []string{
		"http://",
		"ftp://example.com/file",
		"not a url\x7f://",
	} {
		err := v.Validate(context.Background(), raw)
		require.ErrorIs(t, err, search.ErrInvalidInput, "url %q", raw)
	}
}

func TestValidate_ResolutionFailure(t *testing.T) {
	t.Parallel()

	v := newTestValidator(&fakeResolver{})
	err := v.Validate(context.Background(), "https://does-not-exist.test/")
	require.ErrorIs(t, err, search.ErrResolutionFailure)
}

func TestValidate_ResolutionTimeout(t *testing.T) {
	t.Parallel()

	v := New(Config{Timeout: 20 * time.Millisecond, MaxParallel: 1}, &fakeResolver{block: true}, zap.NewNop())
	start := time.Now()
	err := v.Validate(context.Background(), "https://tarpit.test/")
	require.ErrorIs(t, err, search.ErrResolutionFailure)
	require.Less(t, time.Since(start), time.Second)
}

func TestValidate_NoStandingGuarantee(t *testing.T) {
	t.Parallel()

	// The same URL is re-resolved on every call; a changed DNS answer
	// changes the verdict.
	resolver := &fakeResolver{addrs: map[string][]string{
		"flip.test": {"93.184.216.34"},
	}}
	v := newTestValidator(resolver)
	require.NoError(t, v.Validate(context.Background(), "http://flip.test/"))

	resolver.addrs["flip.test"] = []string{"192.168.1.1"}
	err := v.Validate(context.Background(), "http://flip.test/")
	require.ErrorIs(t, err, search.ErrForbiddenNetwork)
}

func TestValidate_ConcurrentLookupsBounded(t *testing.T) {
	t.Parallel()

	v := New(Config{Timeout: time.Second, MaxParallel: 2}, &fakeResolver{addrs: map[string][]string{
		"example.com": {"93.184.216.34"},
	}}, zap.NewNop())

	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		go func(n int) {
			errs <- v.Validate(context.Background(), fmt.Sprintf("https://example.com/%d", n))
		}(i)
	}
	for i := 0; i < 8; i++ {
		require.NoError(t, <-errs)
	}
}
