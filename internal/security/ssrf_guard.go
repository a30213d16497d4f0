// Package security はアプリケーションのセキュリティ機能を提供する。
package security

import (
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

// URLPolicy は外部URLへのアクセス可否を判断する。思い出の画像URL検証で使う。
type URLPolicy interface {
	// NewSafeClient は接続先IPをDNS解決後に検査するHTTPクライアントを返す。
	NewSafeClient(timeout time.Duration) *http.Client
	// ValidateURL は接続せずに判断できる範囲でURLを検査する。
	// 拒否した場合はErrBlockedまたはErrInvalidURLをラップしたエラーを返す。
	ValidateURL(rawURL string) error
	// Trusted はプラットフォーム自身のストレージを指すURLかどうかを返す。
	Trusted(rawURL string) bool
}

var (
	// ErrBlocked は内部ネットワーク宛てのURLであることを表す。
	ErrBlocked = errors.New("security: blocked destination")
	// ErrInvalidURL はURLの書式やスキームが不正であることを表す。
	ErrInvalidURL = errors.New("security: invalid url")
)

// blockedPrefixes は画像URLとして受け付けない宛先。
// 169.254.0.0/16はクラウドのメタデータエンドポイントを含む。
var blockedPrefixes = mustParsePrefixes(
	"0.0.0.0/8",
	"10.0.0.0/8",
	"100.64.0.0/10",
	"127.0.0.0/8",
	"169.254.0.0/16",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"::1/128",
	"fc00::/7",
	"fe80::/10",
)

var blockedHostnames = []string{"localhost", "metadata.google.internal"}

func mustParsePrefixes(cidrs ...string) []netip.Prefix {
	out := make([]netip.Prefix, 0, len(cidrs))
	for _, c := range cidrs {
		out = append(out, netip.MustParsePrefix(c))
	}
	return out
}

// URLGuard はURLPolicyの実装。実際の接続はsafeurlのDialerが検査するため、
// DNSリバインディングで内部アドレスに解決された場合も接続前に拒否される。
type URLGuard struct {
	trusted []*url.URL
}

// NewURLGuard はURLGuardを生成する。trustedBaseURLs配下のURL(アバターの公開URLなど)は
// 内部アドレスを指していても信頼済みとして扱う。
func NewURLGuard(trustedBaseURLs ...string) *URLGuard {
	g := &URLGuard{}
	for _, raw := range trustedBaseURLs {
		u, err := url.Parse(strings.TrimRight(raw, "/"))
		if err != nil || u.Host == "" {
			continue
		}
		g.trusted = append(g.trusted, u)
	}
	return g
}

// NewSafeClient はhttp/httpsの80番と443番だけに接続するクライアントを返す。
func (g *URLGuard) NewSafeClient(timeout time.Duration) *http.Client {
	cfg := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes("http", "https").
		SetAllowedPorts(80, 443).
		Build()
	return safeurl.Client(cfg).Client
}

// ValidateURL はURLPolicyを実装する。
func (g *URLGuard) ValidateURL(rawURL string) error {
	u, err := parseHTTPURL(rawURL)
	if err != nil {
		return err
	}

	host := u.Hostname()
	if addr, err := netip.ParseAddr(host); err == nil {
		if blockedAddr(addr) {
			return fmt.Errorf("%w: %s", ErrBlocked, addr)
		}
		return nil
	}

	name := strings.TrimSuffix(strings.ToLower(host), ".")
	for _, blocked := range blockedHostnames {
		if name == blocked || strings.HasSuffix(name, "."+blocked) {
			return fmt.Errorf("%w: %s", ErrBlocked, host)
		}
	}
	return nil
}

// Trusted はURLPolicyを実装する。スキームとホストが一致し、パスがベースURL配下の場合に真。
func (g *URLGuard) Trusted(rawURL string) bool {
	u, err := parseHTTPURL(rawURL)
	if err != nil {
		return false
	}
	for _, base := range g.trusted {
		if !strings.EqualFold(u.Scheme, base.Scheme) || !strings.EqualFold(u.Host, base.Host) {
			continue
		}
		if base.Path == "" || u.Path == base.Path || strings.HasPrefix(u.Path, base.Path+"/") {
			return true
		}
	}
	return false
}

func parseHTTPURL(rawURL string) (*url.URL, error) {
	if rawURL == "" {
		return nil, fmt.Errorf("%w: empty URL", ErrInvalidURL)
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return nil, fmt.Errorf("%w: disallowed scheme %q", ErrInvalidURL, u.Scheme)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("%w: empty host", ErrInvalidURL)
	}
	return u, nil
}

func blockedAddr(addr netip.Addr) bool {
	addr = addr.Unmap()
	for _, p := range blockedPrefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
