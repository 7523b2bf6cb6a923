package discovery

import (
	"bufio"
	"net/netip"
	"strings"

	"github.com/pkg/errors"
)

// Neighbor is one entry of the OS address resolution cache.
type Neighbor struct {
	Address         netip.Addr
	HardwareAddress string
}

// HardwareAddressPrefix is a vendor prefix stored as lower case hex digits
// with separators removed.
type HardwareAddressPrefix string

var ErrInvalidPrefix = errors.New("invalid hardware address prefix")

func ParseHardwareAddressPrefix(s string) (HardwareAddressPrefix, error) {
	norm := strings.ToLower(stripSeparators(strings.TrimSpace(s)))
	if norm == "" || len(norm) > 12 {
		return "", errors.Wrapf(ErrInvalidPrefix, "%q", s)
	}
	for _, r := range norm {
		if !isHex(byte(r)) {
			return "", errors.Wrapf(ErrInvalidPrefix, "%q", s)
		}
	}
	return HardwareAddressPrefix(norm), nil
}

// Matches reports whether hw starts with the prefix. hw may use colons or
// hyphens and any case.
func (p HardwareAddressPrefix) Matches(hw string) bool {
	norm := normalizeHardwareAddress(hw)
	if p == "" || norm == "" {
		return false
	}
	return strings.HasPrefix(stripSeparators(norm), string(p))
}

func (p HardwareAddressPrefix) String() string {
	var b strings.Builder
	for i := 0; i < len(p); i += 2 {
		if i > 0 {
			b.WriteByte(':')
		}
		end := min(i+2, len(p))
		b.WriteString(string(p[i:end]))
	}
	return b.String()
}

// Match returns the first neighbor inside subnet whose hardware address
// carries the prefix.
func Match(neighbors []Neighbor, subnet netip.Prefix, prefix HardwareAddressPrefix) (Neighbor, bool) {
	for _, n := range neighbors {
		if subnet.IsValid() && !subnet.Contains(n.Address) {
			continue
		}
		if prefix.Matches(n.HardwareAddress) {
			return n, true
		}
	}
	return Neighbor{}, false
}

// ParseNeighborTable extracts address/hardware address pairs from the text of
// /proc/net/arp or the output of `arp -a`. Tokens are recognised by shape, so
// the column layout of the platform does not matter.
func ParseNeighborTable(text string) []Neighbor {
	var out []Neighbor
	sc := bufio.NewScanner(strings.NewReader(text))
	for sc.Scan() {
		var (
			addr netip.Addr
			hw   string
		)
		for _, tok := range strings.Fields(sc.Text()) {
			if !addr.IsValid() && strings.Count(tok, ".") == 3 {
				if a, err := netip.ParseAddr(strings.Trim(tok, "()")); err == nil && a.Is4() {
					addr = a
					continue
				}
			}
			if hw == "" && strings.ContainsAny(tok, ":-") {
				hw = normalizeHardwareAddress(tok)
			}
		}
		if !addr.IsValid() || hw == "" || hw == "00:00:00:00:00:00" || hw == "ff:ff:ff:ff:ff:ff" {
			continue
		}
		out = append(out, Neighbor{Address: addr, HardwareAddress: hw})
	}
	return out
}

// normalizeHardwareAddress returns a six octet address as lower case,
// colon separated, zero padded hex, or "" when s is not one.
func normalizeHardwareAddress(s string) string {
	parts := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool { return r == ':' || r == '-' })
	if len(parts) != 6 {
		return ""
	}
	for i, p := range parts {
		if len(p) > 2 {
			return ""
		}
		for j := 0; j < len(p); j++ {
			if !isHex(p[j]) {
				return ""
			}
		}
		if len(p) == 1 {
			parts[i] = "0" + p
		}
	}
	return strings.Join(parts, ":")
}

func stripSeparators(s string) string {
	return strings.NewReplacer(":", "", "-", "", ".", "").Replace(s)
}

func isHex(c byte) bool {
	return c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F'
}
