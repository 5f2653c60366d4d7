// Package addr provides the concrete prefix/address types that satisfy
// fib.Key and fib.LPMKey. fib.Table treats these as an external
// collaborator (spec.md §1): it never looks past the Key interface.
package addr

import (
	"fmt"
	"net"

	"github.com/cespare/xxhash/v2"

	"github.com/nicofore/bird/fib"
)

// Prefix is a network address of a fixed byte length together with a
// prefix length in bits. It canonicalizes itself at construction — every
// bit past Length is zeroed — so two Prefixes with the same Family,
// Length and raw bytes are always equal and always hash identically,
// regardless of what garbage bits the caller's source net.IP carried.
type Prefix struct {
	family fib.Family
	bytes  [16]byte // big-endian; only the family's natural length is used
	length int       // bits
}

// ByteLen returns the number of significant address bytes for p's family
// (spec.md's external `length(a) -> bytes` collaborator).
func (p Prefix) ByteLen() int {
	if p.family.IsV6() {
		return 16
	}
	return 4
}

// NewIP4 builds an IPv4-family prefix from ip (a 4-byte or 4-in-16 byte
// net.IP) and a /length mask. length must be in [0, 32].
func NewIP4(family fib.Family, ip net.IP, length int) Prefix {
	return newPrefix(family, ip.To4(), length, 32)
}

// NewIP6 builds an IPv6-family prefix. length must be in [0, 128].
func NewIP6(family fib.Family, ip net.IP, length int) Prefix {
	return newPrefix(family, ip.To16(), length, 128)
}

func newPrefix(family fib.Family, ip net.IP, length, maxLen int) Prefix {
	if ip == nil {
		panic("addr: invalid IP for family")
	}
	if length < 0 || length > maxLen {
		panic(fmt.Sprintf("addr: prefix length %d out of range [0,%d]", length, maxLen))
	}
	p := Prefix{family: family, length: length}
	copy(p.bytes[:len(ip)], ip)
	p.mask()
	return p
}

// mask clears every bit past p.length, keeping the canonical form the
// equality/hash contract relies on.
func (p *Prefix) mask() {
	n := p.ByteLen()
	fullBytes := p.length / 8
	rem := p.length % 8
	for i := fullBytes; i < n; i++ {
		if i == fullBytes && rem != 0 {
			keep := byte(0xFF << (8 - rem))
			p.bytes[i] &= keep
			continue
		}
		p.bytes[i] = 0
	}
}

// Family implements fib.Key.
func (p Prefix) Family() fib.Family { return p.family }

// Hash implements fib.Key using xxhash over the family tag, prefix length
// and canonicalized address bytes.
func (p Prefix) Hash() uint32 {
	var buf [18]byte
	buf[0] = byte(p.family)
	buf[1] = byte(p.length)
	n := p.ByteLen()
	copy(buf[2:2+n], p.bytes[:n])
	sum := xxhash.Sum64(buf[:2+n])
	return uint32(sum) ^ uint32(sum>>32)
}

// Equal implements fib.Key.
func (p Prefix) Equal(other Prefix) bool {
	return p.family == other.family && p.length == other.length && p.bytes == other.bytes
}

// PrefixLen implements fib.LPMKey.
func (p Prefix) PrefixLen() int { return p.length }

// Shorten implements fib.LPMKey: it returns a copy truncated to n bits
// with the newly-uncovered bit cleared, per spec.md §4.7. p itself is
// never mutated — Prefix is a value type, so the copy taken on entry is
// independent of the caller's original.
func (p Prefix) Shorten(n int) Prefix {
	cp := p
	cp.length = n
	cp.mask()
	return cp
}

// IP returns the address bytes as a net.IP, for display/diagnostics.
func (p Prefix) IP() net.IP {
	n := p.ByteLen()
	out := make(net.IP, n)
	copy(out, p.bytes[:n])
	return out
}

// String renders the prefix as "addr/length", matching CIDR notation.
func (p Prefix) String() string {
	return fmt.Sprintf("%s/%d", p.IP(), p.length)
}

// ParseCIDR builds a Prefix from a "1.2.3.0/24"-style string, choosing
// family based on whether the address parses as IPv4 or IPv6.
func ParseCIDR(s string) (Prefix, error) {
	ip, ipnet, err := net.ParseCIDR(s)
	if err != nil {
		return Prefix{}, err
	}
	ones, _ := ipnet.Mask.Size()
	if v4 := ip.To4(); v4 != nil {
		return NewIP4(fib.IP4, v4, ones), nil
	}
	return NewIP6(fib.IP6, ip.To16(), ones), nil
}
