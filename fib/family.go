package fib

// Family identifies the address family a Table (and every Key it accepts)
// is configured for. Mirrors the family tags in
// _examples/original_source/lib/fib.h.
type Family byte

const (
	IP4 Family = iota + 1
	IP6
	VPN4
	VPN6
	ROA4
	ROA6
	FLOW4
	FLOW6
	IP6SADR
	MPLS
)

func (f Family) String() string {
	switch f {
	case IP4:
		return "ip4"
	case IP6:
		return "ip6"
	case VPN4:
		return "vpn4"
	case VPN6:
		return "vpn6"
	case ROA4:
		return "roa4"
	case ROA6:
		return "roa6"
	case FLOW4:
		return "flow4"
	case FLOW6:
		return "flow6"
	case IP6SADR:
		return "ip6-sadr"
	case MPLS:
		return "mpls"
	default:
		return "unknown"
	}
}

// IsV6 reports whether the family uses 128-bit IPv6-style addresses rather
// than 32-bit IPv4-style ones. Route does not consult it; external Key
// implementations (e.g. addr.Prefix) use it to size their own byte
// representation, which sets the bit width their Shorten works over.
func (f Family) IsV6() bool {
	switch f {
	case IP6, VPN6, ROA6, FLOW6, IP6SADR:
		return true
	default:
		return false
	}
}
