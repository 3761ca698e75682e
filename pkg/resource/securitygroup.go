package resource

// ProtocolAll is the wildcard IP protocol used by ingress rules.
const ProtocolAll = "-1"

// PortRange is an inclusive port interval.
type PortRange struct {
	From int32 `json:"from"`
	To   int32 `json:"to"`
}

// Contains reports whether port lies inside the range.
func (r PortRange) Contains(port int32) bool {
	return port >= r.From && port <= r.To
}

// Full reports whether the range spans every port.
func (r PortRange) Full() bool {
	return r.From <= 0 && r.To >= 65535
}

// IngressRule is one inbound permission of a security group.
type IngressRule struct {
	Protocol   string     `json:"protocol"`
	Ports      *PortRange `json:"ports,omitempty"` // nil means all ports
	IPv4Ranges []string   `json:"ipv4_ranges,omitempty"`
	IPv6Ranges []string   `json:"ipv6_ranges,omitempty"`
}

// Sources returns every CIDR the rule admits.
func (r IngressRule) Sources() []string {
	out := make([]string, 0, len(r.IPv4Ranges)+len(r.IPv6Ranges))
	out = append(out, r.IPv4Ranges...)
	return append(out, r.IPv6Ranges...)
}

// SecurityGroup is an EC2 security group.
type SecurityGroup struct {
	Base
	VpcID        string        `json:"vpc_id"`
	Description  string        `json:"description"`
	IngressRules []IngressRule `json:"ingress_rules"`

	// PublicPorts is true when some rule opens every port to the internet.
	PublicPorts bool `json:"public_ports"`
}

// Kind implements Resource.
func (*SecurityGroup) Kind() Kind { return KindSecurityGroup }
