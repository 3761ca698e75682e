// Package facts computes derived security facts from raw resource fields.
// Every function is pure.
package facts

import (
	"net/netip"
	"strings"

	"github.com/yairfalse/warden/pkg/resource"
)

// AnyPort targets every port.
const AnyPort int32 = -1

// Target is the traffic a reachability question is asked about.
type Target struct {
	Protocol string
	Port     int32
}

// TCP targets a single TCP port.
func TCP(port int32) Target { return Target{Protocol: "tcp", Port: port} }

// AllPorts targets every port on every protocol.
func AllPorts() Target { return Target{Protocol: resource.ProtocolAll, Port: AnyPort} }

// IsUnrestricted reports whether cidr admits every address. Any /0 prefix
// counts, so both 0.0.0.0/0 and ::/0 do.
func IsUnrestricted(cidr string) bool {
	p, err := netip.ParsePrefix(strings.TrimSpace(cidr))
	if err != nil {
		return false
	}
	return p.Bits() == 0
}

// PublicSource reports whether any source of rule is unrestricted.
func PublicSource(rule resource.IngressRule) bool {
	for _, src := range rule.Sources() {
		if IsUnrestricted(src) {
			return true
		}
	}
	return false
}

// opensAllPorts reports whether rule admits every port.
func opensAllPorts(rule resource.IngressRule) bool {
	if rule.Protocol == resource.ProtocolAll {
		return true
	}
	return rule.Ports == nil || rule.Ports.Full()
}

// matches reports whether rule admits traffic to target, ignoring sources.
func matches(rule resource.IngressRule, target Target) bool {
	if opensAllPorts(rule) {
		return true
	}
	if target.Port == AnyPort {
		return false
	}
	if !strings.EqualFold(rule.Protocol, target.Protocol) {
		return false
	}
	return rule.Ports.Contains(target.Port)
}

// PublicReachable reports whether some rule opens target to the internet.
// The result does not depend on rule order.
func PublicReachable(rules []resource.IngressRule, target Target) bool {
	for _, rule := range rules {
		if PublicSource(rule) && matches(rule, target) {
			return true
		}
	}
	return false
}

// AllPortsPublic reports whether some rule opens every port to the internet.
func AllPortsPublic(rules []resource.IngressRule) bool {
	return PublicReachable(rules, AllPorts())
}

// ApplySecurityGroup sets the derived fields of sg from its rules.
func ApplySecurityGroup(sg *resource.SecurityGroup) {
	sg.PublicPorts = AllPortsPublic(sg.IngressRules)
}

// PolicyAllowsPublic reports whether doc grants access to an anonymous
// principal without any condition.
func PolicyAllowsPublic(doc *resource.PolicyDocument) bool {
	if doc == nil {
		return false
	}
	for _, st := range doc.Statement {
		if !strings.EqualFold(st.Effect, "Allow") || len(st.Condition) > 0 {
			continue
		}
		for _, p := range st.Principal {
			if p == "*" {
				return true
			}
		}
	}
	return false
}

// ApplyQueue sets the derived fields of q from its policy.
func ApplyQueue(q *resource.Queue) {
	q.PublicPolicy = PolicyAllowsPublic(q.Policy)
}
