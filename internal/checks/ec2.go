package checks

import (
	"fmt"

	"github.com/yairfalse/warden/internal/check"
	"github.com/yairfalse/warden/internal/facts"
	"github.com/yairfalse/warden/internal/inventory"
	"github.com/yairfalse/warden/pkg/resource"
)

func securityGroups(inv *inventory.Inventory) []*resource.SecurityGroup {
	return inv.SecurityGroups.All()
}

// SecurityGroupAnyPort fails groups that open every port to the Internet.
func SecurityGroupAnyPort() check.Check {
	return &check.ResourceCheck[*resource.SecurityGroup]{
		Meta:   metadata("ec2_securitygroup_allow_ingress_from_internet_to_any_port"),
		Select: securityGroups,
		Evaluate: func(sg *resource.SecurityGroup) (check.Status, string) {
			if sg.PublicPorts {
				return check.StatusFail, fmt.Sprintf("Security group %s (%s) has all ports open to the Internet.", sg.Name, sg.ID)
			}
			return check.StatusPass, fmt.Sprintf("Security group %s (%s) has not all ports open to the Internet.", sg.Name, sg.ID)
		},
	}
}

// SecurityGroupPort fails groups that open one TCP port to the Internet.
// Groups with every port open pass here; the any-port check reports them.
func SecurityGroupPort(id, service string, port int32) check.Check {
	return &check.ResourceCheck[*resource.SecurityGroup]{
		Meta:   metadata(id),
		Select: securityGroups,
		Evaluate: func(sg *resource.SecurityGroup) (check.Status, string) {
			if !sg.PublicPorts && facts.PublicReachable(sg.IngressRules, facts.TCP(port)) {
				return check.StatusFail, fmt.Sprintf("Security group %s (%s) has %s port %d open to the Internet.", sg.Name, sg.ID, service, port)
			}
			return check.StatusPass, fmt.Sprintf("Security group %s (%s) has not %s port %d open to the Internet.", sg.Name, sg.ID, service, port)
		},
	}
}
