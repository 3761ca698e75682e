package discovery

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/yairfalse/warden/internal/facts"
	"github.com/yairfalse/warden/internal/fanout"
	"github.com/yairfalse/warden/internal/registry"
	"github.com/yairfalse/warden/pkg/resource"
)

// SecurityGroups lists security groups. Rules and tags arrive in the list
// response, so derived facts are applied at append time.
func (d *Discoverer) SecurityGroups(ctx context.Context, reg *registry.Registry[*resource.SecurityGroup]) []fanout.Report {
	report := d.list(ctx, "ec2:DescribeSecurityGroups", func(ctx context.Context, region string) error {
		client := d.clients.EC2(d.actx.ConfigFor(region))
		paginator := ec2.NewDescribeSecurityGroupsPaginator(client, &ec2.DescribeSecurityGroupsInput{})
		var found []*resource.SecurityGroup
		for paginator.HasMorePages() {
			page, err := paginator.NextPage(ctx)
			if err != nil {
				return fmt.Errorf("describe security groups: %w", err)
			}
			for _, g := range page.SecurityGroups {
				found = append(found, d.newSecurityGroup(region, g))
			}
		}
		return commit(reg, d.actx, found)
	})
	return []fanout.Report{report}
}

func (d *Discoverer) newSecurityGroup(region string, g ec2types.SecurityGroup) *resource.SecurityGroup {
	id := aws.ToString(g.GroupId)
	sg := &resource.SecurityGroup{
		Base:        resource.NewBase(id, d.actx.ARN("ec2", region, "security-group/"+id), region, aws.ToString(g.GroupName)),
		VpcID:       aws.ToString(g.VpcId),
		Description: aws.ToString(g.Description),
	}
	for _, perm := range g.IpPermissions {
		sg.IngressRules = append(sg.IngressRules, ingressRule(perm))
	}
	for _, tag := range g.Tags {
		sg.Tags[aws.ToString(tag.Key)] = aws.ToString(tag.Value)
	}
	facts.ApplySecurityGroup(sg)
	return sg
}

func ingressRule(perm ec2types.IpPermission) resource.IngressRule {
	rule := resource.IngressRule{Protocol: aws.ToString(perm.IpProtocol)}
	if perm.FromPort != nil && perm.ToPort != nil {
		rule.Ports = &resource.PortRange{From: *perm.FromPort, To: *perm.ToPort}
	}
	for _, r := range perm.IpRanges {
		rule.IPv4Ranges = append(rule.IPv4Ranges, aws.ToString(r.CidrIp))
	}
	for _, r := range perm.Ipv6Ranges {
		rule.IPv6Ranges = append(rule.IPv6Ranges, aws.ToString(r.CidrIpv6))
	}
	return rule
}
