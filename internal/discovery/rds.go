package discovery

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rds"

	"github.com/yairfalse/warden/internal/fanout"
	"github.com/yairfalse/warden/internal/registry"
	"github.com/yairfalse/warden/pkg/resource"
)

// DBInstances lists RDS instances. The list response carries every field
// used, so there is no enrichment pass.
func (d *Discoverer) DBInstances(ctx context.Context, reg *registry.Registry[*resource.DBInstance]) []fanout.Report {
	report := d.list(ctx, "rds:DescribeDBInstances", func(ctx context.Context, region string) error {
		client := d.clients.RDS(d.actx.ConfigFor(region))
		paginator := rds.NewDescribeDBInstancesPaginator(client, &rds.DescribeDBInstancesInput{})
		var found []*resource.DBInstance
		for paginator.HasMorePages() {
			page, err := paginator.NextPage(ctx)
			if err != nil {
				return fmt.Errorf("describe db instances: %w", err)
			}
			for _, inst := range page.DBInstances {
				id := aws.ToString(inst.DBInstanceIdentifier)
				arn := aws.ToString(inst.DBInstanceArn)
				if arn == "" {
					arn = d.actx.ARN("rds", region, "db:"+id)
				}
				db := &resource.DBInstance{
					Base:               resource.NewBase(id, arn, region, id),
					Engine:             aws.ToString(inst.Engine),
					Status:             aws.ToString(inst.DBInstanceStatus),
					PubliclyAccessible: aws.ToBool(inst.PubliclyAccessible),
					StorageEncrypted:   aws.ToBool(inst.StorageEncrypted),
					KMSKeyID:           aws.ToString(inst.KmsKeyId),
				}
				for _, tag := range inst.TagList {
					db.Tags[aws.ToString(tag.Key)] = aws.ToString(tag.Value)
				}
				found = append(found, db)
			}
		}
		return commit(reg, d.actx, found)
	})
	return []fanout.Report{report}
}
