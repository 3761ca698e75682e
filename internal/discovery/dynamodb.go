package discovery

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/yairfalse/warden/internal/fanout"
	"github.com/yairfalse/warden/internal/registry"
	"github.com/yairfalse/warden/pkg/resource"
)

// Tables lists DynamoDB tables, describes their encryption and reads tags.
func (d *Discoverer) Tables(ctx context.Context, reg *registry.Registry[*resource.Table]) []fanout.Report {
	reports := []fanout.Report{d.list(ctx, "dynamodb:ListTables", func(ctx context.Context, region string) error {
		client := d.clients.DynamoDB(d.actx.ConfigFor(region))
		paginator := dynamodb.NewListTablesPaginator(client, &dynamodb.ListTablesInput{})
		var found []*resource.Table
		for paginator.HasMorePages() {
			page, err := paginator.NextPage(ctx)
			if err != nil {
				return fmt.Errorf("list tables: %w", err)
			}
			for _, name := range page.TableNames {
				found = append(found, &resource.Table{Base: resource.NewBase(name, d.actx.ARN("dynamodb", region, "table/"+name), region, name)})
			}
		}
		return commit(reg, d.actx, found)
	})}

	reports = append(reports, enrich(ctx, d, "dynamodb:DescribeTable", reg, d.clients.DynamoDB, describeTable))
	reports = append(reports, enrich(ctx, d, "dynamodb:ListTagsOfResource", reg, d.clients.DynamoDB, tableTags))
	return reports
}

func describeTable(ctx context.Context, client DynamoDBAPI, t *resource.Table) error {
	out, err := client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(t.Name)})
	if err != nil {
		return fmt.Errorf("describe table: %w", err)
	}
	if out.Table == nil {
		return nil
	}
	t.Status = string(out.Table.TableStatus)
	t.SSEType, t.KMSKeyARN = "", ""
	if sse := out.Table.SSEDescription; sse != nil {
		t.SSEType = string(sse.SSEType)
		t.KMSKeyARN = aws.ToString(sse.KMSMasterKeyArn)
	}
	return nil
}

func tableTags(ctx context.Context, client DynamoDBAPI, t *resource.Table) error {
	tags := make(map[string]string)
	input := &dynamodb.ListTagsOfResourceInput{ResourceArn: aws.String(t.ARN)}
	for {
		out, err := client.ListTagsOfResource(ctx, input)
		if err != nil {
			return fmt.Errorf("list tags of resource: %w", err)
		}
		for _, tag := range out.Tags {
			tags[aws.ToString(tag.Key)] = aws.ToString(tag.Value)
		}
		if out.NextToken == nil {
			break
		}
		input.NextToken = out.NextToken
	}
	t.SetTags(tags)
	return nil
}
