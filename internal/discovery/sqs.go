package discovery

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/yairfalse/warden/internal/facts"
	"github.com/yairfalse/warden/internal/fanout"
	"github.com/yairfalse/warden/internal/registry"
	"github.com/yairfalse/warden/pkg/resource"
)

// Queues lists queues, then reads their attributes, then their tags.
func (d *Discoverer) Queues(ctx context.Context, reg *registry.Registry[*resource.Queue]) []fanout.Report {
	reports := []fanout.Report{d.list(ctx, "sqs:ListQueues", func(ctx context.Context, region string) error {
		client := d.clients.SQS(d.actx.ConfigFor(region))
		paginator := sqs.NewListQueuesPaginator(client, &sqs.ListQueuesInput{})
		var found []*resource.Queue
		for paginator.HasMorePages() {
			page, err := paginator.NextPage(ctx)
			if err != nil {
				return fmt.Errorf("list queues: %w", err)
			}
			for _, url := range page.QueueUrls {
				name := queueName(url)
				found = append(found, &resource.Queue{
					Base: resource.NewBase(url, d.actx.ARN("sqs", region, name), region, name),
					URL:  url,
				})
			}
		}
		return commit(reg, d.actx, found)
	})}

	reports = append(reports, enrich(ctx, d, "sqs:GetQueueAttributes", reg, d.clients.SQS, queueAttributes))
	reports = append(reports, enrich(ctx, d, "sqs:ListQueueTags", reg, d.clients.SQS, queueTags))
	return reports
}

func queueName(url string) string {
	return url[strings.LastIndex(url, "/")+1:]
}

func queueAttributes(ctx context.Context, client SQSAPI, q *resource.Queue) error {
	out, err := client.GetQueueAttributes(ctx, &sqs.GetQueueAttributesInput{
		QueueUrl:       aws.String(q.URL),
		AttributeNames: []sqstypes.QueueAttributeName{sqstypes.QueueAttributeNameAll},
	})
	if err != nil {
		return fmt.Errorf("get queue attributes: %w", err)
	}

	q.KMSKeyID = out.Attributes[string(sqstypes.QueueAttributeNameKmsMasterKeyId)]
	if out.Attributes[string(sqstypes.QueueAttributeNameSqsManagedSseEnabled)] == "true" {
		q.KMSKeyID = resource.ManagedSSEKey
	}

	q.Policy = nil
	var policyErr error
	if raw := out.Attributes[string(sqstypes.QueueAttributeNamePolicy)]; raw != "" {
		q.Policy, policyErr = resource.ParsePolicy(raw)
	}
	facts.ApplyQueue(q)

	if policyErr != nil {
		return fmt.Errorf("queue policy: %w", policyErr)
	}
	return nil
}

func queueTags(ctx context.Context, client SQSAPI, q *resource.Queue) error {
	out, err := client.ListQueueTags(ctx, &sqs.ListQueueTagsInput{QueueUrl: aws.String(q.URL)})
	if err != nil {
		return fmt.Errorf("list queue tags: %w", err)
	}
	q.SetTags(out.Tags)
	return nil
}
