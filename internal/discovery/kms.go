package discovery

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"

	"github.com/yairfalse/warden/internal/fanout"
	"github.com/yairfalse/warden/internal/registry"
	"github.com/yairfalse/warden/pkg/resource"
)

// Keys lists KMS keys, describes them, reads rotation status of rotatable
// keys and finally reads tags of customer managed keys.
func (d *Discoverer) Keys(ctx context.Context, reg *registry.Registry[*resource.Key]) []fanout.Report {
	reports := []fanout.Report{d.list(ctx, "kms:ListKeys", func(ctx context.Context, region string) error {
		client := d.clients.KMS(d.actx.ConfigFor(region))
		paginator := kms.NewListKeysPaginator(client, &kms.ListKeysInput{})
		var found []*resource.Key
		for paginator.HasMorePages() {
			page, err := paginator.NextPage(ctx)
			if err != nil {
				return fmt.Errorf("list keys: %w", err)
			}
			for _, k := range page.Keys {
				id := aws.ToString(k.KeyId)
				arn := aws.ToString(k.KeyArn)
				if arn == "" {
					arn = d.actx.ARN("kms", region, "key/"+id)
				}
				found = append(found, &resource.Key{Base: resource.NewBase(id, arn, region, id)})
			}
		}
		return commit(reg, d.actx, found)
	})}

	reports = append(reports, enrich(ctx, d, "kms:DescribeKey", reg, d.clients.KMS, describeKey))
	reports = append(reports, enrich(ctx, d, "kms:GetKeyRotationStatus", reg, d.clients.KMS, keyRotation))
	reports = append(reports, enrich(ctx, d, "kms:ListResourceTags", reg, d.clients.KMS, keyTags))
	return reports
}

func describeKey(ctx context.Context, client KMSAPI, k *resource.Key) error {
	out, err := client.DescribeKey(ctx, &kms.DescribeKeyInput{KeyId: aws.String(k.ID)})
	if err != nil {
		return fmt.Errorf("describe key: %w", err)
	}
	if md := out.KeyMetadata; md != nil {
		k.Manager = string(md.KeyManager)
		k.State = string(md.KeyState)
		k.Spec = string(md.KeySpec)
	}
	return nil
}

func keyRotation(ctx context.Context, client KMSAPI, k *resource.Key) error {
	if !k.Rotatable() {
		return nil
	}
	out, err := client.GetKeyRotationStatus(ctx, &kms.GetKeyRotationStatusInput{KeyId: aws.String(k.ID)})
	if err != nil {
		return fmt.Errorf("get key rotation status: %w", err)
	}
	k.RotationEnabled = out.KeyRotationEnabled
	return nil
}

func keyTags(ctx context.Context, client KMSAPI, k *resource.Key) error {
	if !k.CustomerManaged() {
		return nil
	}
	tags := make(map[string]string)
	input := &kms.ListResourceTagsInput{KeyId: aws.String(k.ID)}
	for {
		out, err := client.ListResourceTags(ctx, input)
		if err != nil {
			return fmt.Errorf("list resource tags: %w", err)
		}
		for _, t := range out.Tags {
			tags[aws.ToString(t.TagKey)] = aws.ToString(t.TagValue)
		}
		if !out.Truncated || out.NextMarker == nil {
			break
		}
		input.Marker = out.NextMarker
	}
	k.SetTags(tags)
	return nil
}
