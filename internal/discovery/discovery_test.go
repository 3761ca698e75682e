package discovery

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	kmstypes "github.com/aws/aws-sdk-go-v2/service/kms/types"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	rdstypes "github.com/aws/aws-sdk-go-v2/service/rds/types"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yairfalse/warden/internal/audit"
	"github.com/yairfalse/warden/internal/fanout"
	"github.com/yairfalse/warden/internal/registry"
	"github.com/yairfalse/warden/pkg/resource"
)

const account = "111122223333"

type arnPrefixes []string

func (p arnPrefixes) Allows(arn string) bool {
	for _, prefix := range p {
		if strings.HasPrefix(arn, prefix) {
			return true
		}
	}
	return false
}

func newTestDiscoverer(t *testing.T, regions []string, filter audit.ResourceFilter, clients Clients) (*Discoverer, *audit.Context) {
	t.Helper()
	opts := audit.Options{AccountID: account, Regions: regions}
	if filter != nil {
		opts.Filter = filter
	}
	actx, err := audit.New(opts)
	require.NoError(t, err)
	return New(actx, fanout.New(fanout.Options{MaxWorkers: 4}), clients), actx
}

// ══════════════════════════════════════════════════════════════════════════════
// SQS
// ══════════════════════════════════════════════════════════════════════════════

type mockSQSClient struct {
	ListQueuesFunc         func(ctx context.Context, params *sqs.ListQueuesInput, optFns ...func(*sqs.Options)) (*sqs.ListQueuesOutput, error)
	GetQueueAttributesFunc func(ctx context.Context, params *sqs.GetQueueAttributesInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueAttributesOutput, error)
	ListQueueTagsFunc      func(ctx context.Context, params *sqs.ListQueueTagsInput, optFns ...func(*sqs.Options)) (*sqs.ListQueueTagsOutput, error)
}

func (m *mockSQSClient) ListQueues(ctx context.Context, params *sqs.ListQueuesInput, optFns ...func(*sqs.Options)) (*sqs.ListQueuesOutput, error) {
	return m.ListQueuesFunc(ctx, params, optFns...)
}

func (m *mockSQSClient) GetQueueAttributes(ctx context.Context, params *sqs.GetQueueAttributesInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueAttributesOutput, error) {
	return m.GetQueueAttributesFunc(ctx, params, optFns...)
}

func (m *mockSQSClient) ListQueueTags(ctx context.Context, params *sqs.ListQueueTagsInput, optFns ...func(*sqs.Options)) (*sqs.ListQueueTagsOutput, error) {
	return m.ListQueueTagsFunc(ctx, params, optFns...)
}

func queueURL(region, name string) string {
	return "https://sqs." + region + ".amazonaws.com/" + account + "/" + name
}

func sqsClients(byRegion map[string]*mockSQSClient) Clients {
	return Clients{SQS: func(cfg aws.Config) SQSAPI { return byRegion[cfg.Region] }}
}

func attributesFor(attrs map[string]map[string]string) func(context.Context, *sqs.GetQueueAttributesInput, ...func(*sqs.Options)) (*sqs.GetQueueAttributesOutput, error) {
	return func(_ context.Context, in *sqs.GetQueueAttributesInput, _ ...func(*sqs.Options)) (*sqs.GetQueueAttributesOutput, error) {
		a, ok := attrs[aws.ToString(in.QueueUrl)]
		if !ok {
			return nil, errors.New("QueueDoesNotExist")
		}
		return &sqs.GetQueueAttributesOutput{Attributes: a}, nil
	}
}

func noTags(_ context.Context, _ *sqs.ListQueueTagsInput, _ ...func(*sqs.Options)) (*sqs.ListQueueTagsOutput, error) {
	return &sqs.ListQueueTagsOutput{}, nil
}

func TestQueues_ListAndEnrich(t *testing.T) {
	east := &mockSQSClient{
		ListQueuesFunc: func(_ context.Context, _ *sqs.ListQueuesInput, _ ...func(*sqs.Options)) (*sqs.ListQueuesOutput, error) {
			return &sqs.ListQueuesOutput{QueueUrls: []string{
				queueURL("us-east-1", "orders"),
				queueURL("us-east-1", "managed"),
				queueURL("us-east-1", "plain"),
			}}, nil
		},
		GetQueueAttributesFunc: attributesFor(map[string]map[string]string{
			queueURL("us-east-1", "orders"): {
				"KmsMasterKeyId": "alias/orders",
				"Policy":         `{"Statement":[{"Effect":"Allow","Principal":"*","Action":"sqs:SendMessage"}]}`,
			},
			queueURL("us-east-1", "managed"): {"SqsManagedSseEnabled": "true"},
			queueURL("us-east-1", "plain"):   {},
		}),
		ListQueueTagsFunc: func(_ context.Context, in *sqs.ListQueueTagsInput, _ ...func(*sqs.Options)) (*sqs.ListQueueTagsOutput, error) {
			if aws.ToString(in.QueueUrl) == queueURL("us-east-1", "orders") {
				return &sqs.ListQueueTagsOutput{Tags: map[string]string{"team": "payments"}}, nil
			}
			return &sqs.ListQueueTagsOutput{}, nil
		},
	}

	d, actx := newTestDiscoverer(t, []string{"us-east-1"}, nil, sqsClients(map[string]*mockSQSClient{"us-east-1": east}))
	reg := registry.New[*resource.Queue](resource.KindQueue, actx.Regions())

	reports := d.Queues(context.Background(), reg)
	require.Len(t, reports, 3)
	for _, r := range reports {
		assert.False(t, r.Degraded(), r.Operation)
	}

	require.Equal(t, 3, reg.Len())
	orders, ok := reg.Get("arn:aws:sqs:us-east-1:" + account + ":orders")
	require.True(t, ok)
	assert.Equal(t, "orders", orders.Name)
	assert.Equal(t, queueURL("us-east-1", "orders"), orders.ID)
	assert.Equal(t, "alias/orders", orders.KMSKeyID)
	assert.True(t, orders.PublicPolicy)
	assert.Equal(t, map[string]string{"team": "payments"}, orders.Tags)

	managed, _ := reg.Get("arn:aws:sqs:us-east-1:" + account + ":managed")
	assert.Equal(t, resource.ManagedSSEKey, managed.KMSKeyID)

	plain, _ := reg.Get("arn:aws:sqs:us-east-1:" + account + ":plain")
	assert.Empty(t, plain.KMSKeyID)
	assert.False(t, plain.PublicPolicy)
	assert.NotNil(t, plain.Tags)
}

func TestQueues_FailingRegionIsolated(t *testing.T) {
	clients := sqsClients(map[string]*mockSQSClient{
		"us-east-1": {
			ListQueuesFunc: func(_ context.Context, _ *sqs.ListQueuesInput, _ ...func(*sqs.Options)) (*sqs.ListQueuesOutput, error) {
				return &sqs.ListQueuesOutput{QueueUrls: []string{queueURL("us-east-1", "a")}}, nil
			},
			GetQueueAttributesFunc: attributesFor(map[string]map[string]string{queueURL("us-east-1", "a"): {}}),
			ListQueueTagsFunc:      noTags,
		},
		"eu-west-1": {
			ListQueuesFunc: func(_ context.Context, _ *sqs.ListQueuesInput, _ ...func(*sqs.Options)) (*sqs.ListQueuesOutput, error) {
				return nil, errors.New("UnrecognizedClientException")
			},
		},
		"ap-south-1": {
			ListQueuesFunc: func(_ context.Context, _ *sqs.ListQueuesInput, _ ...func(*sqs.Options)) (*sqs.ListQueuesOutput, error) {
				return &sqs.ListQueuesOutput{QueueUrls: []string{queueURL("ap-south-1", "b")}}, nil
			},
			GetQueueAttributesFunc: attributesFor(map[string]map[string]string{queueURL("ap-south-1", "b"): {}}),
			ListQueueTagsFunc:      noTags,
		},
	})

	d, actx := newTestDiscoverer(t, []string{"us-east-1", "eu-west-1", "ap-south-1"}, nil, clients)
	reg := registry.New[*resource.Queue](resource.KindQueue, actx.Regions())

	reports := d.Queues(context.Background(), reg)

	require.Len(t, reports[0].Failed, 1)
	assert.Equal(t, "eu-west-1", reports[0].Failed[0].Region)
	assert.Equal(t, []string{"us-east-1", "ap-south-1"}, reg.PopulatedRegions())
	assert.Equal(t, 2, reg.Len())
	assert.False(t, reports[1].Degraded())
}

func TestQueues_ListFailingOnLaterPageLeavesRegionEmpty(t *testing.T) {
	west := &mockSQSClient{
		ListQueuesFunc: func(_ context.Context, in *sqs.ListQueuesInput, _ ...func(*sqs.Options)) (*sqs.ListQueuesOutput, error) {
			if in.NextToken == nil {
				return &sqs.ListQueuesOutput{
					QueueUrls: []string{queueURL("us-west-2", "first-page")},
					NextToken: aws.String("page-2"),
				}, nil
			}
			return nil, errors.New("throttled")
		},
		GetQueueAttributesFunc: func(_ context.Context, _ *sqs.GetQueueAttributesInput, _ ...func(*sqs.Options)) (*sqs.GetQueueAttributesOutput, error) {
			t.Error("enrichment must not run for a region whose listing failed")
			return &sqs.GetQueueAttributesOutput{}, nil
		},
		ListQueueTagsFunc: noTags,
	}
	east := &mockSQSClient{
		ListQueuesFunc: func(_ context.Context, _ *sqs.ListQueuesInput, _ ...func(*sqs.Options)) (*sqs.ListQueuesOutput, error) {
			return &sqs.ListQueuesOutput{QueueUrls: []string{queueURL("us-east-1", "a")}}, nil
		},
		GetQueueAttributesFunc: attributesFor(map[string]map[string]string{queueURL("us-east-1", "a"): {}}),
		ListQueueTagsFunc:      noTags,
	}

	clients := sqsClients(map[string]*mockSQSClient{"us-east-1": east, "us-west-2": west})
	d, actx := newTestDiscoverer(t, []string{"us-east-1", "us-west-2"}, nil, clients)
	reg := registry.New[*resource.Queue](resource.KindQueue, actx.Regions())

	reports := d.Queues(context.Background(), reg)

	require.Len(t, reports[0].Failed, 1)
	assert.Equal(t, "us-west-2", reports[0].Failed[0].Region)
	assert.Empty(t, reg.ByRegion("us-west-2"))
	assert.Equal(t, []string{"us-east-1"}, reg.PopulatedRegions())
	assert.Equal(t, 1, reg.Len())
}

func TestQueues_FilterAppliedAtList(t *testing.T) {
	mock := &mockSQSClient{
		ListQueuesFunc: func(_ context.Context, _ *sqs.ListQueuesInput, _ ...func(*sqs.Options)) (*sqs.ListQueuesOutput, error) {
			return &sqs.ListQueuesOutput{QueueUrls: []string{
				queueURL("us-east-1", "orders-dlq"),
				queueURL("us-east-1", "billing"),
			}}, nil
		},
		GetQueueAttributesFunc: attributesFor(map[string]map[string]string{queueURL("us-east-1", "orders-dlq"): {}}),
		ListQueueTagsFunc:      noTags,
	}

	filter := arnPrefixes{"arn:aws:sqs:us-east-1:" + account + ":orders"}
	d, actx := newTestDiscoverer(t, []string{"us-east-1"}, filter, sqsClients(map[string]*mockSQSClient{"us-east-1": mock}))
	reg := registry.New[*resource.Queue](resource.KindQueue, actx.Regions())

	d.Queues(context.Background(), reg)

	require.Equal(t, 1, reg.Len())
	for _, q := range reg.All() {
		assert.True(t, actx.Allows(q.ARN))
	}
}

func TestQueues_EnrichmentFailureKeepsDefaults(t *testing.T) {
	mock := &mockSQSClient{
		ListQueuesFunc: func(_ context.Context, _ *sqs.ListQueuesInput, _ ...func(*sqs.Options)) (*sqs.ListQueuesOutput, error) {
			return &sqs.ListQueuesOutput{QueueUrls: []string{
				queueURL("us-east-1", "gone"),
				queueURL("us-east-1", "kept"),
			}}, nil
		},
		GetQueueAttributesFunc: attributesFor(map[string]map[string]string{
			queueURL("us-east-1", "kept"): {"KmsMasterKeyId": "alias/kept"},
		}),
		ListQueueTagsFunc: noTags,
	}

	d, actx := newTestDiscoverer(t, []string{"us-east-1"}, nil, sqsClients(map[string]*mockSQSClient{"us-east-1": mock}))
	reg := registry.New[*resource.Queue](resource.KindQueue, actx.Regions())

	reports := d.Queues(context.Background(), reg)
	assert.False(t, reports[1].Degraded())

	gone, _ := reg.Get("arn:aws:sqs:us-east-1:" + account + ":gone")
	kept, _ := reg.Get("arn:aws:sqs:us-east-1:" + account + ":kept")
	assert.Empty(t, gone.KMSKeyID)
	assert.Nil(t, gone.Policy)
	assert.Equal(t, "alias/kept", kept.KMSKeyID)
}

func TestQueueAttributes_Idempotent(t *testing.T) {
	url := queueURL("us-east-1", "orders")
	mock := &mockSQSClient{
		GetQueueAttributesFunc: attributesFor(map[string]map[string]string{
			url: {"KmsMasterKeyId": "alias/orders", "Policy": `{"Statement":{"Effect":"Allow","Principal":{"AWS":"*"}}}`},
		}),
	}
	q := &resource.Queue{Base: resource.NewBase(url, "arn", "us-east-1", "orders"), URL: url}

	require.NoError(t, queueAttributes(context.Background(), mock, q))
	first := *q
	require.NoError(t, queueAttributes(context.Background(), mock, q))

	assert.Equal(t, first.KMSKeyID, q.KMSKeyID)
	assert.Equal(t, first.PublicPolicy, q.PublicPolicy)
	assert.Equal(t, first.Policy, q.Policy)
}

// ══════════════════════════════════════════════════════════════════════════════
// EC2
// ══════════════════════════════════════════════════════════════════════════════

type mockEC2Client struct {
	DescribeSecurityGroupsFunc func(ctx context.Context, params *ec2.DescribeSecurityGroupsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeSecurityGroupsOutput, error)
}

func (m *mockEC2Client) DescribeSecurityGroups(ctx context.Context, params *ec2.DescribeSecurityGroupsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeSecurityGroupsOutput, error) {
	return m.DescribeSecurityGroupsFunc(ctx, params, optFns...)
}

func TestSecurityGroups(t *testing.T) {
	mock := &mockEC2Client{
		DescribeSecurityGroupsFunc: func(_ context.Context, _ *ec2.DescribeSecurityGroupsInput, _ ...func(*ec2.Options)) (*ec2.DescribeSecurityGroupsOutput, error) {
			return &ec2.DescribeSecurityGroupsOutput{SecurityGroups: []ec2types.SecurityGroup{
				{
					GroupId:   aws.String("sg-open"),
					GroupName: aws.String("wide-open"),
					VpcId:     aws.String("vpc-1"),
					IpPermissions: []ec2types.IpPermission{{
						IpProtocol: aws.String("-1"),
						IpRanges:   []ec2types.IpRange{{CidrIp: aws.String("0.0.0.0/0")}},
					}},
					Tags: []ec2types.Tag{{Key: aws.String("env"), Value: aws.String("dev")}},
				},
				{
					GroupId:   aws.String("sg-ssh"),
					GroupName: aws.String("ssh"),
					IpPermissions: []ec2types.IpPermission{{
						IpProtocol: aws.String("tcp"),
						FromPort:   aws.Int32(22),
						ToPort:     aws.Int32(22),
						Ipv6Ranges: []ec2types.Ipv6Range{{CidrIpv6: aws.String("::/0")}},
					}},
				},
			}}, nil
		},
	}

	d, actx := newTestDiscoverer(t, []string{"us-east-1"}, nil, Clients{EC2: func(aws.Config) EC2API { return mock }})
	reg := registry.New[*resource.SecurityGroup](resource.KindSecurityGroup, actx.Regions())

	reports := d.SecurityGroups(context.Background(), reg)
	require.Len(t, reports, 1)
	require.Equal(t, 2, reg.Len())

	open, ok := reg.Get("arn:aws:ec2:us-east-1:" + account + ":security-group/sg-open")
	require.True(t, ok)
	assert.True(t, open.PublicPorts)
	assert.Equal(t, "wide-open", open.Name)
	assert.Equal(t, "vpc-1", open.VpcID)
	assert.Equal(t, "dev", open.Tags["env"])
	assert.Nil(t, open.IngressRules[0].Ports)

	ssh, _ := reg.Get("arn:aws:ec2:us-east-1:" + account + ":security-group/sg-ssh")
	assert.False(t, ssh.PublicPorts)
	require.NotNil(t, ssh.IngressRules[0].Ports)
	assert.Equal(t, resource.PortRange{From: 22, To: 22}, *ssh.IngressRules[0].Ports)
	assert.Equal(t, []string{"::/0"}, ssh.IngressRules[0].IPv6Ranges)
}

// ══════════════════════════════════════════════════════════════════════════════
// KMS
// ══════════════════════════════════════════════════════════════════════════════

type mockKMSClient struct {
	ListKeysFunc             func(ctx context.Context, params *kms.ListKeysInput, optFns ...func(*kms.Options)) (*kms.ListKeysOutput, error)
	DescribeKeyFunc          func(ctx context.Context, params *kms.DescribeKeyInput, optFns ...func(*kms.Options)) (*kms.DescribeKeyOutput, error)
	GetKeyRotationStatusFunc func(ctx context.Context, params *kms.GetKeyRotationStatusInput, optFns ...func(*kms.Options)) (*kms.GetKeyRotationStatusOutput, error)
	ListResourceTagsFunc     func(ctx context.Context, params *kms.ListResourceTagsInput, optFns ...func(*kms.Options)) (*kms.ListResourceTagsOutput, error)
}

func (m *mockKMSClient) ListKeys(ctx context.Context, params *kms.ListKeysInput, optFns ...func(*kms.Options)) (*kms.ListKeysOutput, error) {
	return m.ListKeysFunc(ctx, params, optFns...)
}

func (m *mockKMSClient) DescribeKey(ctx context.Context, params *kms.DescribeKeyInput, optFns ...func(*kms.Options)) (*kms.DescribeKeyOutput, error) {
	return m.DescribeKeyFunc(ctx, params, optFns...)
}

func (m *mockKMSClient) GetKeyRotationStatus(ctx context.Context, params *kms.GetKeyRotationStatusInput, optFns ...func(*kms.Options)) (*kms.GetKeyRotationStatusOutput, error) {
	return m.GetKeyRotationStatusFunc(ctx, params, optFns...)
}

func (m *mockKMSClient) ListResourceTags(ctx context.Context, params *kms.ListResourceTagsInput, optFns ...func(*kms.Options)) (*kms.ListResourceTagsOutput, error) {
	return m.ListResourceTagsFunc(ctx, params, optFns...)
}

func TestSecurityGroups_ListFailingOnLaterPageLeavesRegionEmpty(t *testing.T) {
	mock := &mockEC2Client{
		DescribeSecurityGroupsFunc: func(_ context.Context, in *ec2.DescribeSecurityGroupsInput, _ ...func(*ec2.Options)) (*ec2.DescribeSecurityGroupsOutput, error) {
			if in.NextToken == nil {
				return &ec2.DescribeSecurityGroupsOutput{
					SecurityGroups: []ec2types.SecurityGroup{{GroupId: aws.String("sg-1"), GroupName: aws.String("web")}},
					NextToken:      aws.String("page-2"),
				}, nil
			}
			return nil, errors.New("RequestLimitExceeded")
		},
	}
	clients := Clients{EC2: func(aws.Config) EC2API { return mock }}
	d, actx := newTestDiscoverer(t, []string{"us-east-1"}, nil, clients)
	reg := registry.New[*resource.SecurityGroup](resource.KindSecurityGroup, actx.Regions())

	reports := d.SecurityGroups(context.Background(), reg)

	require.Len(t, reports, 1)
	assert.True(t, reports[0].Degraded())
	assert.Zero(t, reg.Len())
}

func TestKeys(t *testing.T) {
	arnOf := func(id string) string { return "arn:aws:kms:us-east-1:" + account + ":key/" + id }
	var rotationCalls, tagCalls []string

	mock := &mockKMSClient{
		ListKeysFunc: func(_ context.Context, _ *kms.ListKeysInput, _ ...func(*kms.Options)) (*kms.ListKeysOutput, error) {
			return &kms.ListKeysOutput{Keys: []kmstypes.KeyListEntry{
				{KeyId: aws.String("cmk"), KeyArn: aws.String(arnOf("cmk"))},
				{KeyId: aws.String("aws-managed"), KeyArn: aws.String(arnOf("aws-managed"))},
			}}, nil
		},
		DescribeKeyFunc: func(_ context.Context, in *kms.DescribeKeyInput, _ ...func(*kms.Options)) (*kms.DescribeKeyOutput, error) {
			manager := kmstypes.KeyManagerTypeCustomer
			if aws.ToString(in.KeyId) == "aws-managed" {
				manager = kmstypes.KeyManagerTypeAws
			}
			return &kms.DescribeKeyOutput{KeyMetadata: &kmstypes.KeyMetadata{
				KeyId:      in.KeyId,
				KeyManager: manager,
				KeyState:   kmstypes.KeyStateEnabled,
				KeySpec:    kmstypes.KeySpecSymmetricDefault,
			}}, nil
		},
		GetKeyRotationStatusFunc: func(_ context.Context, in *kms.GetKeyRotationStatusInput, _ ...func(*kms.Options)) (*kms.GetKeyRotationStatusOutput, error) {
			rotationCalls = append(rotationCalls, aws.ToString(in.KeyId))
			return &kms.GetKeyRotationStatusOutput{KeyRotationEnabled: true}, nil
		},
		ListResourceTagsFunc: func(_ context.Context, in *kms.ListResourceTagsInput, _ ...func(*kms.Options)) (*kms.ListResourceTagsOutput, error) {
			tagCalls = append(tagCalls, aws.ToString(in.KeyId))
			return &kms.ListResourceTagsOutput{Tags: []kmstypes.Tag{{TagKey: aws.String("owner"), TagValue: aws.String("sec")}}}, nil
		},
	}

	d, actx := newTestDiscoverer(t, []string{"us-east-1"}, nil, Clients{KMS: func(aws.Config) KMSAPI { return mock }})
	reg := registry.New[*resource.Key](resource.KindKey, actx.Regions())

	reports := d.Keys(context.Background(), reg)
	require.Len(t, reports, 4)

	cmk, ok := reg.Get(arnOf("cmk"))
	require.True(t, ok)
	assert.True(t, cmk.CustomerManaged())
	assert.True(t, cmk.RotationEnabled)
	assert.Equal(t, "sec", cmk.Tags["owner"])

	managed, _ := reg.Get(arnOf("aws-managed"))
	assert.False(t, managed.RotationEnabled)
	assert.Equal(t, []string{"cmk"}, rotationCalls)
	assert.Equal(t, []string{"cmk"}, tagCalls)
}

// ══════════════════════════════════════════════════════════════════════════════
// RDS
// ══════════════════════════════════════════════════════════════════════════════

type mockRDSClient struct {
	DescribeDBInstancesFunc func(ctx context.Context, params *rds.DescribeDBInstancesInput, optFns ...func(*rds.Options)) (*rds.DescribeDBInstancesOutput, error)
}

func (m *mockRDSClient) DescribeDBInstances(ctx context.Context, params *rds.DescribeDBInstancesInput, optFns ...func(*rds.Options)) (*rds.DescribeDBInstancesOutput, error) {
	return m.DescribeDBInstancesFunc(ctx, params, optFns...)
}

func TestDBInstances(t *testing.T) {
	mock := &mockRDSClient{
		DescribeDBInstancesFunc: func(_ context.Context, _ *rds.DescribeDBInstancesInput, _ ...func(*rds.Options)) (*rds.DescribeDBInstancesOutput, error) {
			return &rds.DescribeDBInstancesOutput{DBInstances: []rdstypes.DBInstance{{
				DBInstanceIdentifier: aws.String("orders-db"),
				DBInstanceArn:        aws.String("arn:aws:rds:us-east-1:" + account + ":db:orders-db"),
				DBInstanceStatus:     aws.String("available"),
				Engine:               aws.String("postgres"),
				PubliclyAccessible:   aws.Bool(true),
				StorageEncrypted:     aws.Bool(false),
				TagList:              []rdstypes.Tag{{Key: aws.String("env"), Value: aws.String("prod")}},
			}}}, nil
		},
	}

	d, actx := newTestDiscoverer(t, []string{"us-east-1"}, nil, Clients{RDS: func(aws.Config) RDSAPI { return mock }})
	reg := registry.New[*resource.DBInstance](resource.KindDBInstance, actx.Regions())

	d.DBInstances(context.Background(), reg)

	require.Equal(t, 1, reg.Len())
	db := reg.All()[0]
	assert.Equal(t, "orders-db", db.ID)
	assert.True(t, db.PubliclyAccessible)
	assert.False(t, db.StorageEncrypted)
	assert.Equal(t, "prod", db.Tags["env"])
}

// ══════════════════════════════════════════════════════════════════════════════
// DynamoDB
// ══════════════════════════════════════════════════════════════════════════════

type mockDynamoDBClient struct {
	ListTablesFunc         func(ctx context.Context, params *dynamodb.ListTablesInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ListTablesOutput, error)
	DescribeTableFunc      func(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	ListTagsOfResourceFunc func(ctx context.Context, params *dynamodb.ListTagsOfResourceInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ListTagsOfResourceOutput, error)
}

func (m *mockDynamoDBClient) ListTables(ctx context.Context, params *dynamodb.ListTablesInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ListTablesOutput, error) {
	return m.ListTablesFunc(ctx, params, optFns...)
}

func (m *mockDynamoDBClient) DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	return m.DescribeTableFunc(ctx, params, optFns...)
}

func (m *mockDynamoDBClient) ListTagsOfResource(ctx context.Context, params *dynamodb.ListTagsOfResourceInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ListTagsOfResourceOutput, error) {
	return m.ListTagsOfResourceFunc(ctx, params, optFns...)
}

func TestTables(t *testing.T) {
	mock := &mockDynamoDBClient{
		ListTablesFunc: func(_ context.Context, _ *dynamodb.ListTablesInput, _ ...func(*dynamodb.Options)) (*dynamodb.ListTablesOutput, error) {
			return &dynamodb.ListTablesOutput{TableNames: []string{"sessions", "events"}}, nil
		},
		DescribeTableFunc: func(_ context.Context, in *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
			desc := &ddbtypes.TableDescription{TableName: in.TableName, TableStatus: ddbtypes.TableStatusActive}
			if aws.ToString(in.TableName) == "sessions" {
				desc.SSEDescription = &ddbtypes.SSEDescription{
					SSEType:         ddbtypes.SSETypeKms,
					KMSMasterKeyArn: aws.String("arn:aws:kms:us-east-1:" + account + ":key/cmk"),
				}
			}
			return &dynamodb.DescribeTableOutput{Table: desc}, nil
		},
		ListTagsOfResourceFunc: func(_ context.Context, in *dynamodb.ListTagsOfResourceInput, _ ...func(*dynamodb.Options)) (*dynamodb.ListTagsOfResourceOutput, error) {
			if in.NextToken == nil {
				return &dynamodb.ListTagsOfResourceOutput{
					Tags:      []ddbtypes.Tag{{Key: aws.String("a"), Value: aws.String("1")}},
					NextToken: aws.String("page-2"),
				}, nil
			}
			return &dynamodb.ListTagsOfResourceOutput{Tags: []ddbtypes.Tag{{Key: aws.String("b"), Value: aws.String("2")}}}, nil
		},
	}

	d, actx := newTestDiscoverer(t, []string{"us-east-1"}, nil, Clients{DynamoDB: func(aws.Config) DynamoDBAPI { return mock }})
	reg := registry.New[*resource.Table](resource.KindTable, actx.Regions())

	reports := d.Tables(context.Background(), reg)
	require.Len(t, reports, 3)

	sessions, ok := reg.Get("arn:aws:dynamodb:us-east-1:" + account + ":table/sessions")
	require.True(t, ok)
	assert.Equal(t, "KMS", sessions.SSEType)
	assert.Equal(t, "ACTIVE", sessions.Status)
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, sessions.Tags)

	events, _ := reg.Get("arn:aws:dynamodb:us-east-1:" + account + ":table/events")
	assert.Empty(t, events.SSEType)
}
