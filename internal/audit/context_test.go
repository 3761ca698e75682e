package audit

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type prefixFilter string

func (p prefixFilter) Allows(arn string) bool {
	return len(arn) >= len(p) && arn[:len(p)] == string(p)
}

func TestNew_DedupesRegionsInOrder(t *testing.T) {
	c, err := New(Options{
		AccountID: "111122223333",
		Regions:   []string{"eu-west-1", "us-east-1", "eu-west-1", ""},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"eu-west-1", "us-east-1"}, c.Regions())
	assert.Equal(t, DefaultPartition, c.Partition())
	assert.Equal(t, "us-east-1", c.ConfigFor("us-east-1").Region)
}

func TestNew_RegionsCopy(t *testing.T) {
	c, err := New(Options{AccountID: "111122223333", Regions: []string{"us-east-1"}})
	require.NoError(t, err)

	r := c.Regions()
	r[0] = "mutated"
	assert.Equal(t, []string{"us-east-1"}, c.Regions())
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Options{Regions: []string{"us-east-1"}})
	assert.Error(t, err)

	_, err = New(Options{AccountID: "111122223333"})
	assert.Error(t, err)
}

func TestContext_AllowsAndARN(t *testing.T) {
	c, err := New(Options{
		AccountID: "111122223333",
		Partition: "aws-cn",
		Regions:   []string{"cn-north-1"},
		Filter:    prefixFilter("arn:aws-cn:sqs:"),
	})
	require.NoError(t, err)

	queueARN := c.ARN("sqs", "cn-north-1", "orders")
	assert.Equal(t, "arn:aws-cn:sqs:cn-north-1:111122223333:orders", queueARN)
	assert.True(t, c.Allows(queueARN))
	assert.False(t, c.Allows(c.ARN("kms", "cn-north-1", "key/abc")))

	open, err := New(Options{AccountID: "1", Regions: []string{"us-east-1"}})
	require.NoError(t, err)
	assert.True(t, open.Allows("anything"))
}

// ══════════════════════════════════════════════════════════════════════════════
// Session
// ══════════════════════════════════════════════════════════════════════════════

type mockSTSClient struct {
	GetCallerIdentityFunc func(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

func (m *mockSTSClient) GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error) {
	return m.GetCallerIdentityFunc(ctx, params, optFns...)
}

type mockRegionsClient struct {
	DescribeRegionsFunc func(ctx context.Context, params *ec2.DescribeRegionsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeRegionsOutput, error)
}

func (m *mockRegionsClient) DescribeRegions(ctx context.Context, params *ec2.DescribeRegionsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeRegionsOutput, error) {
	return m.DescribeRegionsFunc(ctx, params, optFns...)
}

func testSession(stsClient STSAPI, regions RegionsAPI) *Session {
	return &Session{
		LoadConfig: func(_ context.Context, _, region string) (aws.Config, error) {
			return aws.Config{Region: region}, nil
		},
		NewSTS:     func(aws.Config) STSAPI { return stsClient },
		NewRegions: func(aws.Config) RegionsAPI { return regions },
	}
}

func TestSession_OpenDiscoversRegions(t *testing.T) {
	stsMock := &mockSTSClient{
		GetCallerIdentityFunc: func(_ context.Context, _ *sts.GetCallerIdentityInput, _ ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error) {
			return &sts.GetCallerIdentityOutput{
				Account: aws.String("111122223333"),
				Arn:     aws.String("arn:aws-us-gov:iam::111122223333:user/auditor"),
			}, nil
		},
	}
	regionsMock := &mockRegionsClient{
		DescribeRegionsFunc: func(_ context.Context, _ *ec2.DescribeRegionsInput, _ ...func(*ec2.Options)) (*ec2.DescribeRegionsOutput, error) {
			return &ec2.DescribeRegionsOutput{Regions: []ec2types.Region{
				{RegionName: aws.String("us-gov-west-1")},
				{RegionName: aws.String("us-gov-east-1")},
			}}, nil
		},
	}

	c, err := testSession(stsMock, regionsMock).Open(context.Background(), SessionConfig{})
	require.NoError(t, err)

	assert.Equal(t, "111122223333", c.AccountID())
	assert.Equal(t, "aws-us-gov", c.Partition())
	assert.Equal(t, []string{"us-gov-east-1", "us-gov-west-1"}, c.Regions())
	assert.Equal(t, "us-gov-west-1", c.ConfigFor("us-gov-west-1").Region)
}

func TestSession_OpenConfiguredRegions(t *testing.T) {
	stsMock := &mockSTSClient{
		GetCallerIdentityFunc: func(_ context.Context, _ *sts.GetCallerIdentityInput, _ ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error) {
			return &sts.GetCallerIdentityOutput{Account: aws.String("111122223333")}, nil
		},
	}
	regionsMock := &mockRegionsClient{
		DescribeRegionsFunc: func(_ context.Context, _ *ec2.DescribeRegionsInput, _ ...func(*ec2.Options)) (*ec2.DescribeRegionsOutput, error) {
			t.Fatal("regions should not be discovered")
			return nil, nil
		},
	}

	c, err := testSession(stsMock, regionsMock).Open(context.Background(), SessionConfig{Regions: []string{"eu-west-1"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"eu-west-1"}, c.Regions())
	assert.Equal(t, DefaultPartition, c.Partition())
}

func TestSession_OpenIdentityError(t *testing.T) {
	stsMock := &mockSTSClient{
		GetCallerIdentityFunc: func(_ context.Context, _ *sts.GetCallerIdentityInput, _ ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error) {
			return nil, errors.New("expired token")
		},
	}

	_, err := testSession(stsMock, nil).Open(context.Background(), SessionConfig{Regions: []string{"us-east-1"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "get caller identity")
}
