package audit

import (
	"context"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/arn"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/rs/zerolog/log"
)

// STSAPI defines the STS operations used to identify the account.
type STSAPI interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// RegionsAPI defines the EC2 operation used to discover enabled regions.
type RegionsAPI interface {
	DescribeRegions(ctx context.Context, params *ec2.DescribeRegionsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeRegionsOutput, error)
}

// SessionConfig holds what is needed to open an audit session.
type SessionConfig struct {
	Profile    string
	HomeRegion string
	Regions    []string // empty means every enabled region
	Filter     ResourceFilter
}

// Session resolves an AWS identity into a Context. The client factories are
// swapped in tests.
type Session struct {
	LoadConfig func(ctx context.Context, profile, region string) (aws.Config, error)
	NewSTS     func(aws.Config) STSAPI
	NewRegions func(aws.Config) RegionsAPI
}

// NewSession returns a Session backed by the real SDK.
func NewSession() *Session {
	return &Session{
		LoadConfig: loadDefaultConfig,
		NewSTS:     func(cfg aws.Config) STSAPI { return sts.NewFromConfig(cfg) },
		NewRegions: func(cfg aws.Config) RegionsAPI { return ec2.NewFromConfig(cfg) },
	}
}

func loadDefaultConfig(ctx context.Context, profile, region string) (aws.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(profile))
	}
	return awsconfig.LoadDefaultConfig(ctx, opts...)
}

// Open loads credentials, resolves the account and partition and, when no
// regions are configured, discovers the enabled regions.
func (s *Session) Open(ctx context.Context, cfg SessionConfig) (*Context, error) {
	home := cfg.HomeRegion
	if home == "" {
		home = "us-east-1"
		if len(cfg.Regions) > 0 {
			home = cfg.Regions[0]
		}
	}

	base, err := s.LoadConfig(ctx, cfg.Profile, home)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	identity, err := s.NewSTS(base).GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return nil, fmt.Errorf("get caller identity: %w", err)
	}

	partition := DefaultPartition
	if parsed, err := arn.Parse(aws.ToString(identity.Arn)); err == nil {
		partition = parsed.Partition
	}

	regions := cfg.Regions
	if len(regions) == 0 {
		regions, err = s.enabledRegions(ctx, base)
		if err != nil {
			return nil, err
		}
	}

	log.Info().
		Str("account", aws.ToString(identity.Account)).
		Str("partition", partition).
		Strs("regions", regions).
		Msg("audit session opened")

	return New(Options{
		AccountID: aws.ToString(identity.Account),
		Partition: partition,
		Regions:   regions,
		Filter:    cfg.Filter,
		ConfigFor: func(region string) aws.Config {
			c := base.Copy()
			c.Region = region
			return c
		},
	})
}

func (s *Session) enabledRegions(ctx context.Context, cfg aws.Config) ([]string, error) {
	out, err := s.NewRegions(cfg).DescribeRegions(ctx, &ec2.DescribeRegionsInput{})
	if err != nil {
		return nil, fmt.Errorf("describe regions: %w", err)
	}
	regions := make([]string, 0, len(out.Regions))
	for _, r := range out.Regions {
		if name := aws.ToString(r.RegionName); name != "" {
			regions = append(regions, name)
		}
	}
	sort.Strings(regions)
	return regions, nil
}
