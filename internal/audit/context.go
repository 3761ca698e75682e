// Package audit holds the immutable session metadata shared by every
// discovery pass: account, partition, audited regions, resource filter and
// the per-region client configuration.
package audit

import (
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
)

// DefaultPartition is used when no partition is resolved.
const DefaultPartition = "aws"

// ResourceFilter decides whether a resource ARN is audited.
type ResourceFilter interface {
	Allows(arn string) bool
}

// ConfigFactory returns the SDK configuration scoped to a region.
type ConfigFactory func(region string) aws.Config

// Options configure a Context.
type Options struct {
	AccountID string
	Partition string
	Regions   []string
	Filter    ResourceFilter
	ConfigFor ConfigFactory
}

// Context is the session metadata for one audit. It is immutable once built
// and safe to share between goroutines.
type Context struct {
	accountID string
	partition string
	regions   []string
	filter    ResourceFilter
	configFor ConfigFactory
}

// New validates opts and builds a Context. Regions keep their given order
// with duplicates removed.
func New(opts Options) (*Context, error) {
	if opts.AccountID == "" {
		return nil, errors.New("audit: account id required")
	}

	c := &Context{
		accountID: opts.AccountID,
		partition: opts.Partition,
		filter:    opts.Filter,
		configFor: opts.ConfigFor,
	}
	if c.partition == "" {
		c.partition = DefaultPartition
	}
	seen := make(map[string]struct{}, len(opts.Regions))
	for _, r := range opts.Regions {
		if r == "" {
			continue
		}
		if _, dup := seen[r]; dup {
			continue
		}
		seen[r] = struct{}{}
		c.regions = append(c.regions, r)
	}
	if len(c.regions) == 0 {
		return nil, errors.New("audit: at least one region required")
	}
	if c.configFor == nil {
		c.configFor = func(region string) aws.Config {
			return aws.Config{Region: region}
		}
	}
	return c, nil
}

// AccountID returns the audited account.
func (c *Context) AccountID() string { return c.accountID }

// Partition returns the AWS partition, such as "aws" or "aws-cn".
func (c *Context) Partition() string { return c.partition }

// Regions returns a copy of the audited regions in audit order.
func (c *Context) Regions() []string {
	return append([]string(nil), c.regions...)
}

// Allows applies the resource filter. No filter admits every ARN.
func (c *Context) Allows(arn string) bool {
	if c.filter == nil {
		return true
	}
	return c.filter.Allows(arn)
}

// ConfigFor returns the SDK configuration for region.
func (c *Context) ConfigFor(region string) aws.Config {
	return c.configFor(region)
}

// ARN builds an ARN in this account and partition.
func (c *Context) ARN(service, region, resource string) string {
	return fmt.Sprintf("arn:%s:%s:%s:%s:%s", c.partition, service, region, c.accountID, resource)
}
