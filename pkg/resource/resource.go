// Package resource defines the normalized resource model audited by Warden.
//
// Every kind embeds Base for identity and tags. Raw fields are filled by
// discovery passes, derived fields are computed when the raw fields they
// depend on are set.
package resource

// Kind identifies a resource type.
type Kind string

const (
	KindSecurityGroup Kind = "security_group"
	KindQueue         Kind = "sqs_queue"
	KindKey           Kind = "kms_key"
	KindDBInstance    Kind = "rds_instance"
	KindTable         Kind = "dynamodb_table"
)

// Kinds lists every supported kind in discovery order.
func Kinds() []Kind {
	return []Kind{KindSecurityGroup, KindQueue, KindKey, KindDBInstance, KindTable}
}

// Resource is implemented by every audited resource kind.
type Resource interface {
	Kind() Kind
	Identity() *Base
}

// Base holds the fields shared by every kind.
type Base struct {
	ID     string            `json:"id"`
	ARN    string            `json:"arn"`
	Region string            `json:"region"`
	Name   string            `json:"name"`
	Tags   map[string]string `json:"tags"`
}

// Identity returns the shared identity fields.
func (b *Base) Identity() *Base { return b }

// SetTags replaces the tag map. A nil input leaves an empty map.
func (b *Base) SetTags(tags map[string]string) {
	b.Tags = make(map[string]string, len(tags))
	for k, v := range tags {
		b.Tags[k] = v
	}
}

// TagsCopy returns a copy of the tag map, safe to hand to consumers.
func (b *Base) TagsCopy() map[string]string {
	out := make(map[string]string, len(b.Tags))
	for k, v := range b.Tags {
		out[k] = v
	}
	return out
}

// NewBase creates a Base with an initialized tag map.
func NewBase(id, arn, region, name string) Base {
	return Base{
		ID:     id,
		ARN:    arn,
		Region: region,
		Name:   name,
		Tags:   make(map[string]string),
	}
}
