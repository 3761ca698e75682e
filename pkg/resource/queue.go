package resource

// ManagedSSEKey is recorded as the queue key when SQS-managed encryption is on.
const ManagedSSEKey = "SqsManagedSseEnabled"

// Queue is an SQS queue.
type Queue struct {
	Base
	URL      string          `json:"url"`
	Policy   *PolicyDocument `json:"policy,omitempty"`
	KMSKeyID string          `json:"kms_key_id"`

	// PublicPolicy is true when the access policy admits anonymous principals.
	PublicPolicy bool `json:"public_policy"`
}

// Kind implements Resource.
func (*Queue) Kind() Kind { return KindQueue }

// Encrypted reports whether any server-side encryption key is configured.
func (q *Queue) Encrypted() bool { return q.KMSKeyID != "" }
