package checks

import (
	"fmt"

	"github.com/yairfalse/warden/internal/check"
	"github.com/yairfalse/warden/internal/inventory"
	"github.com/yairfalse/warden/pkg/resource"
)

func queues(inv *inventory.Inventory) []*resource.Queue {
	return inv.Queues.All()
}

// QueueEncryption fails queues without a server-side encryption key. A queue
// whose attributes could not be read has no key and fails.
func QueueEncryption() check.Check {
	return &check.ResourceCheck[*resource.Queue]{
		Meta:   metadata("sqs_queues_server_side_encryption_enabled"),
		Select: queues,
		Evaluate: func(q *resource.Queue) (check.Status, string) {
			if q.Encrypted() {
				return check.StatusPass, fmt.Sprintf("SQS queue %s is using Server Side Encryption.", q.Name)
			}
			return check.StatusFail, fmt.Sprintf("SQS queue %s is not using Server Side Encryption.", q.Name)
		},
	}
}

// QueueNotPublic fails queues whose policy admits anonymous principals.
func QueueNotPublic() check.Check {
	return &check.ResourceCheck[*resource.Queue]{
		Meta:   metadata("sqs_queues_not_publicly_accessible"),
		Select: queues,
		Evaluate: func(q *resource.Queue) (check.Status, string) {
			if q.PublicPolicy {
				return check.StatusFail, fmt.Sprintf("SQS queue %s policy allows public access.", q.Name)
			}
			return check.StatusPass, fmt.Sprintf("SQS queue %s is not public.", q.Name)
		},
	}
}
