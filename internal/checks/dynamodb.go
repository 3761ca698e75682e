package checks

import (
	"fmt"

	"github.com/yairfalse/warden/internal/check"
	"github.com/yairfalse/warden/internal/inventory"
	"github.com/yairfalse/warden/pkg/resource"
)

// TableKMSEncryption fails tables still using the AWS owned default key.
func TableKMSEncryption() check.Check {
	return &check.ResourceCheck[*resource.Table]{
		Meta: metadata("dynamodb_tables_kms_cmk_encryption_enabled"),
		Select: func(inv *inventory.Inventory) []*resource.Table {
			return inv.Tables.All()
		},
		Evaluate: func(t *resource.Table) (check.Status, string) {
			if t.SSEType == "KMS" {
				return check.StatusPass, fmt.Sprintf("DynamoDB table %s is encrypted with a KMS key.", t.Name)
			}
			return check.StatusFail, fmt.Sprintf("DynamoDB table %s is using the default AWS owned key.", t.Name)
		},
	}
}
