package checks

import (
	"fmt"

	"github.com/yairfalse/warden/internal/check"
	"github.com/yairfalse/warden/internal/inventory"
	"github.com/yairfalse/warden/pkg/resource"
)

func dbInstances(inv *inventory.Inventory) []*resource.DBInstance {
	return inv.DBInstances.All()
}

// DBStorageEncrypted fails instances with unencrypted storage.
func DBStorageEncrypted() check.Check {
	return &check.ResourceCheck[*resource.DBInstance]{
		Meta:   metadata("rds_instance_storage_encrypted"),
		Select: dbInstances,
		Evaluate: func(db *resource.DBInstance) (check.Status, string) {
			if db.StorageEncrypted {
				return check.StatusPass, fmt.Sprintf("RDS instance %s is encrypted.", db.ID)
			}
			return check.StatusFail, fmt.Sprintf("RDS instance %s is not encrypted.", db.ID)
		},
	}
}

// DBNoPublicAccess fails publicly accessible instances.
func DBNoPublicAccess() check.Check {
	return &check.ResourceCheck[*resource.DBInstance]{
		Meta:   metadata("rds_instance_no_public_access"),
		Select: dbInstances,
		Evaluate: func(db *resource.DBInstance) (check.Status, string) {
			if db.PubliclyAccessible {
				return check.StatusFail, fmt.Sprintf("RDS instance %s is set as publicly accessible.", db.ID)
			}
			return check.StatusPass, fmt.Sprintf("RDS instance %s is not publicly accessible.", db.ID)
		},
	}
}
