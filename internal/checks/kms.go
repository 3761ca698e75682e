package checks

import (
	"fmt"

	"github.com/yairfalse/warden/internal/check"
	"github.com/yairfalse/warden/internal/inventory"
	"github.com/yairfalse/warden/pkg/resource"
)

// KeyRotation fails enabled symmetric customer managed keys without rotation.
func KeyRotation() check.Check {
	return &check.ResourceCheck[*resource.Key]{
		Meta: metadata("kms_cmk_rotation_enabled"),
		Select: func(inv *inventory.Inventory) []*resource.Key {
			return inv.Keys.All()
		},
		Applies: (*resource.Key).Rotatable,
		Evaluate: func(k *resource.Key) (check.Status, string) {
			if k.RotationEnabled {
				return check.StatusPass, fmt.Sprintf("KMS key %s has automatic rotation enabled.", k.ID)
			}
			return check.StatusFail, fmt.Sprintf("KMS key %s has automatic rotation disabled.", k.ID)
		},
	}
}
