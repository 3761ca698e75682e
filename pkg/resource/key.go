package resource

// Key is a KMS key.
type Key struct {
	Base
	Manager         string `json:"manager"` // AWS or CUSTOMER
	State           string `json:"state"`
	Spec            string `json:"spec"`
	RotationEnabled bool   `json:"rotation_enabled"`
}

// Kind implements Resource.
func (*Key) Kind() Kind { return KindKey }

// CustomerManaged reports whether the key is owned by the account.
func (k *Key) CustomerManaged() bool { return k.Manager == "CUSTOMER" }

// Rotatable reports whether automatic rotation applies to the key.
func (k *Key) Rotatable() bool {
	return k.CustomerManaged() && k.State == "Enabled" && k.Spec == "SYMMETRIC_DEFAULT"
}
