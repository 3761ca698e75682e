package resource

// DBInstance is an RDS database instance.
type DBInstance struct {
	Base
	Engine             string `json:"engine"`
	Status             string `json:"status"`
	PubliclyAccessible bool   `json:"publicly_accessible"`
	StorageEncrypted   bool   `json:"storage_encrypted"`
	KMSKeyID           string `json:"kms_key_id"`
}

// Kind implements Resource.
func (*DBInstance) Kind() Kind { return KindDBInstance }

// Table is a DynamoDB table.
type Table struct {
	Base
	Status    string `json:"status"`
	SSEType   string `json:"sse_type"` // empty means the AWS owned default key
	KMSKeyARN string `json:"kms_key_arn"`
}

// Kind implements Resource.
func (*Table) Kind() Kind { return KindTable }
