package job

// Type tags a Job with the handler that should process it. It is an open
// string type — any value can be registered against a Processor at runtime
// — but the constants below document the built-in set this shop's handlers
// ship for, matching spec.md's illustrative enumeration.
type Type string

const (
	TypeDigest          Type = "digest"
	TypeNotification    Type = "notification"
	TypeCleanup         Type = "cleanup"
	TypeHealthCheck     Type = "health-check"
	TypeWebhookDelivery Type = "webhook-delivery"
	TypeDataSync        Type = "data-sync"
	TypeBackup          Type = "backup"
)
