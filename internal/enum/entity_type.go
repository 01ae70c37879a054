package enum

type EntityType string

const (
	MAILBOX            EntityType = "MAILBOX"
	EMAIL_MESSAGE      EntityType = "EMAIL_MESSAGE"
	AUTOMATION_RULE    EntityType = "AUTOMATION_RULE"
	EXTRACTION_PROFILE EntityType = "EXTRACTION_PROFILE"
	INTEGRATION_CONFIG EntityType = "INTEGRATION_CONFIG"
)

func (entityType EntityType) String() string {
	return string(entityType)
}

func GetEntityType(s string) EntityType {
	return EntityType(s)
}
