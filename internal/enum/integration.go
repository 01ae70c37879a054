package enum

type IntegrationService string

const (
	IntegrationServiceTelegram IntegrationService = "TELEGRAM"
	IntegrationServiceTrello   IntegrationService = "TRELLO"
)

func (s IntegrationService) String() string {
	return string(s)
}

type IntegrationStatus string

const (
	IntegrationStatusPending IntegrationStatus = "PENDING"
	IntegrationStatusSuccess IntegrationStatus = "SUCCESS"
	IntegrationStatusFailed  IntegrationStatus = "FAILED"
	IntegrationStatusRetried IntegrationStatus = "RETRIED"
)

func (s IntegrationStatus) String() string {
	return string(s)
}
