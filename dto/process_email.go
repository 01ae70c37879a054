package dto

// ProcessEmail asks a worker to run the extraction pipeline for one stored message.
type ProcessEmail struct {
	EmailMessageID string `json:"emailMessageId"`
}
