package enum

type MessageStatus string

const (
	MessageStatusPending        MessageStatus = "PENDING"
	MessageStatusProcessing     MessageStatus = "PROCESSING"
	MessageStatusExtracted      MessageStatus = "EXTRACTED"
	MessageStatusRequiresReview MessageStatus = "REQUIRES_REVIEW"
	MessageStatusIntegrated     MessageStatus = "INTEGRATED"
	MessageStatusFailed         MessageStatus = "FAILED"
)

var messageStatusLabels = map[MessageStatus]string{
	MessageStatusPending:        "Pending Processing",
	MessageStatusProcessing:     "Processing",
	MessageStatusExtracted:      "Data Extracted",
	MessageStatusRequiresReview: "Requires Human Review (AI Failed)",
	MessageStatusIntegrated:     "Integrated (Trello/Telegram OK)",
	MessageStatusFailed:         "Critical Failure",
}

func (s MessageStatus) String() string {
	return string(s)
}

// Label is the human readable form returned by the API.
func (s MessageStatus) Label() string {
	if label, ok := messageStatusLabels[s]; ok {
		return label
	}
	return string(s)
}

func (s MessageStatus) IsValid() bool {
	_, ok := messageStatusLabels[s]
	return ok
}
