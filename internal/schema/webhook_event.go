package schema

// ProcessedWebhookEvent records every processor event that was applied so a
// redelivery becomes a no-op.
type ProcessedWebhookEvent struct {
	CreatedOnly

	Provider    string `gorm:"size:32;not null;uniqueIndex:idx_webhook_provider_event,priority:1" json:"provider"`
	EventID     string `gorm:"size:255;not null;uniqueIndex:idx_webhook_provider_event,priority:2" json:"event_id"`
	EventType   string `gorm:"size:128;not null" json:"event_type"`
	ExternalRef string `gorm:"size:255;index" json:"external_ref"`
	Outcome     string `gorm:"size:64;not null" json:"outcome"`
}
