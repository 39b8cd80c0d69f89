package notifyowner

// Statuses
const (
	StatusSent     = "sent"
	StatusPartial  = "partial"
	StatusFailed   = "failed"
	StatusDisabled = "disabled"
)

// Channels
const (
	ChannelEmail = "email"
	ChannelSMS   = "sms"
)

const (
	emailSubjectTemplate = "New inquiry from {{name}}"
	emailBodyTemplate    = "A new inquiry was submitted on {{date}}.\n\nName: {{name}}\nEmail: {{email}}\nPhone: {{phone}}\n\n{{message}}\n"
	smsTemplate          = "New inquiry from {{name}} ({{email}})"
)
