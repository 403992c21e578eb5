package contact

// Submission is a sanitized contact form.
type Submission struct {
	Name    string
	Email   string
	Subject string
	Message string
	Phone   string
}

// Result reports which of the two emails went out.
type Result struct {
	Message          string `json:"message"`
	Sent             bool   `json:"sent"`
	NotificationSent bool   `json:"notificationSent"`
	AutoReplySent    bool   `json:"autoReplySent"`
}

// Kind names one of the two outgoing emails.
type Kind string

const (
	KindNotification Kind = "notification"
	KindAutoReply    Kind = "auto_reply"
)

// Message is a rendered email ready for a Sender.
type Message struct {
	Kind     Kind
	FromName string
	From     string
	To       string
	ReplyTo  string
	Subject  string
	HTML     string
	Text     string
}

// Identity is the site owner as shown in outgoing mail.
type Identity struct {
	OwnerName string
	// From is the authenticated mailbox every message is sent from.
	From string
	// NotifyTo receives contact notifications.
	NotifyTo string
	SiteURL  string
}

const thankYouMessage = "Thank you for your message! I'll get back to you soon."

// FallbackAutoReply is used when no generated reply is available.
const FallbackAutoReply = "Thank you for reaching out! I appreciate your interest and will personally review your message. I'll get back to you within 24-48 hours with a detailed response."
