package httptransport

import (
	"folio/internal/admission/sanitize"
	"folio/internal/contact"
)

// Field bounds for the public forms.
const (
	chatMessageMax    = 1000
	nameMin, nameMax  = 2, 50
	emailMax          = 100
	subjectMin        = 5
	subjectMax        = 100
	contactMessageMin = 10
	contactMessageMax = 2000
	phoneMax          = 30
)

// ChatRequest is the body of POST /api/chatbot.
type ChatRequest struct {
	Message string `json:"message" validate:"required,notblank"`
}

func (r ChatRequest) Fields() []sanitize.Field {
	return []sanitize.Field{
		{Name: "message", Label: "Message", Value: r.Message, Min: 1, Max: chatMessageMax},
	}
}

// ContactRequest is the body of POST /api/contact.
type ContactRequest struct {
	Name    string `json:"name" validate:"required,notblank"`
	Email   string `json:"email" validate:"required,notblank"`
	Subject string `json:"subject" validate:"required,notblank"`
	Message string `json:"message" validate:"required,notblank"`
	Phone   string `json:"phone,omitempty"`
}

func (r ContactRequest) Fields() []sanitize.Field {
	return []sanitize.Field{
		{Name: "name", Label: "Name", Value: r.Name, Min: nameMin, Max: nameMax},
		{Name: "email", Label: "Email", Value: r.Email, Max: emailMax, Email: true},
		{Name: "subject", Label: "Subject", Value: r.Subject, Min: subjectMin, Max: subjectMax},
		{Name: "message", Label: "Message", Value: r.Message, Min: contactMessageMin, Max: contactMessageMax},
		{Name: "phone", Label: "Phone", Value: r.Phone, Max: phoneMax, Optional: true},
	}
}

func submissionFrom(fields map[string]string) contact.Submission {
	return contact.Submission{
		Name:    fields["name"],
		Email:   fields["email"],
		Subject: fields["subject"],
		Message: fields["message"],
		Phone:   fields["phone"],
	}
}

// ChatResponse is the data payload of a chat reply.
type ChatResponse struct {
	Response string `json:"response"`
}
