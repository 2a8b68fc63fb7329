package models

// FormSubmission is a contact form post. It is never persisted.
type FormSubmission struct {
	Name    string
	Email   string
	Phone   string
	Message string
}

// Subscriber is one newsletter signup. Duplicates are allowed.
type Subscriber struct {
	Email string
}
