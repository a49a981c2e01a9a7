package models

// PushMessage is one outbound push addressed to a single device token.
type PushMessage struct {
	Token string
	Title string
	Body  string
	Data  map[string]string
}

// PushResult is the gateway outcome for the PushMessage at the same index.
type PushResult struct {
	Accepted          bool
	ProviderErrorCode string
}
