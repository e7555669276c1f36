package notifications

// Content is the channel-specific payload rendered from a notification's data.
// The set of implementations is closed: EmailContent and InAppContent.
type Content interface {
	// Channel reports which channel kind the payload is shaped for.
	Channel() ChannelName
	sealed()
}

// EmailContent is the payload for the email channel.
type EmailContent struct {
	Subject string `json:"subject"`
	HTML    string `json:"html"`
	Text    string `json:"text"`
}

func (EmailContent) Channel() ChannelName { return ChannelEmail }
func (EmailContent) sealed()              {}

// InAppContent is the payload for the in-app channel.
type InAppContent struct {
	Title string `json:"title"`
	Body  string `json:"body,omitempty"`
	URL   string `json:"url,omitempty"`
	Icon  string `json:"icon,omitempty"`
}

func (InAppContent) Channel() ChannelName { return ChannelInApp }
func (InAppContent) sealed()              {}
