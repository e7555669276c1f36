package email

// Config holds the sender identity shared by every transport.
// SenderEmail and SupportEmail are required; the latter is used as Reply-To.
type Config struct {
	SenderEmail  string `env:"SENDER_EMAIL,required"`
	SupportEmail string `env:"SUPPORT_EMAIL,required"`
}

// PostmarkConfig holds Postmark API credentials.
type PostmarkConfig struct {
	Config
	ServerToken  string `env:"POSTMARK_SERVER_TOKEN"`
	AccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`
}

// SESConfig holds Amazon SES settings. Static keys are optional; without them
// the default AWS credential chain is used.
type SESConfig struct {
	Config
	Region           string `env:"EMAIL_SES_REGION" envDefault:"us-east-1"`
	AccessKeyID      string `env:"EMAIL_SES_ACCESS_KEY_ID"`
	SecretAccessKey  string `env:"EMAIL_SES_SECRET_ACCESS_KEY"`
	ConfigurationSet string `env:"EMAIL_SES_CONFIGURATION_SET"`
}

// DevConfig configures the file-writing development sender.
type DevConfig struct {
	Dir string `env:"EMAIL_DEV_DIR" envDefault:"./tmp/emails"`
}
