package email

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

const charsetUTF8 = "UTF-8"

// SESAPI is the subset of the SES client used by SESSender.
type SESAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESSender sends email through Amazon SES.
type SESSender struct {
	client           SESAPI
	config           Config
	configurationSet string
}

// NewSESSender loads AWS configuration for cfg.Region and returns an SES-backed sender.
// Static credentials are used when both keys are set.
func NewSESSender(ctx context.Context, cfg SESConfig) (*SESSender, error) {
	if cfg.Region == "" {
		return nil, fmt.Errorf("%w: ses region is required", ErrInvalidConfig)
	}
	if (cfg.AccessKeyID == "") != (cfg.SecretAccessKey == "") {
		return nil, fmt.Errorf("%w: ses access key id and secret must be set together", ErrInvalidConfig)
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, errors.Join(ErrInvalidConfig, err)
	}
	return NewSESSenderWithClient(ses.NewFromConfig(awsCfg), cfg)
}

// NewSESSenderWithClient wraps an existing SES client.
func NewSESSenderWithClient(client SESAPI, cfg SESConfig) (*SESSender, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: ses client is nil", ErrInvalidConfig)
	}
	if err := validateAddress("sender email", cfg.SenderEmail); err != nil {
		return nil, err
	}
	if err := validateAddress("support email", cfg.SupportEmail); err != nil {
		return nil, err
	}
	return &SESSender{client: client, config: cfg.Config, configurationSet: cfg.ConfigurationSet}, nil
}

// SendEmail implements Sender.
func (s *SESSender) SendEmail(ctx context.Context, msg Message) (string, error) {
	if err := msg.Validate(); err != nil {
		return "", err
	}

	body := &types.Body{}
	if msg.HTML != "" {
		body.Html = &types.Content{Data: aws.String(msg.HTML), Charset: aws.String(charsetUTF8)}
	}
	if msg.Text != "" {
		body.Text = &types.Content{Data: aws.String(msg.Text), Charset: aws.String(charsetUTF8)}
	}

	input := &ses.SendEmailInput{
		Source:           aws.String(s.config.SenderEmail),
		ReplyToAddresses: []string{s.config.SupportEmail},
		Destination:      &types.Destination{ToAddresses: []string{msg.To}},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String(charsetUTF8)},
			Body:    body,
		},
	}
	if msg.Tag != "" {
		input.Tags = []types.MessageTag{{Name: aws.String("notification"), Value: aws.String(sanitizeFilename(msg.Tag))}}
	}
	if s.configurationSet != "" {
		input.ConfigurationSetName = aws.String(s.configurationSet)
	}

	out, err := s.client.SendEmail(ctx, input)
	if err != nil {
		return "", errors.Join(ErrFailedToSendEmail, err)
	}
	return aws.ToString(out.MessageId), nil
}
