package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/kursadbilgin/newsletter-engine/internal/domain"
)

type sesSendAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESProvider sends through the AWS SES v2 SendEmail API.
type SESProvider struct {
	client sesSendAPI
	from   string
}

// NewSESProvider uses static credentials when both keys are set and the
// default AWS credential chain otherwise.
func NewSESProvider(ctx context.Context, region, accessKeyID, secretAccessKey, from string) (*SESProvider, error) {
	if strings.TrimSpace(from) == "" {
		return nil, fmt.Errorf("sender address is required")
	}
	if region == "" {
		region = "us-east-1"
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if accessKeyID != "" && secretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	return newSESProviderWithClient(sesv2.NewFromConfig(awsCfg), from), nil
}

func newSESProviderWithClient(client sesSendAPI, from string) *SESProvider {
	return &SESProvider{client: client, from: from}
}

func (p *SESProvider) Send(ctx context.Context, msg domain.MailMessage) (*ProviderResponse, error) {
	if err := msg.Validate(); err != nil {
		return nil, &ProviderError{Message: "invalid message", Cause: err}
	}

	output, err := p.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(p.from),
		Destination:      &types.Destination{ToAddresses: []string{msg.To}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String("UTF-8")},
				Body: &types.Body{
					Html: &types.Content{Data: aws.String(msg.HTML), Charset: aws.String("UTF-8")},
				},
			},
		},
	})
	if err != nil {
		return nil, classifySESError(err)
	}

	return &ProviderResponse{
		StatusCode: 200,
		MessageID:  aws.ToString(output.MessageId),
	}, nil
}

func classifySESError(err error) *ProviderError {
	var (
		throttled *types.TooManyRequestsException
		limited   *types.LimitExceededException
		rejected  *types.MessageRejected
		badInput  *types.BadRequestException
	)

	switch {
	case errors.As(err, &throttled), errors.As(err, &limited):
		return &ProviderError{StatusCode: 429, Message: "ses throttled request", Transient: true, Cause: err}
	case errors.As(err, &rejected):
		return &ProviderError{StatusCode: 400, Message: "ses rejected message", Cause: err}
	case errors.As(err, &badInput):
		return &ProviderError{StatusCode: 400, Message: "ses bad request", Cause: err}
	default:
		return transportError("ses request failed", err)
	}
}
