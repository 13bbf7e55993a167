package secret

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/smithy-go"
)

// SecretsManagerAPI is the subset of the Secrets Manager client used here.
type SecretsManagerAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// AWSSecretsManagerProvider resolves "aws-sm:SECRET_ID" and
// "aws-sm:SECRET_ID#key". With a key, the secret must be a JSON object and
// the named string field is returned.
type AWSSecretsManagerProvider struct {
	Region  string
	Profile string

	// Client is created from the default AWS config on first use when nil.
	Client SecretsManagerAPI
}

func (p *AWSSecretsManagerProvider) Resolve(ctx context.Context, ref Ref) (string, error) {
	id, key, _ := strings.Cut(ref.Value, "#")
	if id == "" {
		return "", errors.New("secret id cannot be empty")
	}

	client, err := p.client(ctx)
	if err != nil {
		return "", err
	}

	out, err := client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(id),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			switch apiErr.ErrorCode() {
			case "ResourceNotFoundException":
				return "", ErrNotFound
			case "AccessDeniedException":
				return "", ErrAccessDenied
			}
		}
		return "", fmt.Errorf("get secret value: %w", err)
	}

	var value string
	switch {
	case out.SecretString != nil:
		value = *out.SecretString
	case out.SecretBinary != nil:
		value = string(out.SecretBinary)
	}
	if value == "" {
		return "", ErrEmpty
	}

	if key == "" {
		return value, nil
	}

	var fields map[string]any
	if err := json.Unmarshal([]byte(value), &fields); err != nil {
		return "", errors.New("secret is not a JSON object")
	}
	field, ok := fields[key].(string)
	if !ok {
		return "", fmt.Errorf("key %q: %w", key, ErrNotFound)
	}
	if field == "" {
		return "", fmt.Errorf("key %q: %w", key, ErrEmpty)
	}
	return field, nil
}

func (p *AWSSecretsManagerProvider) client(ctx context.Context) (SecretsManagerAPI, error) {
	if p.Client != nil {
		return p.Client, nil
	}

	var opts []func(*config.LoadOptions) error
	if p.Region != "" {
		opts = append(opts, config.WithRegion(p.Region))
	}
	if p.Profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(p.Profile))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	p.Client = secretsmanager.NewFromConfig(cfg)
	return p.Client, nil
}
