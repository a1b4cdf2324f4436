// Package secrets loads portal API credentials from AWS Secrets Manager.
package secrets

import (
	"context"
	"encoding/json"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// BasicAuth is the credential document stored under the portal secret ARN.
// TimeoutSeconds is optional and falls back to the configured default.
type BasicAuth struct {
	Username       string `json:"username"`
	Password       string `json:"password"`
	TimeoutSeconds int    `json:"timeout_s"`
}

// secretsAPI is the slice of the Secrets Manager client we use; tests swap
// in a fake.
type secretsAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// Loader fetches and decodes credential secrets.
type Loader struct {
	client secretsAPI
}

// NewLoader builds a loader against the default AWS credential chain.
func NewLoader(ctx context.Context, region string) (*Loader, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config for secrets: %w", err)
	}
	return &Loader{client: secretsmanager.NewFromConfig(cfg)}, nil
}

// NewLoaderWithClient wires an explicit client, used by tests.
func NewLoaderWithClient(client secretsAPI) *Loader {
	return &Loader{client: client}
}

// LoadBasicAuth fetches the basic-auth credential document for an ARN.
func (l *Loader) LoadBasicAuth(ctx context.Context, secretARN string) (BasicAuth, error) {
	resp, err := l.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: &secretARN,
	})
	if err != nil {
		return BasicAuth{}, fmt.Errorf("GetSecretValue %s: %w", secretARN, err)
	}

	var raw []byte
	switch {
	case resp.SecretString != nil:
		raw = []byte(*resp.SecretString)
	case resp.SecretBinary != nil:
		raw = resp.SecretBinary
	default:
		return BasicAuth{}, fmt.Errorf("secret %s has no value", secretARN)
	}

	var auth BasicAuth
	if err := json.Unmarshal(raw, &auth); err != nil {
		return BasicAuth{}, fmt.Errorf("decoding secret %s: %w", secretARN, err)
	}
	if auth.Username == "" || auth.Password == "" {
		return BasicAuth{}, fmt.Errorf("secret %s is missing username or password", secretARN)
	}
	return auth, nil
}
