package config

import (
	"context"
	"fmt"
	"log"
	"strings"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	smpb "cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"google.golang.org/api/option"
)

// ResolveSecrets loads the token signing secret from Secret Manager when
// JWT_SECRET_NAME is set. The name is a full resource such as
// "projects/p/secrets/jwt/versions/latest".
func (c *Config) ResolveSecrets(ctx context.Context) error {
	name := strings.TrimSpace(c.JWTSecretName)
	if name == "" {
		return nil
	}

	var opts []option.ClientOption
	if c.GCPCredentials != "" {
		opts = append(opts, option.WithCredentialsFile(c.GCPCredentials))
	}
	client, err := secretmanager.NewClient(ctx, opts...)
	if err != nil {
		return fmt.Errorf("secretmanager.NewClient: %w", err)
	}
	defer client.Close()

	res, err := client.AccessSecretVersion(ctx, &smpb.AccessSecretVersionRequest{Name: name})
	if err != nil {
		return fmt.Errorf("access secret version %s: %w", name, err)
	}

	c.JWTSecret = strings.TrimSpace(string(res.GetPayload().GetData()))
	log.Printf("[config] JWT secret loaded from Secret Manager (%s)", name)
	return nil
}
