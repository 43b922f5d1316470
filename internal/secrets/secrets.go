// Package secrets reads the mesh password from Google Secret Manager so it does not
// have to be typed or stored in the repository.
package secrets

import (
	"context"
	"fmt"
	"strings"
	"sync"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"glowlight/tools/setup/internal/glowerr"
)

// Source resolves a secret by resource name.
type Source interface {
	Access(ctx context.Context, name string) (string, error)
}

// AccessFunc fetches the payload of a fully qualified secret version.
type AccessFunc func(ctx context.Context, version string) ([]byte, error)

// SecretManager is a Source backed by Google Secret Manager using Application
// Default Credentials. The client is created on first use.
type SecretManager struct {
	mu     sync.Mutex
	access AccessFunc
	client *secretmanager.Client
}

// NewSecretManager creates a Source backed by Secret Manager.
func NewSecretManager() *SecretManager {
	return &SecretManager{}
}

// NewSecretManagerWithAccess creates a Source with a custom fetch function (for testing).
func NewSecretManagerWithAccess(access AccessFunc) *SecretManager {
	return &SecretManager{access: access}
}

// VersionName appends /versions/latest to names that do not pick a version.
func VersionName(name string) string {
	name = strings.TrimSuffix(strings.TrimSpace(name), "/")
	if strings.Contains(name, "/versions/") {
		return name
	}
	return name + "/versions/latest"
}

// Access returns the secret payload with surrounding whitespace removed.
func (s *SecretManager) Access(ctx context.Context, name string) (string, error) {
	if !strings.HasPrefix(name, "projects/") {
		return "", glowerr.Errorf(glowerr.KindValidation,
			"secret name %q must look like projects/<project>/secrets/<name>", name)
	}

	access, err := s.accessor(ctx)
	if err != nil {
		return "", err
	}

	version := VersionName(name)
	data, err := access(ctx, version)
	if err != nil {
		switch status.Code(err) {
		case codes.PermissionDenied:
			return "", glowerr.WithHints(
				glowerr.Errorf(glowerr.KindToolFailed, "no permission to access secret %s", version),
				"Ask for roles/secretmanager.secretAccessor on the secret",
			)
		case codes.NotFound:
			return "", glowerr.Errorf(glowerr.KindNotFound, "secret %s not found", version)
		}
		return "", fmt.Errorf("failed to access secret %s: %w", version, err)
	}
	return strings.TrimSpace(string(data)), nil
}

// Close releases the Secret Manager client if one was created.
func (s *SecretManager) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		return nil
	}
	err := s.client.Close()
	s.client = nil
	s.access = nil
	return err
}

func (s *SecretManager) accessor(ctx context.Context) (AccessFunc, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.access != nil {
		return s.access, nil
	}

	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return nil, glowerr.WithHints(
			glowerr.New(glowerr.KindToolFailed, fmt.Errorf("failed to create Secret Manager client: %w", err)),
			"Run: gcloud auth application-default login",
		)
	}
	s.client = client
	s.access = func(ctx context.Context, version string) ([]byte, error) {
		result, err := client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
			Name: version,
		})
		if err != nil {
			return nil, err
		}
		return result.GetPayload().GetData(), nil
	}
	return s.access, nil
}
