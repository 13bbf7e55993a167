package secret

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRef(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    Ref
		wantErr bool
	}{
		{name: "empty", in: "", want: Ref{}},
		{name: "env", in: "env:FTP_PASSWORD", want: Ref{Scheme: "env", Value: "FTP_PASSWORD"}},
		{name: "scheme is case-insensitive", in: "ENV:X", want: Ref{Scheme: "env", Value: "X"}},
		{name: "file", in: "file:~/.config/site/password", want: Ref{Scheme: "file", Value: "~/.config/site/password"}},
		{name: "bare prompt", in: "prompt:", want: Ref{Scheme: "prompt"}},
		{name: "labelled prompt", in: "prompt:FTP password", want: Ref{Scheme: "prompt", Value: "FTP password"}},
		{name: "aws-sm with key", in: "aws-sm:prod/site#password", want: Ref{Scheme: "aws-sm", Value: "prod/site#password"}},
		{name: "literal", in: "hunter2", wantErr: true},
		{name: "unknown scheme", in: "vault:secret/site", wantErr: true},
		{name: "empty env", in: "env:", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRef(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.in == "", got.IsZero())
		})
	}
}

func TestEnvProvider(t *testing.T) {
	env := map[string]string{"SET": "s3cret", "BLANK": ""}
	p := &EnvProvider{LookupEnv: func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}}

	got, err := p.Resolve(context.Background(), Ref{Scheme: SchemeEnv, Value: "SET"})
	require.NoError(t, err)
	assert.Equal(t, "s3cret", got)

	_, err = p.Resolve(context.Background(), Ref{Scheme: SchemeEnv, Value: "MISSING"})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = p.Resolve(context.Background(), Ref{Scheme: SchemeEnv, Value: "BLANK"})
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestFileProvider(t *testing.T) {
	dir := t.TempDir()
	withNewline := filepath.Join(dir, "password")
	require.NoError(t, os.WriteFile(withNewline, []byte("s3cret\r\n"), 0o600))
	empty := filepath.Join(dir, "empty")
	require.NoError(t, os.WriteFile(empty, []byte("\n"), 0o600))

	p := &FileProvider{}
	got, err := p.Resolve(context.Background(), Ref{Scheme: SchemeFile, Value: withNewline})
	require.NoError(t, err)
	assert.Equal(t, "s3cret", got)

	_, err = p.Resolve(context.Background(), Ref{Scheme: SchemeFile, Value: empty})
	assert.ErrorIs(t, err, ErrEmpty)

	_, err = p.Resolve(context.Background(), Ref{Scheme: SchemeFile, Value: filepath.Join(dir, "missing")})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPromptProviderRequiresTerminal(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "stdin")
	require.NoError(t, err)
	defer f.Close()

	_, err = (&PromptProvider{In: f}).Resolve(context.Background(), Ref{Scheme: SchemePrompt})
	assert.ErrorContains(t, err, "terminal")
}

type fakeSecretsManager struct {
	secrets map[string]string
	err     error
}

func (f *fakeSecretsManager) GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	v, ok := f.secrets[aws.ToString(params.SecretId)]
	if !ok {
		return nil, &smithy.GenericAPIError{Code: "ResourceNotFoundException", Message: "not found"}
	}
	return &secretsmanager.GetSecretValueOutput{SecretString: aws.String(v)}, nil
}

func TestAWSSecretsManagerProvider(t *testing.T) {
	client := &fakeSecretsManager{secrets: map[string]string{
		"plain":      "s3cret",
		"prod/site":  `{"username":"deploy","password":"from-json"}`,
		"not-json":   "abc",
		"empty-json": `{"password":""}`,
	}}
	p := &AWSSecretsManagerProvider{Client: client}

	tests := []struct {
		ref     string
		want    string
		wantErr error
	}{
		{ref: "plain", want: "s3cret"},
		{ref: "prod/site#password", want: "from-json"},
		{ref: "prod/site#missing", wantErr: ErrNotFound},
		{ref: "empty-json#password", wantErr: ErrEmpty},
		{ref: "absent", wantErr: ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			got, err := p.Resolve(context.Background(), Ref{Scheme: SchemeAWSSM, Value: tt.ref})
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := p.Resolve(context.Background(), Ref{Scheme: SchemeAWSSM, Value: "not-json#password"})
	assert.Error(t, err)

	denied := &AWSSecretsManagerProvider{Client: &fakeSecretsManager{
		err: &smithy.GenericAPIError{Code: "AccessDeniedException", Message: "no"},
	}}
	_, err = denied.Resolve(context.Background(), Ref{Scheme: SchemeAWSSM, Value: "plain"})
	assert.ErrorIs(t, err, ErrAccessDenied)
}

type staticProvider struct {
	value string
	err   error
}

func (p staticProvider) Resolve(ctx context.Context, ref Ref) (string, error) {
	return p.value, p.err
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	r.Register(SchemeEnv, staticProvider{value: "s3cret"})
	r.Register(SchemeFile, staticProvider{err: ErrNotFound})

	got, err := r.Resolve(context.Background(), "env:X")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", got)

	got, err = r.Resolve(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = r.Resolve(context.Background(), "file:/etc/site-password")
	var resolveErr *ResolveError
	require.True(t, errors.As(err, &resolveErr))
	assert.Equal(t, "file:/etc/site-password", resolveErr.Ref.String())
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = r.Resolve(context.Background(), "aws-sm:prod/site")
	assert.ErrorIs(t, err, ErrUnknownScheme)
}

func TestResolveErrorDoesNotLeakValue(t *testing.T) {
	r := NewRegistry()
	r.Register(SchemeEnv, staticProvider{value: "hunter2", err: errors.New("boom")})

	_, err := r.Resolve(context.Background(), "env:PASSWORD")
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "hunter2")
	assert.Contains(t, err.Error(), "env:PASSWORD")
}
