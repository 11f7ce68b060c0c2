package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bluemixCredentials() map[string]interface{} {
	return map[string]interface{}{
		"auth_url":   "https://identity.open.softlayer.com",
		"project":    "object_storage_1234",
		"projectId":  "abc123",
		"region":     "dallas",
		"userId":     "user-1",
		"username":   "admin_user",
		"password":   "s3cr3t-pass",
		"domainId":   "dom-1",
		"domainName": "777",
		"role":       "admin",
	}
}

func TestDecodeCredentials(t *testing.T) {
	t.Parallel()

	creds, err := DecodeCredentials(bluemixCredentials())
	require.NoError(t, err)

	assert.Equal(t, "https://identity.open.softlayer.com", creds.RawAuthURL)
	assert.Equal(t, "abc123", creds.ProjectID)
	assert.Equal(t, "dallas", creds.Region)
	assert.Equal(t, "admin_user", creds.Username)
	assert.Empty(t, creds.Provider)
	assert.Empty(t, creds.TenantID)
}

func TestCredentials_Normalize(t *testing.T) {
	t.Parallel()

	creds, err := DecodeCredentials(bluemixCredentials())
	require.NoError(t, err)

	creds.Provider = "other"
	n := creds.Normalize()

	assert.Equal(t, "openstack", n.Provider)
	assert.Equal(t, "v3", n.AuthVersion)
	assert.Equal(t, 3, n.AuthVersionNumber())
	assert.Equal(t, "abc123", n.TenantID)
	assert.Equal(t, "https://identity.open.softlayer.com/v3", n.AuthURL)
}

func TestCredentials_NormalizeKeepsVersionedURL(t *testing.T) {
	t.Parallel()

	n := Credentials{RawAuthURL: "https://keystone.example.com/v3/"}.Normalize()
	assert.Equal(t, "https://keystone.example.com/v3", n.AuthURL)
}

func TestCredentials_CompleteKeepsExplicitFields(t *testing.T) {
	t.Parallel()

	c := Credentials{
		Provider:    "openstack",
		AuthVersion: "v2",
		AuthURL:     "https://keystone.example.com/v2.0",
		TenantID:    "tenant",
		ProjectID:   "project",
	}.Complete()

	assert.Equal(t, "v2", c.AuthVersion)
	assert.Equal(t, 2, c.AuthVersionNumber())
	assert.Equal(t, "tenant", c.TenantID)
	assert.Equal(t, "https://keystone.example.com/v2.0", c.AuthURL)
}

func TestCredentials_LogValueHidesPassword(t *testing.T) {
	t.Parallel()

	c := Credentials{Username: "u", Password: "hunter2-secret"}
	v := c.LogValue()
	for _, attr := range v.Group() {
		assert.NotEqual(t, "password", attr.Key)
		assert.NotContains(t, attr.Value.String(), "hunter2")
	}
}

func TestCredentials_AuthVersionNumberInvalid(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0, Credentials{AuthVersion: "latest"}.AuthVersionNumber())
}
