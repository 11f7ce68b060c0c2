package core

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/go-viper/mapstructure/v2"
)

// Credentials are Object Storage (OpenStack Swift) service credentials as
// bound by the hosting platform, plus the fields derived during
// normalization.
type Credentials struct {
	Provider    string `mapstructure:"provider" json:"provider,omitempty"`
	AuthVersion string `mapstructure:"keystoneAuthVersion" json:"keystoneAuthVersion,omitempty"`
	AuthURL     string `mapstructure:"authUrl" json:"authUrl,omitempty"`
	RawAuthURL  string `mapstructure:"auth_url" json:"auth_url,omitempty"`
	TenantID    string `mapstructure:"tenantId" json:"tenantId,omitempty"`
	Project     string `mapstructure:"project" json:"project,omitempty"`
	ProjectID   string `mapstructure:"projectId" json:"projectId,omitempty"`
	Region      string `mapstructure:"region" json:"region,omitempty"`
	UserID      string `mapstructure:"userId" json:"userId,omitempty"`
	Username    string `mapstructure:"username" json:"username,omitempty"`
	Password    string `mapstructure:"password" json:"password,omitempty"`
	DomainID    string `mapstructure:"domainId" json:"domainId,omitempty"`
	DomainName  string `mapstructure:"domainName" json:"domainName,omitempty"`
	Role        string `mapstructure:"role" json:"role,omitempty"`
}

const (
	providerOpenStack  = "openstack"
	defaultAuthVersion = "v3"
)

// DecodeCredentials decodes a loosely typed credentials map.
func DecodeCredentials(raw map[string]interface{}) (Credentials, error) {
	var creds Credentials
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &creds,
	})
	if err != nil {
		return Credentials{}, fmt.Errorf("creating credentials decoder: %w", err)
	}
	if err := dec.Decode(raw); err != nil {
		return Credentials{}, fmt.Errorf("decoding credentials: %w", err)
	}
	return creds, nil
}

// Normalize fills in the fields the storage client needs from what the
// platform binds: provider openstack, keystone v3, tenant id from project
// id and auth URL from the raw auth_url. Discovered credentials always carry
// these values, so they are overwritten.
func (c Credentials) Normalize() Credentials {
	c.Provider = providerOpenStack
	c.AuthVersion = defaultAuthVersion
	c.TenantID = c.ProjectID
	c.AuthURL = versionedAuthURL(c.RawAuthURL, c.AuthVersion)
	return c
}

// Complete fills only the missing fields. Used for credentials handed in
// explicitly by the host, which may already be fully specified.
func (c Credentials) Complete() Credentials {
	if c.Provider == "" {
		c.Provider = providerOpenStack
	}
	if c.AuthVersion == "" {
		c.AuthVersion = defaultAuthVersion
	}
	if c.TenantID == "" {
		c.TenantID = c.ProjectID
	}
	if c.AuthURL == "" {
		c.AuthURL = versionedAuthURL(c.RawAuthURL, c.AuthVersion)
	}
	return c
}

// AuthVersionNumber returns the keystone version as an integer (0 if unset).
func (c Credentials) AuthVersionNumber() int {
	v := strings.TrimPrefix(strings.ToLower(c.AuthVersion), "v")
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

// LogValue keeps secrets out of logs.
func (c Credentials) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("provider", c.Provider),
		slog.String("auth_url", c.AuthURL),
		slog.String("region", c.Region),
		slog.String("project_id", c.ProjectID),
		slog.String("username", c.Username),
	)
}

// versionedAuthURL appends the keystone version path when the platform
// hands out a bare identity endpoint.
func versionedAuthURL(raw, version string) string {
	trimmed := strings.TrimRight(raw, "/")
	if trimmed == "" {
		return ""
	}
	suffix := "/" + version
	if strings.HasSuffix(trimmed, suffix) {
		return trimmed
	}
	return trimmed + suffix
}
