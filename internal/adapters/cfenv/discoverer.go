// Package cfenv discovers bound service credentials on Cloud Foundry.
package cfenv

import (
	cfenv "github.com/cloudfoundry-community/go-cfenv"
)

// Discoverer reads VCAP_APPLICATION and VCAP_SERVICES. Outside Cloud
// Foundry it simply finds nothing.
type Discoverer struct {
	environ func() map[string]string
}

// New creates a discoverer over the process environment.
func New() *Discoverer {
	return &Discoverer{environ: cfenv.CurrentEnv}
}

// NewWithEnv creates a discoverer over a fixed environment.
func NewWithEnv(env map[string]string) *Discoverer {
	return &Discoverer{environ: func() map[string]string { return env }}
}

// ServiceCredentials returns the credentials of the first bound instance of
// the service with the given label.
func (d *Discoverer) ServiceCredentials(label string) (map[string]interface{}, bool) {
	app, err := cfenv.New(d.environ())
	if err != nil || app == nil {
		return nil, false
	}

	instances := app.Services[label]
	if len(instances) == 0 {
		return nil, false
	}
	creds := instances[0].Credentials
	if len(creds) == 0 {
		return nil, false
	}
	return creds, true
}
