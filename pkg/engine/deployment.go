package engine

import (
	"sort"
	"strings"
	"sync"

	"github.com/ajitpratap0/grantsync/pkg/errors"
)

// Deployment captures what differs between institutions running the loader.
type Deployment struct {
	Name string
	// Domain namespaces every localKey and locator id, e.g. johnshopkins.edu.
	Domain string
	// PolicyBaseURL is prefixed to the SOURCE policy path of a funder.
	PolicyBaseURL string
	Comparator    Comparator
}

// Validate checks the deployment can drive a run.
func (d Deployment) Validate() error {
	if d.Domain == "" {
		return errors.New(errors.ErrorTypeConfig, "deployment domain is required").
			WithDetail("deployment", d.Name)
	}
	if d.Comparator == nil {
		return errors.New(errors.ErrorTypeConfig, "deployment comparator is required").
			WithDetail("deployment", d.Name)
	}
	return nil
}

// policyRef joins the base URL and a policy path with exactly one slash.
// Without a base URL there is no absolute reference to build.
func (d Deployment) policyRef(path string) string {
	base := d.PolicyBaseURL
	if base == "" {
		return ""
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base + path
}

var (
	deploymentsMu sync.RWMutex
	deployments   = map[string]Deployment{
		"default": {Name: "default", Domain: "johnshopkins.edu", Comparator: DefaultComparator{}},
		"harvard": {Name: "harvard", Domain: "harvard.edu", Comparator: DefaultComparator{}},
	}
)

// RegisterDeployment adds a named preset. Names are unique.
func RegisterDeployment(d Deployment) error {
	if err := d.Validate(); err != nil {
		return err
	}
	deploymentsMu.Lock()
	defer deploymentsMu.Unlock()
	if _, exists := deployments[d.Name]; exists {
		return errors.Newf(errors.ErrorTypeConfig, "deployment %s already registered", d.Name)
	}
	deployments[d.Name] = d
	return nil
}

// LookupDeployment returns a copy of the named preset.
func LookupDeployment(name string) (Deployment, error) {
	deploymentsMu.RLock()
	defer deploymentsMu.RUnlock()
	d, ok := deployments[name]
	if !ok {
		return Deployment{}, errors.Newf(errors.ErrorTypeConfig, "deployment %s not found", name)
	}
	return d, nil
}

// Deployments returns the registered presets sorted by name.
func Deployments() []Deployment {
	deploymentsMu.RLock()
	defer deploymentsMu.RUnlock()
	out := make([]Deployment, 0, len(deployments))
	for _, d := range deployments {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
