// Package discovery finds self-hosted OpenAI-compatible embedding servers.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
)

// ErrNoEndpoint is returned by Lookup when no container serves the model.
var ErrNoEndpoint = errors.New("no embeddings endpoint found")

// ServerType identifies the inference server software.
type ServerType string

const (
	ServerVLLM     ServerType = "vllm"
	ServerOllama   ServerType = "ollama"
	ServerLlamaCpp ServerType = "llamacpp"
	ServerLMStudio ServerType = "lmstudio"
	ServerGeneric  ServerType = "generic"
)

// Endpoint is a discovered server. BaseURL is suitable for oaiembed.WithBaseURL.
type Endpoint struct {
	ID      string
	Type    ServerType
	BaseURL *url.URL

	// Model is the model label, empty when the container does not declare one.
	Model string
}

// LabelConfig names the container labels that opt a container in and describe it.
// A key is the label name without Prefix.
type LabelConfig struct {
	Prefix         string
	EnabledKey     string
	BackendTypeKey string
	PortKey        string
	ModelKey       string
	URLKey         string

	// DefaultHost is used to build the URL when no URL label is set.
	DefaultHost string
}

// DefaultLabels is the label set used unless WithLabels overrides it.
var DefaultLabels = LabelConfig{
	Prefix:         "oaiembed.",
	EnabledKey:     "enabled",
	BackendTypeKey: "backend",
	PortKey:        "port",
	ModelKey:       "model",
	URLKey:         "url",
	DefaultHost:    "localhost",
}

func (l LabelConfig) key(k string) string {
	return l.Prefix + k
}

// containerLister is the part of the Docker API client the discoverer uses.
type containerLister interface {
	ContainerList(ctx context.Context, options container.ListOptions) ([]types.Container, error)
	Close() error
}

// DockerDiscoverer finds embedding servers running in labeled Docker containers.
type DockerDiscoverer struct {
	client    containerLister
	labels    LabelConfig
	ownClient bool
}

// DockerOption configures the Docker discoverer.
type DockerOption func(*DockerDiscoverer)

// WithLabels replaces the label configuration.
func WithLabels(cfg LabelConfig) DockerOption {
	return func(d *DockerDiscoverer) {
		d.labels = cfg
	}
}

// WithDockerClient uses an existing Docker client.
func WithDockerClient(c *client.Client) DockerOption {
	return func(d *DockerDiscoverer) {
		d.client = c
		d.ownClient = false
	}
}

// NewDockerDiscoverer creates a new Docker discoverer. Without WithDockerClient
// it connects using the standard DOCKER_* environment variables.
func NewDockerDiscoverer(opts ...DockerOption) (*DockerDiscoverer, error) {
	d := &DockerDiscoverer{
		labels:    DefaultLabels,
		ownClient: true,
	}

	for _, opt := range opts {
		opt(d)
	}

	if d.client == nil {
		c, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
		if err != nil {
			return nil, fmt.Errorf("failed to create Docker client: %w", err)
		}
		d.client = c
	}

	return d, nil
}

// Discover lists running containers that carry the enabled label.
func (d *DockerDiscoverer) Discover(ctx context.Context) ([]Endpoint, error) {
	containers, err := d.client.ContainerList(ctx, container.ListOptions{
		Filters: filters.NewArgs(filters.Arg("label", d.labels.key(d.labels.EnabledKey)+"=true")),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}

	var found []Endpoint
	for _, c := range containers {
		if ep, ok := d.containerToEndpoint(c); ok {
			found = append(found, ep)
		}
	}

	return found, nil
}

// Lookup returns the first endpoint labeled with model, falling back to the
// first endpoint without a model label.
func (d *DockerDiscoverer) Lookup(ctx context.Context, model string) (Endpoint, error) {
	endpoints, err := d.Discover(ctx)
	if err != nil {
		return Endpoint{}, err
	}

	var fallback *Endpoint
	for i, ep := range endpoints {
		if ep.Model == model {
			return ep, nil
		}
		if ep.Model == "" && fallback == nil {
			fallback = &endpoints[i]
		}
	}
	if fallback != nil {
		return *fallback, nil
	}

	return Endpoint{}, fmt.Errorf("%w for model %q", ErrNoEndpoint, model)
}

func (d *DockerDiscoverer) containerToEndpoint(c types.Container) (Endpoint, bool) {
	if c.Labels[d.labels.key(d.labels.EnabledKey)] != "true" {
		return Endpoint{}, false
	}

	serverType := ServerGeneric
	if t, ok := c.Labels[d.labels.key(d.labels.BackendTypeKey)]; ok && t != "" {
		serverType = ServerType(t)
	}

	u, err := url.Parse(d.getBaseURL(c, serverType))
	if err != nil {
		return Endpoint{}, false
	}

	return Endpoint{
		ID:      fmt.Sprintf("%s-%s", serverType, d.containerName(c)),
		Type:    serverType,
		BaseURL: u,
		Model:   c.Labels[d.labels.key(d.labels.ModelKey)],
	}, true
}

// getBaseURL prefers the URL label, then DefaultHost with the port label or
// the server type's default port.
func (d *DockerDiscoverer) getBaseURL(c types.Container, serverType ServerType) string {
	if u, ok := c.Labels[d.labels.key(d.labels.URLKey)]; ok && u != "" {
		return u
	}

	port := defaultPortForType(serverType)
	if portStr, ok := c.Labels[d.labels.key(d.labels.PortKey)]; ok {
		if p, err := strconv.Atoi(portStr); err == nil {
			port = p
		}
	}

	return fmt.Sprintf("http://%s:%d", d.labels.DefaultHost, port)
}

func (d *DockerDiscoverer) containerName(c types.Container) string {
	if len(c.Names) > 0 {
		return strings.TrimPrefix(c.Names[0], "/")
	}
	if len(c.ID) > 12 {
		return c.ID[:12]
	}
	return c.ID
}

func defaultPortForType(t ServerType) int {
	switch t {
	case ServerVLLM:
		return 8000
	case ServerOllama:
		return 11434
	case ServerLMStudio:
		return 1234
	default:
		return 8080
	}
}

// Close closes the Docker client if owned by this discoverer.
func (d *DockerDiscoverer) Close() error {
	if d.ownClient && d.client != nil {
		return d.client.Close()
	}
	return nil
}
