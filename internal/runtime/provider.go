// Package runtime is the boundary to the container runtime: listing
// containers, reading their labels, and fetching one stats snapshot.
package runtime

import "context"

// StateRunning is the list state of a container that can be sampled.
const StateRunning = "running"

// Container is one entry of the runtime's container list.
type Container struct {
	ID     string
	Names  []string
	State  string
	Labels map[string]string
}

// Provider is implemented by Docker and by the fake in runtime/testing.
type Provider interface {
	// ListContainers returns all containers known to the runtime, in any state.
	ListContainers(ctx context.Context) ([]Container, error)
	// InspectLabels returns the configuration labels of a container.
	InspectLabels(ctx context.Context, id string) (map[string]string, error)
	// Stats returns one raw, non-streamed stats body for a container.
	Stats(ctx context.Context, id string) ([]byte, error)
	Close() error
}
