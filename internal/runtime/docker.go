package runtime

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"

	"github.com/rileyhilliard/dockerstats/internal/errors"
)

// Docker talks to a Docker Engine over its API.
type Docker struct {
	cli *client.Client
}

// NewDocker connects to the Docker Engine at host, or to the endpoint named by
// DOCKER_HOST and the other standard environment variables when host is empty.
func NewDocker(host string) (*Docker, error) {
	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if host != "" {
		opts = append(opts, client.WithHost(host))
	}

	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrRuntime,
			"Cannot create Docker client",
			"Check DOCKER_HOST or the docker_host setting")
	}
	return &Docker{cli: cli}, nil
}

func (d *Docker) ListContainers(ctx context.Context) ([]Container, error) {
	list, err := d.cli.ContainerList(ctx, container.ListOptions{All: true})
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrRuntime,
			"Cannot list containers",
			"Make sure the Docker daemon is running and reachable")
	}

	out := make([]Container, 0, len(list))
	for _, c := range list {
		out = append(out, Container{
			ID:     c.ID,
			Names:  c.Names,
			State:  c.State,
			Labels: c.Labels,
		})
	}
	return out, nil
}

func (d *Docker) InspectLabels(ctx context.Context, id string) (map[string]string, error) {
	info, err := d.cli.ContainerInspect(ctx, id)
	if err != nil {
		return nil, classify(err, id, "inspect")
	}
	if info.Config == nil {
		return map[string]string{}, nil
	}
	return info.Config.Labels, nil
}

func (d *Docker) Stats(ctx context.Context, id string) ([]byte, error) {
	resp, err := d.cli.ContainerStats(ctx, id, false)
	if err != nil {
		return nil, classify(err, id, "stats")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.WrapWithCode(err, errors.ErrTickAborted,
				fmt.Sprintf("Stats read for %s was cancelled", shortID(id)), "")
		}
		return nil, errors.WrapWithCode(err, errors.ErrRuntime,
			fmt.Sprintf("Cannot read stats for %s", shortID(id)), "")
	}
	return body, nil
}

func (d *Docker) Close() error {
	return d.cli.Close()
}

// classify maps a container-level failure onto the error taxonomy. A container
// that vanished or a cancelled request only aborts the tick.
func classify(err error, id, op string) error {
	if errdefs.IsNotFound(err) {
		return errors.WrapWithCode(err, errors.ErrTickAborted,
			fmt.Sprintf("Container %s is gone (%s)", shortID(id), op), "")
	}
	if errdefs.IsCancelled(err) || errdefs.IsDeadline(err) || stdCancelled(err) {
		return errors.WrapWithCode(err, errors.ErrTickAborted,
			fmt.Sprintf("Container %s %s was cancelled", shortID(id), op), "")
	}
	return errors.WrapWithCode(err, errors.ErrRuntime,
		fmt.Sprintf("Container %s %s failed", shortID(id), op),
		"Make sure the Docker daemon is running and reachable")
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

func stdCancelled(err error) bool {
	return stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded)
}
