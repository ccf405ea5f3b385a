package cluster

import (
	"context"
	"fmt"
	"strings"
	"syscall"
	"time"

	"github.com/containerd/containerd"
	"github.com/containerd/containerd/cio"
	"github.com/containerd/containerd/namespaces"
	"github.com/containerd/containerd/oci"
	specs "github.com/opencontainers/runtime-spec/specs-go"

	"github.com/opentrade/tradefleet/pkg/health"
	"github.com/opentrade/tradefleet/pkg/log"
)

const (
	// DefaultNamespace is the containerd namespace for tradefleet workers
	DefaultNamespace = "tradefleet"

	// DefaultSocketPath is the default containerd socket
	DefaultSocketPath = "/run/containerd/containerd.sock"

	// exchangeLabel marks a container as an exchange worker and carries its id
	exchangeLabel = "tradefleet.exchange-id"

	// stopTimeout is the grace period before SIGKILL
	stopTimeout = 10 * time.Second
)

// ContainerdOps implements Ops against a containerd daemon
type ContainerdOps struct {
	client    *containerd.Client
	namespace string
	dataDir   string
}

// NewContainerdOps connects to containerd
func NewContainerdOps(socketPath, dataDir string) (*ContainerdOps, error) {
	if socketPath == "" {
		socketPath = DefaultSocketPath
	}

	client, err := containerd.New(socketPath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to containerd: %w", err)
	}

	return &ContainerdOps{
		client:    client,
		namespace: DefaultNamespace,
		dataDir:   dataDir,
	}, nil
}

// Close closes the containerd client connection
func (c *ContainerdOps) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// Start pulls the worker image, creates the container and starts its task.
// "Already exists" is success: the reconciler re-issues starts every tick.
func (c *ContainerdOps) Start(ctx context.Context, spec WorkerSpec) error {
	ctx = namespaces.WithNamespace(ctx, c.namespace)
	logger := log.WithExchangeID(spec.ExchangeID)

	image, err := c.client.Pull(ctx, spec.Image, containerd.WithPullUnpack)
	if err != nil {
		return fmt.Errorf("failed to pull image %s: %w", spec.Image, err)
	}

	opts := []oci.SpecOpts{
		oci.WithImageConfig(image),
		oci.WithEnv(spec.Env),
		oci.WithMemoryLimit(uint64(spec.MemoryLimit)),
		oci.WithCPUCFS(int64(spec.CPULimit*100000), 100000),
	}
	if c.dataDir != "" {
		opts = append(opts, oci.WithMounts([]specs.Mount{
			{
				Source:      c.dataDir,
				Destination: "/var/lib/tradefleet",
				Type:        "bind",
				Options:     []string{"rw", "bind"},
			},
		}))
	}

	container, err := c.client.NewContainer(
		ctx,
		spec.Name,
		containerd.WithImage(image),
		containerd.WithNewSnapshot(spec.Name+"-snapshot", image),
		containerd.WithNewSpec(opts...),
		containerd.WithContainerLabels(map[string]string{exchangeLabel: spec.ExchangeID}),
	)
	if err != nil {
		if isAlreadyExists(err) {
			logger.Debug().Str("worker", spec.Name).Msg("worker already exists")
			return nil
		}
		return fmt.Errorf("failed to create container: %w", err)
	}

	task, err := container.NewTask(ctx, cio.NullIO)
	if err != nil {
		if isAlreadyExists(err) {
			return nil
		}
		return fmt.Errorf("failed to create task: %w", err)
	}

	if err := task.Start(ctx); err != nil {
		return fmt.Errorf("failed to start task: %w", err)
	}

	logger.Info().Str("worker", spec.Name).Str("image", spec.Image).Msg("worker started")
	return nil
}

// Stop stops the worker gracefully (SIGTERM, bounded wait, then SIGKILL) and
// removes the container. "Not found" is success.
func (c *ContainerdOps) Stop(ctx context.Context, exchangeID string) error {
	ctx = namespaces.WithNamespace(ctx, c.namespace)
	name := WorkerName(exchangeID)

	container, err := c.client.LoadContainer(ctx, name)
	if err != nil {
		if isNotFound(err) {
			return nil
		}
		return fmt.Errorf("failed to load container %s: %w", name, err)
	}

	task, err := container.Task(ctx, nil)
	if err == nil {
		stopCtx, cancel := context.WithTimeout(ctx, stopTimeout)
		defer cancel()

		if err := task.Kill(stopCtx, syscall.SIGTERM); err != nil && !isNotFound(err) {
			return fmt.Errorf("failed to kill task: %w", err)
		}

		statusC, err := task.Wait(stopCtx)
		if err == nil {
			select {
			case <-statusC:
				// Task exited
			case <-stopCtx.Done():
				// Timeout - force kill
				if err := task.Kill(ctx, syscall.SIGKILL); err != nil && !isNotFound(err) {
					return fmt.Errorf("failed to force kill task: %w", err)
				}
			}
		}

		if _, err := task.Delete(ctx); err != nil && !isNotFound(err) {
			return fmt.Errorf("failed to delete task: %w", err)
		}
	}

	if err := container.Delete(ctx, containerd.WithSnapshotCleanup); err != nil && !isNotFound(err) {
		return fmt.Errorf("failed to delete container: %w", err)
	}

	log.WithExchangeID(exchangeID).Info().Str("worker", name).Msg("worker stopped")
	return nil
}

// List returns the exchange ids that currently have a running worker task
func (c *ContainerdOps) List(ctx context.Context) (map[string]bool, error) {
	ctx = namespaces.WithNamespace(ctx, c.namespace)

	containers, err := c.client.Containers(ctx, fmt.Sprintf("labels.%q", exchangeLabel))
	if err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}

	running := make(map[string]bool, len(containers))
	for _, container := range containers {
		labels, err := container.Labels(ctx)
		if err != nil {
			continue
		}
		exchangeID, ok := labels[exchangeLabel]
		if !ok {
			continue
		}

		task, err := container.Task(ctx, nil)
		if err != nil {
			continue // no task means not running
		}
		status, err := task.Status(ctx)
		if err != nil {
			continue
		}
		if status.Status == containerd.Running {
			running[exchangeID] = true
		}
	}

	return running, nil
}

// Healthy probes the worker's gRPC port. The task may be running while the
// process inside is still booting, so the probe is the readiness signal.
func (c *ContainerdOps) Healthy(ctx context.Context, exchangeID string) bool {
	checker := health.NewTCPChecker(fmt.Sprintf("%s:50055", WorkerName(exchangeID)))
	return checker.Check(ctx).Healthy
}

func isAlreadyExists(err error) bool {
	return err != nil && strings.Contains(err.Error(), "already exists")
}

func isNotFound(err error) bool {
	return err != nil && strings.Contains(err.Error(), "not found")
}
