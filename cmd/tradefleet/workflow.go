package main

import (
	"context"
	"fmt"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/opentrade/tradefleet/pkg/cluster"
	"github.com/opentrade/tradefleet/pkg/types"
	"github.com/opentrade/tradefleet/pkg/workflow"
)

var workflowCmd = &cobra.Command{
	Use:   "workflow",
	Short: "Manage SOD/EOD workflows",
}

var workflowRunCmd = &cobra.Command{
	Use:   "run NAME",
	Short: "Execute a workflow by name and wait for it to finish",
	Args:  cobra.ExactArgs(1),
	RunE:  runWorkflow,
}

func init() {
	workflowRunCmd.Flags().String("cluster", "fake", "Cluster backend: containerd or fake")
	workflowCmd.AddCommand(workflowRunCmd)
}

func runWorkflow(cmd *cobra.Command, args []string) error {
	cfg, store, err := setup()
	if err != nil {
		return err
	}
	defer store.Close()

	clusterBackend, _ := cmd.Flags().GetString("cluster")
	var ops cluster.Ops
	switch clusterBackend {
	case "containerd":
		cops, err := cluster.NewContainerdOps(cfg.ContainerdSocket, cfg.DataDir)
		if err != nil {
			return fmt.Errorf("failed to connect to containerd: %w", err)
		}
		defer cops.Close()
		ops = cops
	case "fake":
		ops = cluster.NewFakeOps()
	default:
		return fmt.Errorf("unknown cluster backend %q", clusterBackend)
	}

	startGate := &atomic.Bool{}
	engine := workflow.NewEngine(store, nil, workflow.DefaultConcurrency)
	if err := workflow.LoadDefinitions(engine, cfg.WorkflowFile, makeActions(store, ops, startGate)); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	exec, err := engine.Execute(ctx, args[0])
	if err != nil {
		return err
	}

	fmt.Printf("Execution %s finished: %s (%d/%d tasks completed, %d failed)\n",
		exec.ID, exec.Status, exec.CompletedTasks, exec.TotalTasks, exec.FailedTasks)
	if exec.Status != types.ExecutionSuccess {
		return fmt.Errorf("workflow %s failed", args[0])
	}
	return nil
}
