package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/melih/lighthouse-dockerhost/internal/adapters/docker"
	"github.com/melih/lighthouse-dockerhost/internal/adapters/inventory"
	"github.com/melih/lighthouse-dockerhost/internal/config"
	"github.com/melih/lighthouse-dockerhost/internal/core/domain"
	"github.com/melih/lighthouse-dockerhost/internal/core/ports"
	"github.com/melih/lighthouse-dockerhost/internal/core/services"
	"github.com/spf13/cobra"
)

// Markers the platform scans command output for.
const (
	resultPrefix = "command_json_result="
	resultSuffix = "=command_json_result_end"
)

type rootOptions struct {
	configPath    string
	engine        string
	hostName      string
	reservationID string
	resource      string
	appJSON       string

	// set by the persistent pre-run
	cfg       config.Config
	logger    *slog.Logger
	lifecycle *services.Lifecycle
	release   func()

	// newSessions overrides the configured inventory in tests
	newSessions func() (ports.SessionProvider, func())
}

func newRootCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "dockerhost",
		Short:         "Deploy and manage containers on a remote engine host",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.setup(cmd)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "path to a config file")
	flags.StringVar(&opts.engine, "engine", "", "engine address (overrides engine.address)")
	flags.StringVar(&opts.hostName, "host-name", "", "inventory name of the engine host (overrides host.name)")
	flags.StringVar(&opts.reservationID, "reservation", "", "reservation id progress messages are written to")
	flags.StringVar(&opts.resource, "resource", "", "inventory name of the deployed app resource")
	flags.StringVar(&opts.appJSON, "app-json", "", "deployed app json; its vmdetails.uid is used as the container id")

	cmd.AddCommand(
		newDeployCmd(opts),
		newPowerCmd(opts, "start", "Power on a container"),
		newPowerCmd(opts, "stop", "Power off a container"),
		newDestroyCmd(opts),
		newInspectCmd(opts),
		newLogsCmd(opts),
		newRefreshIPCmd(opts),
		newListCmd(opts),
	)
	return cmd
}

// run executes cmd and releases the inventory on every path, failed
// commands included.
func run(ctx context.Context, cmd *cobra.Command, opts *rootOptions) error {
	defer func() {
		if opts.release != nil {
			opts.release()
			opts.release = nil
		}
	}()
	return cmd.ExecuteContext(ctx)
}

func (o *rootOptions) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}
	if o.engine != "" {
		cfg.Engine.Address = o.engine
	}
	if o.hostName != "" {
		cfg.Host.Name = o.hostName
	}
	o.cfg = cfg
	o.logger = cfg.Log.NewLogger()

	var sessions ports.SessionProvider
	if o.newSessions != nil {
		sessions, o.release = o.newSessions()
	} else {
		sessions, o.release, err = inventory.FromConfig(cmd.Context(), cfg.Inventory)
		if err != nil {
			return err
		}
	}

	engine := docker.NewAdapter(docker.WithTimeout(cfg.Engine.Timeout), docker.WithLogger(o.logger))
	o.lifecycle = services.NewLifecycle(engine, sessions, o.logger)
	return nil
}

func (o *rootOptions) execContext() domain.ExecContext {
	return domain.ExecContext{
		ReservationID: o.reservationID,
		Host:          domain.HostResource{Name: o.cfg.Host.Name, Address: o.cfg.Engine.Address},
		Target:        domain.Target{Name: o.resource},
	}
}

// handle picks the container id from the positional argument or --app-json.
func (o *rootOptions) handle(args []string) (string, error) {
	if len(args) > 0 && args[0] != "" {
		return args[0], nil
	}
	if o.appJSON != "" {
		return domain.ParseDeployedAppJSON(o.appJSON)
	}
	return "", fmt.Errorf("container id is required (argument or --app-json)")
}

// writeCommandResult prints v as JSON between the platform's result markers.
func writeCommandResult(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	_, err = fmt.Fprintf(w, "%s%s%s\n", resultPrefix, data, resultSuffix)
	return err
}
