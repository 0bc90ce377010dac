package main

import (
	"encoding/json"
	"fmt"

	"github.com/melih/lighthouse-dockerhost/internal/adapters/docker"
	"github.com/melih/lighthouse-dockerhost/internal/core/domain"
	"github.com/spf13/cobra"
)

func newDeployCmd(opts *rootOptions) *cobra.Command {
	var req domain.DeployRequest
	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Create a container from an image",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			instance, err := opts.lifecycle.Deploy(cmd.Context(), opts.execContext(), req)
			if err != nil {
				return err
			}
			return writeCommandResult(cmd.OutOrStdout(), instance)
		},
	}
	cmd.Flags().StringVar(&req.Image, "image", "", "image to create the container from")
	cmd.Flags().StringVar(&req.Env, "env", "", "comma separated name=value list")
	cmd.Flags().StringVar(&req.Ports, "ports", "", "comma separated list of container ports to publish")
	cmd.Flags().StringVar(&req.AppName, "app", "", "app name; defaults to one derived from the image")
	_ = cmd.MarkFlagRequired("image")
	return cmd
}

func newPowerCmd(opts *rootOptions, action, short string) *cobra.Command {
	return &cobra.Command{
		Use:   action + " [container-id]",
		Short: short,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			handle, err := opts.handle(args)
			if err != nil {
				return err
			}
			var log string
			if action == "start" {
				log, err = opts.lifecycle.Start(cmd.Context(), opts.execContext(), handle)
			} else {
				log, err = opts.lifecycle.Stop(cmd.Context(), opts.execContext(), handle)
			}
			if log != "" {
				fmt.Fprintln(cmd.OutOrStdout(), log)
			}
			return err
		},
	}
}

func newDestroyCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "destroy [container-id]",
		Short: "Stop and delete a container and remove its resource",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			handle, err := opts.handle(args)
			if err != nil {
				return err
			}
			log, err := opts.lifecycle.Destroy(cmd.Context(), opts.execContext(), handle)
			if log != "" {
				fmt.Fprintln(cmd.OutOrStdout(), log)
			}
			return err
		},
	}
}

func newInspectCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect [container-id]",
		Short: "Print the engine's description of a container",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			handle, err := opts.handle(args)
			if err != nil {
				return err
			}
			state, err := opts.lifecycle.Inspect(cmd.Context(), opts.execContext(), handle)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(state.Raw))
			return err
		},
	}
}

func newLogsCmd(opts *rootOptions) *cobra.Command {
	var demux bool
	cmd := &cobra.Command{
		Use:   "logs [container-id]",
		Short: "Print a container's stdout log",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			handle, err := opts.handle(args)
			if err != nil {
				return err
			}
			logs, err := opts.lifecycle.Logs(cmd.Context(), opts.execContext(), handle)
			if err != nil {
				return err
			}
			if demux {
				if logs, err = docker.DemuxLogs(logs); err != nil {
					return err
				}
			}
			_, err = cmd.OutOrStdout().Write(logs)
			return err
		},
	}
	cmd.Flags().BoolVar(&demux, "demux", false, "strip stream headers from logs of non-TTY containers")
	return cmd
}

func newRefreshIPCmd(opts *rootOptions) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "refresh-ip [container-id]",
		Short: "Resolve a container's address and published ports and update its resource",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			handle, err := opts.handle(args)
			if err != nil {
				return err
			}
			var binding domain.NetworkBinding
			if dryRun {
				binding, err = opts.lifecycle.Resolve(cmd.Context(), opts.execContext(), handle)
			} else {
				binding, err = opts.lifecycle.RefreshIP(cmd.Context(), opts.execContext(), handle)
			}
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(binding)
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "resolve only; do not update the inventory")
	return cmd
}

func newListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the engine's active containers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			containers, err := opts.lifecycle.List(cmd.Context(), opts.execContext())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(containers))
			return err
		},
	}
}
