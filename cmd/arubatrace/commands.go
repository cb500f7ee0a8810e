package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sshcollectorpro/arubatrace/internal/aruba"
	"github.com/sshcollectorpro/arubatrace/pkg/ssh"
	"github.com/sshcollectorpro/arubatrace/simulate"
)

func newTraceCmd(flags *rootFlags) *cobra.Command {
	var devices []string
	cmd := &cobra.Command{
		Use:   "trace <mac>",
		Short: "Find the port a MAC address is learned on and its LLDP neighbour",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := flags.newService()
			if err != nil {
				return err
			}
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			if len(devices) > 1 {
				res, err := svc.TraceMany(ctx, devices, args[0])
				if err != nil {
					return err
				}
				return flags.print(cmd.OutOrStdout(), res)
			}
			device := ""
			if len(devices) == 1 {
				device = devices[0]
			}
			res, err := svc.Trace(ctx, device, args[0])
			if err != nil {
				return err
			}
			return flags.print(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().StringSliceVarP(&devices, "device", "d", nil, "switch host[:port], repeatable (default device.host)")
	return cmd
}

func newPrivilegeCmd(flags *rootFlags) *cobra.Command {
	var device string
	cmd := &cobra.Command{
		Use:   "privilege",
		Short: "Show the privilege level of a fresh session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := flags.newService()
			if err != nil {
				return err
			}
			res, err := svc.Privilege(cmd.Context(), device)
			if err != nil {
				return err
			}
			return flags.print(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().StringVarP(&device, "device", "d", "", "switch host[:port] (default device.host)")
	return cmd
}

func newNeighborsCmd(flags *rootFlags) *cobra.Command {
	var device string
	cmd := &cobra.Command{
		Use:   "neighbors [interface]",
		Short: "Show LLDP neighbour detail, for one interface or all",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := flags.newService()
			if err != nil {
				return err
			}
			iface := ""
			if len(args) == 1 {
				iface = args[0]
			}
			res, err := svc.Neighbors(cmd.Context(), device, iface)
			if err != nil {
				return err
			}
			return flags.print(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().StringVarP(&device, "device", "d", "", "switch host[:port] (default device.host)")
	return cmd
}

func newNormalizeCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "normalize <mac>",
		Short: "Print a MAC address in xxxx-xxxx-xxxx form",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mac, err := aruba.NormalizeMAC(args[0])
			if err != nil {
				return err
			}
			return flags.print(cmd.OutOrStdout(), map[string]string{"input": args[0], "mac": mac.String()})
		},
	}
}

func newProxyConfigCmd(flags *rootFlags) *cobra.Command {
	var device, dir string
	cmd := &cobra.Command{
		Use:   "proxy-config",
		Short: "Write an OpenSSH config file that reaches the switch through the jump host",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := flags.loadConfig()
			if err != nil {
				return err
			}
			opts := cfg.DriverOptions(device)
			if !opts.Connection.Proxy.Enabled() {
				return fmt.Errorf("proxy is not configured")
			}
			if dir == "" {
				dir = cfg.Proxy.ConfigDir
			}
			path, err := ssh.WriteProxyConfigFile(dir, &opts.Connection)
			if err != nil {
				return err
			}
			return flags.print(cmd.OutOrStdout(), map[string]string{"host": opts.Connection.Host, "path": path})
		},
	}
	cmd.Flags().StringVarP(&device, "device", "d", "", "switch host (default device.host)")
	cmd.Flags().StringVar(&dir, "dir", "", "output directory (default proxy.config_dir)")
	return cmd
}

func newSimulateCmd(flags *rootFlags) *cobra.Command {
	var simConfig string
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a simulated Aruba switch over SSH until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := flags.loadConfig(); err != nil {
				return err
			}
			sc := simulate.DefaultConfig()
			if simConfig != "" {
				var err error
				if sc, err = simulate.LoadConfig(simConfig); err != nil {
					return err
				}
			}
			srv, err := simulate.Start(sc)
			if err != nil {
				return err
			}
			defer srv.Stop()

			if err := flags.print(cmd.OutOrStdout(), map[string]string{"hostname": sc.Hostname, "listen": srv.Addr()}); err != nil {
				return err
			}
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			<-ctx.Done()
			return nil
		},
	}
	cmd.Flags().StringVar(&simConfig, "sim-config", "", "simulator YAML file (default built-in switch)")
	return cmd
}
