// Command gripctl is an interactive console for a serial-attached gripper
// servo: it discovers the device port, connects, and drives the gripper
// through the line-oriented text protocol.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mechlab/griplink/gripper"
	"github.com/mechlab/griplink/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "gripctl:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "gripctl",
		Short:         "Interactive console for a serial-attached gripper servo",
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			return runSession(cmd.Context(), cfg)
		},
	}

	root.Flags().StringP("port", "p", "", "serial device path (default: auto-detect)")
	root.Flags().IntP("baud", "b", gripper.DefaultBaudRate, "serial baud rate")
	root.Flags().IntP("servo-id", "s", gripper.DefaultServoID, "target servo ID")
	root.PersistentFlags().Bool("debug", false, "enable debug logging")

	root.AddCommand(newPortsCmd())

	return root
}

// loadConfig resolves port/baud/servo settings from flags, GRIPCTL_* env
// vars and an optional gripctl.yaml, in that precedence order.
func loadConfig(cmd *cobra.Command) (*gripper.ConnectionConfig, error) {
	v := viper.New()
	v.SetEnvPrefix("GRIPCTL")
	v.AutomaticEnv()

	v.SetConfigName("gripctl")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(home + "/.config/gripctl")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	for _, name := range []string{"port", "baud", "servo-id"} {
		if err := v.BindPFlag(name, cmd.Flags().Lookup(name)); err != nil {
			return nil, err
		}
	}

	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		logger.SetLevel(logger.DebugLevel)
	}

	port := v.GetString("port")
	if port == "" {
		var err error
		port, err = pickPort()
		if err != nil {
			return nil, err
		}
	}

	return gripper.NewConnectionConfig(port,
		gripper.WithBaudRate(v.GetInt("baud")),
		gripper.WithServoID(v.GetInt("servo-id")),
	)
}

// pickPort auto-selects the serial device when exactly one candidate exists;
// otherwise it asks the user to choose with --port.
func pickPort() (string, error) {
	ports := gripper.ScanPorts()
	if len(ports) == 0 {
		return "", fmt.Errorf("no serial devices found (is the controller plugged in, and is your user in the dialout group?)")
	}

	usb := make([]string, 0, len(ports))
	for _, p := range ports {
		if gripper.IsLikelyUSBSerial(p) {
			usb = append(usb, p)
		}
	}
	if len(usb) == 1 {
		fmt.Println("auto-selected port:", usb[0])

		return usb[0], nil
	}

	fmt.Println("multiple serial devices found:")
	for _, p := range ports {
		fmt.Println("  ", p)
	}

	return "", fmt.Errorf("pass --port to choose one")
}
