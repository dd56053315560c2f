package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mechlab/griplink/gripper"
)

func newPortsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ports",
		Short: "List candidate serial devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			ports := gripper.ScanPorts()
			if len(ports) == 0 {
				return fmt.Errorf("no serial devices found")
			}

			for _, p := range ports {
				marker := ""
				if gripper.IsLikelyUSBSerial(p) {
					marker = " (usb)"
				}
				fmt.Printf("%s%s\n", p, marker)
			}

			return nil
		},
	}
}
