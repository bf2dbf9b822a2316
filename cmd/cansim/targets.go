package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"omibyte.io/bxcan/targets"
)

var targetsCmd = &cobra.Command{
	Use:   "targets [chip|series]",
	Short: "List supported chips and their CAN controllers",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		list := targets.All()
		if len(args) == 1 {
			target, err := list.Find(args[0])
			if err != nil {
				return err
			}
			list = targets.Targets{target}
		}
		return printTargets(cmd.OutOrStdout(), list)
	},
}

func printTargets(w io.Writer, list targets.Targets) error {
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "SERIES\tCPU\tCLOCK\tCONTROLLER\tBASE\tTX\tRX0\tRX1\tSCE\tCHIPS")
	for _, t := range list {
		for _, c := range t.Controllers {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%#08x\t%d\t%d\t%d\t%d\t%s\n",
				t.Series, t.Cpu, t.ClockHz, c.Name, c.Base,
				c.IRQ.TX, c.IRQ.RX0, c.IRQ.RX1, c.IRQ.SCE,
				strings.Join(t.Chips, ","))
		}
	}
	return tw.Flush()
}
