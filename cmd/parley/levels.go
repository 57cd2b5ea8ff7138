package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/parley-labs/parley/pkg/levels"
)

var levelsCmd = &cobra.Command{
	Use:   "levels",
	Short: "List the shipped practice levels",
	RunE: func(cmd *cobra.Command, args []string) error {
		reg := levels.Default()
		for _, name := range reg.Names() {
			lvl, err := reg.Get(name)
			if err != nil {
				return err
			}
			fmt.Printf("%-20s %-8s %s\n", lvl.Name, lvl.Agent, lvl.Description)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(levelsCmd)
}
