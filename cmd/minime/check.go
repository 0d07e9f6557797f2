package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ayusman/minime/internal/app"
	"github.com/ayusman/minime/internal/store"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Load the avatar and its retargeting map and report the binding",
	RunE:  runCheck,
}

var checkStored bool

func init() {
	checkCmd.Flags().BoolVar(&checkStored, "stored", true, "Include rigs calibrated in the store.")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := setup()
	if err != nil {
		return err
	}

	var st *store.Store
	if checkStored {
		if st, err = openStore(cfg); err != nil {
			return err
		}
		defer st.Close()
	}

	solver, err := app.LoadSolver(cfg.Avatar, st)
	if err != nil {
		return err
	}

	skel := solver.Skeleton()
	m := solver.Map()
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "skeleton %s: %d joints\n", skel.ID(), skel.Len())
	fmt.Fprintf(out, "map: %d rules driving %d joints\n", len(m.Rules()), len(m.Joints()))
	fmt.Fprintf(out, "driven: %s\n", strings.Join(m.Joints(), ", "))
	return nil
}
