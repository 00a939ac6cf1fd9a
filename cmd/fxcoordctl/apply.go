package main

import (
	"fmt"

	"github.com/quorumix/fxcoord/pkg/config"
	"github.com/quorumix/fxcoord/pkg/fxcoord"
	"github.com/quorumix/fxcoord/pkg/syncrep"
	"github.com/quorumix/fxcoord/pkg/types"
	"github.com/spf13/cobra"
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply a configuration file",
	Long: `Apply a fxcoord configuration resource from a YAML file.

Examples:
  # Apply a standby group definition
  fxcoordctl apply -f standby-group.yaml

  # Bind a participant foreign server to a registered driver
  fxcoordctl apply -f foreign-server.yaml`,
	RunE: runApply,
}

func init() {
	applyCmd.Flags().StringP("file", "f", "", "YAML resource file to apply (required)")
	_ = applyCmd.MarkFlagRequired("file")

	rootCmd.AddCommand(applyCmd)
}

func runApply(cmd *cobra.Command, args []string) error {
	filename, _ := cmd.Flags().GetString("file")

	resource, err := config.LoadResource(filename)
	if err != nil {
		return err
	}

	c, err := openCoordinator(cmd)
	if err != nil {
		return fmt.Errorf("failed to open coordinator: %v", err)
	}
	defer c.Shutdown()

	switch resource.Kind {
	case "StandbyGroup":
		return applyStandbyGroup(c, dataDirFlag(cmd), resource)
	case "ForeignServer":
		return applyForeignServer(c, resource)
	default:
		return fmt.Errorf("unsupported resource kind: %s", resource.Kind)
	}
}

// applyStandbyGroup validates spec against a throwaway Coordinator (opened
// and shut down by runApply around this call) and then writes it to the
// data directory's standby-group file. The throwaway Coordinator's
// UpdateSyncStandbysDefined call only proves the group parses and applies
// cleanly in isolation — it does not reach any separately running `serve`
// process, since that Coordinator and its in-memory SyncRep.Engine are
// discarded the moment this command returns. The standby-group file is
// what actually carries the applied value forward: `serve` reads it on
// startup (see main.go) if it wasn't given --synchronous-standby-names
// directly.
func applyStandbyGroup(c *fxcoord.Coordinator, dataDir string, resource *config.Resource) error {
	spec, err := resource.DecodeStandbyGroup()
	if err != nil {
		return fmt.Errorf("failed to decode StandbyGroup spec: %v", err)
	}

	group, err := syncrep.ParseStandbyGroup(spec.SynchronousStandbyNames)
	if err != nil {
		return fmt.Errorf("failed to parse synchronous_standby_names: %v", err)
	}
	c.SyncRep.UpdateSyncStandbysDefined(group)

	if err := config.SaveStandbyGroupFile(dataDir, spec.SynchronousStandbyNames); err != nil {
		return fmt.Errorf("failed to persist StandbyGroup: %v", err)
	}

	fmt.Printf("✓ Standby group applied: %s (%q)\n", resource.Metadata.Name, spec.SynchronousStandbyNames)
	return nil
}

func applyForeignServer(c *fxcoord.Coordinator, resource *config.Resource) error {
	spec, err := resource.DecodeForeignServer()
	if err != nil {
		return fmt.Errorf("failed to decode ForeignServer spec: %v", err)
	}

	bound := c.BindForeignServer(types.ServerID(spec.ServerID), types.UserID(spec.UserID), spec.Driver)
	fmt.Printf("✓ Foreign server bound: %s (serverid=%d userid=%d driver=%s, %d recovered entries updated)\n",
		resource.Metadata.Name, spec.ServerID, spec.UserID, spec.Driver, bound)
	return nil
}
