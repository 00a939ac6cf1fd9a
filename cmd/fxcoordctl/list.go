package main

import (
	"fmt"

	"github.com/quorumix/fxcoord/pkg/types"
	"github.com/spf13/cobra"
)

var foreignXactsCmd = &cobra.Command{
	Use:   "foreign-xacts",
	Short: "Inspect prepared foreign transactions",
}

var foreignXactsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List prepared foreign transactions",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openCoordinator(cmd)
		if err != nil {
			return fmt.Errorf("failed to open coordinator: %v", err)
		}
		defer c.Shutdown()

		entries := c.ListForeignXacts()
		if len(entries) == 0 {
			fmt.Println("No prepared foreign transactions found")
			return nil
		}

		fmt.Printf("%-10s %-8s %-10s %-8s %-12s %-8s %s\n", "XID", "DBID", "SERVERID", "USERID", "STATUS", "INDOUBT", "ONDISK")
		for _, e := range entries {
			fmt.Printf("%-10d %-8d %-10d %-8d %-12s %-8t %t\n",
				e.Xid, e.DBID, e.ServerID, e.UserID, e.Status.String(), e.InDoubt, e.OnDisk)
		}
		return nil
	},
}

var resolversCmd = &cobra.Command{
	Use:   "resolvers",
	Short: "Inspect the resolver slot pool",
}

var resolversListCmd = &cobra.Command{
	Use:   "list",
	Short: "List resolver slots",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openCoordinator(cmd)
		if err != nil {
			return fmt.Errorf("failed to open coordinator: %v", err)
		}
		defer c.Shutdown()

		slots := c.ListResolverSlots()
		if len(slots) == 0 {
			fmt.Println("No resolver slots configured")
			return nil
		}

		fmt.Printf("%-8s %-8s %-10s %s\n", "PID", "DBID", "IN_USE", "LAST_RESOLVED")
		for _, s := range slots {
			dbid := "-"
			if s.InUse {
				dbid = fmt.Sprintf("%d", s.DBID)
			}
			lastResolved := "-"
			if !s.LastResolvedTime.IsZero() {
				lastResolved = s.LastResolvedTime.Format("2006-01-02T15:04:05Z07:00")
			}
			fmt.Printf("%-8d %-8s %-10t %s\n", s.PID, dbid, s.InUse, lastResolved)
		}
		return nil
	},
}

var resolversStopCmd = &cobra.Command{
	Use:   "stop DBID",
	Short: "Cancel the running resolver worker for a database",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var dbid uint32
		if _, err := fmt.Sscanf(args[0], "%d", &dbid); err != nil {
			return fmt.Errorf("invalid dbid %q: %v", args[0], err)
		}

		c, err := openCoordinator(cmd)
		if err != nil {
			return fmt.Errorf("failed to open coordinator: %v", err)
		}
		defer c.Shutdown()

		if !c.StopResolver(types.DatabaseID(dbid)) {
			fmt.Printf("No running resolver for database %d\n", dbid)
			return nil
		}
		fmt.Printf("✓ Resolver stopped for database %d\n", dbid)
		return nil
	},
}

func init() {
	foreignXactsCmd.AddCommand(foreignXactsListCmd)
	resolversCmd.AddCommand(resolversListCmd)
	resolversCmd.AddCommand(resolversStopCmd)
}
