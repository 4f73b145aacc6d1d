package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Nano112/db-clone-tool/internal/config"
)

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "Manage saved connection profiles",
}

var profilesInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a commented starter profiles file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := opts.ProfilesFile
		if path == "" {
			var err error
			if path, err = config.DefaultProfilesPath(); err != nil {
				return err
			}
		}
		if err := config.InitProfiles(path); err != nil {
			return err
		}
		fmt.Println("wrote", path)
		return nil
	},
}

func init() {
	profilesCmd.AddCommand(profilesInitCmd)
}
