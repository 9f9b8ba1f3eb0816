package cmd

import (
	"fmt"
	"strings"

	"fc-troll-detector/internal/config"

	"github.com/spf13/cobra"
)

// userList describes one of the username lists kept in settings.
type userList struct {
	name   string
	get    func(s config.Settings) []string
	add    func(s *config.Settings, name string) error
	remove func(s *config.Settings, name string) error
}

var trustedList = userList{
	name:   "trusted",
	get:    func(s config.Settings) []string { return s.TrustedUsers },
	add:    (*config.Settings).AddTrusted,
	remove: (*config.Settings).RemoveTrusted,
}

var blacklist = userList{
	name:   "blacklist",
	get:    func(s config.Settings) []string { return s.BlacklistUsers },
	add:    (*config.Settings).AddBlacklisted,
	remove: (*config.Settings).RemoveBlacklisted,
}

// commands builds the add, remove and list subcommands for l.
func (l userList) commands() []*cobra.Command {
	add := &cobra.Command{
		Use:   "add <username>...",
		Short: fmt.Sprintf("Add users to the %s list", l.name),
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return l.edit(cmd, args, l.add, "added")
		},
	}
	remove := &cobra.Command{
		Use:   "remove <username>...",
		Short: fmt.Sprintf("Remove users from the %s list", l.name),
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return l.edit(cmd, args, l.remove, "removed")
		},
	}
	list := &cobra.Command{
		Use:   "list",
		Short: fmt.Sprintf("Print the %s list", l.name),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, n := range l.get(GetConfig().Settings) {
				fmt.Fprintln(cmd.OutOrStdout(), n)
			}
			return nil
		},
	}
	return []*cobra.Command{add, remove, list}
}

// edit applies op to every name and saves once. A rejected name aborts
// without writing anything.
func (l userList) edit(cmd *cobra.Command, names []string, op func(*config.Settings, string) error, verb string) error {
	s := GetConfig().Settings
	s.TrustedUsers = append([]string(nil), s.TrustedUsers...)
	s.BlacklistUsers = append([]string(nil), s.BlacklistUsers...)
	for _, n := range names {
		if err := op(&s, n); err != nil {
			return err
		}
	}
	if err := persister().SaveSettings(s); err != nil {
		return err
	}
	appCfg.Settings = s
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %s\n", l.name, verb, strings.Join(names, ", "))
	return nil
}

var trustCmd = &cobra.Command{
	Use:   "trust",
	Short: "Manage trusted users (their badges always show as reliable)",
}

var blacklistCmd = &cobra.Command{
	Use:   "blacklist",
	Short: "Manage blacklisted users",
}

func init() {
	trustCmd.AddCommand(trustedList.commands()...)
	blacklistCmd.AddCommand(blacklist.commands()...)
	rootCmd.AddCommand(trustCmd, blacklistCmd)
}
