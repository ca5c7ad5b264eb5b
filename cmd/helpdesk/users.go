package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/spec-kit/helpdesk/internal/domain"
)

func (a *app) usersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage users and roles",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List users",
			Args:  cobra.NoArgs,
			RunE: a.track("users.list", func(cmd *cobra.Command, _ []string) error {
				users, err := a.users.ListUsers(cmd.Context())
				if err != nil {
					return err
				}
				writeUsers(cmd.OutOrStdout(), users)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "create <id> <name> <USER|AGENT|ADMIN>",
			Short: "Register a new user (admin)",
			Args:  cobra.ExactArgs(3),
			RunE: a.track("users.create", func(cmd *cobra.Command, args []string) error {
				actor, err := a.actor(cmd.Context())
				if err != nil {
					return err
				}
				id, err := parseID("user id", args[0])
				if err != nil {
					return err
				}
				user, err := a.users.CreateUser(cmd.Context(), actor, domain.User{
					ID:   id,
					Name: args[1],
					Role: domain.Role(strings.ToUpper(args[2])),
				})
				if err != nil {
					return err
				}
				writeUsers(cmd.OutOrStdout(), []domain.User{*user})
				return nil
			}),
		},
		&cobra.Command{
			Use:   "role <id> <USER|AGENT|ADMIN>",
			Short: "Change the role of a user (admin)",
			Args:  cobra.ExactArgs(2),
			RunE: a.track("users.role", func(cmd *cobra.Command, args []string) error {
				actor, err := a.actor(cmd.Context())
				if err != nil {
					return err
				}
				id, err := parseID("user id", args[0])
				if err != nil {
					return err
				}
				user, err := a.users.ChangeRole(cmd.Context(), actor, id, domain.Role(strings.ToUpper(args[1])))
				if err != nil {
					return err
				}
				writeUsers(cmd.OutOrStdout(), []domain.User{*user})
				return nil
			}),
		},
	)
	return cmd
}
