package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new room id",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := newAPIClient().CreateRoom(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), id)
		return nil
	},
}

var checkCmd = &cobra.Command{
	Use:   "check <room-id>",
	Short: "Report whether a room is live and how many participants it has",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		room, err := newAPIClient().CheckRoom(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		if !room.Exists {
			fmt.Fprintf(cmd.OutOrStdout(), "room %s does not exist\n", room.Id)
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "room %s is live with %d participant(s)\n", room.Id, room.ParticipantCount)
		return nil
	},
}
