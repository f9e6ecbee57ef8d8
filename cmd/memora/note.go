package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"memora/internal/orchestrator"
)

var (
	noteTags    []string
	noteContent string
)

// noteCmd groups note CRUD subcommands.
var noteCmd = &cobra.Command{
	Use:   "note",
	Short: "Create, list, and delete notes",
}

var noteAddCmd = &cobra.Command{
	Use:   "add [title]",
	Short: "Add a note",
	Long: `Adds a note with the given title. Content comes from --content;
tags from repeated --tag flags (leading # is stripped).`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		title := strings.Join(args, " ")

		o, err := orchestrator.New(cfg)
		if err != nil {
			return err
		}
		defer o.Close()

		n, err := o.Notes().CreateNote(cmd.Context(), title, noteContent, noteTags)
		if err != nil {
			return err
		}
		fmt.Printf("Created note %s: %s\n", n.ID, n.Title)
		return nil
	},
}

var noteListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent notes",
	RunE: func(cmd *cobra.Command, args []string) error {
		o, err := orchestrator.New(cfg)
		if err != nil {
			return err
		}
		defer o.Close()

		recent, err := o.RecentNotes(20)
		if err != nil {
			return err
		}
		if len(recent) == 0 {
			fmt.Println("No notes yet.")
			return nil
		}
		for _, n := range recent {
			line := fmt.Sprintf("%s  %s", n.ID[:8], n.Title)
			if len(n.Tags) > 0 {
				line += "  #" + strings.Join(n.Tags, " #")
			}
			fmt.Println(line)
		}
		return nil
	},
}

var noteRemoveCmd = &cobra.Command{
	Use:   "rm [id]",
	Short: "Delete a note by id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		o, err := orchestrator.New(cfg)
		if err != nil {
			return err
		}
		defer o.Close()

		if err := o.Notes().DeleteNote(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Println("Deleted", args[0])
		return nil
	},
}

func init() {
	noteAddCmd.Flags().StringVarP(&noteContent, "content", "c", "", "note content")
	noteAddCmd.Flags().StringArrayVarP(&noteTags, "tag", "t", nil, "note tag (repeatable)")

	noteCmd.AddCommand(noteAddCmd)
	noteCmd.AddCommand(noteListCmd)
	noteCmd.AddCommand(noteRemoveCmd)
}
