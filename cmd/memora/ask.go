package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"memora/internal/orchestrator"
	"memora/internal/pipeline"
)

// askCmd runs one query and prints the answer.
var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a single question and print the answer",
	Long: `Runs one question through the full query pipeline: note
retrieval with fallback, profile and history context, optional external
sources, then the model call. Citations and related notes are printed
after the answer.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func runAsk(cmd *cobra.Command, args []string) error {
	question := strings.Join(args, " ")

	o, err := orchestrator.New(cfg)
	if err != nil {
		return err
	}
	defer o.Close()

	ctx := cmd.Context()
	if err := o.Start(ctx); err != nil {
		return err
	}

	result, err := o.Pipeline().ProcessQuery(ctx, question, pipeline.Options{RoomID: roomID})
	if err != nil {
		return err
	}

	printResult(result, o.HasModel())
	return nil
}

func printResult(result *pipeline.QueryResult, hasModel bool) {
	if result.Answer != "" {
		fmt.Println(result.Answer)
	} else if !hasModel {
		fmt.Println("(no model configured: set GEMINI_API_KEY; showing retrieved context only)")
	} else {
		fmt.Println("(the model returned no answer)")
	}

	if len(result.Citations) > 0 {
		fmt.Printf("\nSources (%s):\n", result.RetrievalMethod)
		for _, c := range result.Citations {
			fmt.Printf("  [%d] %s\n", c.Index, c.Note.Title)
		}
	}

	if len(result.ExternalSources) > 0 {
		fmt.Println("\nExternal sources:")
		for _, r := range result.ExternalSources {
			fmt.Printf("  - %s (%s)\n", r.Title, r.Source)
		}
	}

	if len(result.RelatedNotes) > 0 {
		fmt.Println("\nSee also:")
		for _, n := range result.RelatedNotes {
			fmt.Printf("  - %s\n", n.Title)
		}
	}

	if result.Usage.TotalTokens > 0 {
		fmt.Printf("\n(%d tokens)\n", result.Usage.TotalTokens)
	}
}
