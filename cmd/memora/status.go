package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"memora/internal/contexts"
	"memora/internal/messaging"
	"memora/internal/orchestrator"
)

// statusCmd reports what the assistant has to work with.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show store, model, and context status",
	RunE: func(cmd *cobra.Command, args []string) error {
		o, err := orchestrator.New(cfg)
		if err != nil {
			return err
		}
		defer o.Close()

		count, err := o.NoteCount()
		if err != nil {
			return err
		}

		fmt.Printf("%s %s\n", cfg.Name, cfg.Version)
		fmt.Printf("  notes:    %d\n", count)
		fmt.Printf("  profile:  %s\n", profileLine(o))
		fmt.Printf("  model:    %s\n", modelLine(o))
		fmt.Printf("  external: %v\n", cfg.External.Enabled)

		// The website context answers through the mediator like any
		// other context would.
		req := messaging.NewDataRequest("cli", contexts.WebsiteContextID,
			messaging.RequestWebsiteStatus, nil, 0)
		resp, err := o.Mediator().SendRequest(cmd.Context(), req)
		if err == nil && !resp.IsError() {
			fmt.Printf("  website:  %v pages (deployed: %v)\n",
				resp.Data["pageCount"], resp.Data["deployed"])
		}
		return nil
	},
}

func profileLine(o *orchestrator.Orchestrator) string {
	p := o.Profile().Get()
	if p.Name == "" {
		return "(empty)"
	}
	return p.Summary()
}

func modelLine(o *orchestrator.Orchestrator) string {
	if !o.HasModel() {
		return "not configured (set GEMINI_API_KEY)"
	}
	return cfg.LLM.Model
}
