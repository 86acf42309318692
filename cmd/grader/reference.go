package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/noah-isme/gema-grader/internal/config"
	"github.com/noah-isme/gema-grader/internal/dto"
	"github.com/noah-isme/gema-grader/internal/models"
)

func referenceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reference",
		Short: "Run an assignment's reference solution",
		RunE:  runReference,
	}
	f := cmd.Flags()
	f.Uint("assignment", 0, "Assignment whose reference archive is run (required)")
	f.String("archive", "", "Run this archive instead of the stored reference archive")
	f.Bool("accept", false, "Store a successful run's output as the expected output")
	f.StringToString("select", nil, "Pick a toolchain for an ambiguous language, e.g. --select cpp=3")
	_ = cmd.MarkFlagRequired("assignment")
	return cmd
}

func runReference(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	app, err := newApplication(cfg, os.Stderr)
	if err != nil {
		return err
	}
	defer app.Close()

	f := cmd.Flags()
	assignmentID, err := f.GetUint("assignment")
	if err != nil {
		return err
	}
	archivePath, err := f.GetString("archive")
	if err != nil {
		return err
	}
	selections, err := selectionsFromFlags(cmd)
	if err != nil {
		return err
	}

	response, err := app.references.Run(cmd.Context(), assignmentID, dto.ReferenceRunRequest{ArchivePath: archivePath, Selections: selections})
	if err != nil {
		return err
	}
	if err := printJSON(cmd, response); err != nil {
		return err
	}

	accept, _ := f.GetBool("accept")
	if !accept {
		return nil
	}
	if response.Status != string(models.EvaluationStatusSuccess) {
		return fmt.Errorf("reference run finished with status %s; expected output not stored", response.Status)
	}
	if err := app.references.Accept(cmd.Context(), assignmentID, response.Output); err != nil {
		return err
	}
	app.logger.Info().Uint("assignment_id", assignmentID).Msg("expected output stored")
	return nil
}
