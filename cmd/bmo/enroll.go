package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nadzzz/bmo/internal/config"
	"github.com/nadzzz/bmo/internal/vision"
	"github.com/nadzzz/bmo/internal/vision/dlib"
)

var enrollCheckCmd = &cobra.Command{
	Use:   "enroll-check",
	Short: "Load the enrolled face images and report how many are usable",
	Long: `Loads the face recognition models and every enrolled image from the config,
then prints how many signatures were enrolled. A patrol with zero enrolled faces
still runs but can only be cleared by the operator.`,
	RunE: runEnrollCheck,
}

func runEnrollCheck(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	config.SetupLogging(cfg.Logging)

	recognizer, err := dlib.New(cfg.Vision.ModelsDir, cfg.Vision.Tolerance)
	if err != nil {
		return fmt.Errorf("loading face models: %w", err)
	}
	defer recognizer.Close()

	enrolled := vision.LoadEnrolled(cmd.Context(), recognizer, cfg.Vision.Enrolled)
	fmt.Fprintf(cmd.OutOrStdout(), "enrolled %d of %d face images\n", enrolled.Len(), len(cfg.Vision.Enrolled))
	if enrolled.Len() == 0 {
		return fmt.Errorf("no usable enrolled faces in %v", cfg.Vision.Enrolled)
	}
	return nil
}
