// listing-agent runs the product photo to listing pipeline from the command
// line: load the config directory, wire the providers, submit one product,
// and print the terminal run state as JSON.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/Brucegx/etsy-listing-agent/core/config"
	"github.com/Brucegx/etsy-listing-agent/core/run"
	"github.com/Brucegx/etsy-listing-agent/providers/observability/slogobs"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "listing-agent",
		Short:         "Turn raw product photos into marketing imagery prompts and listing copy",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCmd())
	return root
}

func newRunCmd() *cobra.Command {
	var (
		configDir    string
		productID    string
		category     string
		material     string
		size         string
		imagePaths   []string
		rowEntries   []string
		renderImages bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the pipeline for one product",
		RunE: func(cmd *cobra.Command, args []string) error {
			observer := slogobs.New()
			fs := afero.NewOsFs()

			cfg, err := config.Load(fs, configDir)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("render-images") {
				cfg.Fanout.RenderImages = renderImages
			}

			pipeline, err := buildPipeline(cfg, fs, observer)
			if err != nil {
				return err
			}

			inputs, err := loadInputs(fs, productID, category, material, size, imagePaths, rowEntries)
			if err != nil {
				return err
			}

			state, runErr := pipeline.Run(cmd.Context(), inputs)
			if state != nil {
				if printErr := printState(cmd, state); printErr != nil {
					return printErr
				}
			}
			return runErr
		},
	}

	cmd.Flags().StringVar(&configDir, "config", "config", "directory holding pipeline.yaml, rules.yaml and templates.yaml")
	cmd.Flags().StringVar(&productID, "product", "", "product identifier (required)")
	cmd.Flags().StringVar(&category, "category", "", "product category (required)")
	cmd.Flags().StringVar(&material, "material", "", "primary material from the spreadsheet")
	cmd.Flags().StringVar(&size, "size", "", "product size from the spreadsheet")
	cmd.Flags().StringSliceVar(&imagePaths, "image", nil, "product photo path, repeatable (at least one required)")
	cmd.Flags().StringSliceVar(&rowEntries, "row", nil, "extra spreadsheet column as key=value, repeatable")
	cmd.Flags().BoolVar(&renderImages, "render-images", false, "render the generated prompts through the image provider")
	_ = cmd.MarkFlagRequired("product")
	_ = cmd.MarkFlagRequired("category")
	_ = cmd.MarkFlagRequired("image")

	return cmd
}

func loadInputs(fs afero.Fs, productID, category, material, size string, imagePaths, rowEntries []string) (run.Inputs, error) {
	images := make([]run.InputImage, 0, len(imagePaths))
	for _, path := range imagePaths {
		data, err := afero.ReadFile(fs, path)
		if err != nil {
			return run.Inputs{}, fmt.Errorf("reading image %s: %w", path, err)
		}
		images = append(images, run.InputImage{
			Filename:  filepath.Base(path),
			MediaType: mediaTypeFor(path),
			Data:      data,
		})
	}

	row := make(map[string]string, len(rowEntries))
	for _, entry := range rowEntries {
		key, value, found := strings.Cut(entry, "=")
		if !found {
			return run.Inputs{}, fmt.Errorf("row entry %q is not key=value", entry)
		}
		row[key] = value
	}

	return run.Inputs{
		ProductID: productID,
		Category:  category,
		Material:  material,
		Size:      size,
		Images:    images,
		Row:       row,
	}, nil
}

func mediaTypeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	default:
		return "image/jpeg"
	}
}

func printState(cmd *cobra.Command, state *run.State) error {
	encoded, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding run state: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(encoded))
	return nil
}
