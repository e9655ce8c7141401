package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/opencode-ai/genpipe/internal/component"
	"github.com/opencode-ai/genpipe/internal/llm/generator"
	"github.com/opencode-ai/genpipe/internal/pipeline"
	"github.com/spf13/cobra"
)

func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Export and validate generator pipelines",
	}

	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Print the configured Azure generator as a pipeline document",
		Args:  cobra.NoArgs,
		RunE:  exportConfig,
	}
	exportCmd.Flags().StringP("format", "f", string(pipeline.FormatYAML), "Output format (yaml, json)")

	validateCmd := &cobra.Command{
		Use:   "validate <file>",
		Short: "Load a pipeline document and list its components",
		Args:  cobra.ExactArgs(1),
		RunE:  validateConfig,
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List the component types and named callables a pipeline may use",
		Args:  cobra.NoArgs,
		RunE:  listRegistered,
	}

	configCmd.AddCommand(exportCmd, validateCmd, listCmd)
	return configCmd
}

func exportConfig(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	format, _ := cmd.Flags().GetString("format")
	switch pipeline.Format(format) {
	case pipeline.FormatYAML, pipeline.FormatJSON:
	default:
		return fmt.Errorf("unsupported format %q", format)
	}

	g, err := buildAzureGenerator(cfg)
	if err != nil {
		return err
	}

	p := pipeline.New()
	if err := p.Add(cfg.Component, g); err != nil {
		return err
	}
	data, err := p.Dump(pipeline.Format(format))
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}

func validateConfig(cmd *cobra.Command, args []string) error {
	if _, err := loadConfig(cmd); err != nil {
		return err
	}

	p, err := loadPipeline(args[0])
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	for _, name := range p.Names() {
		c, _ := p.Get(name)
		doc, err := c.ToDocument()
		if err != nil {
			return fmt.Errorf("component %q: %w", name, err)
		}
		fmt.Fprintf(w, "%s\t%s\n", name, doc.Type)
	}
	return w.Flush()
}

func listRegistered(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	for _, name := range component.Types() {
		fmt.Fprintf(w, "component\t%s\n", name)
	}
	for _, name := range generator.StreamingCallbacks.Names() {
		fmt.Fprintf(w, "streaming_callback\t%s\n", name)
	}
	for _, name := range generator.TokenProviders.Names() {
		fmt.Fprintf(w, "azure_ad_token_provider\t%s\n", name)
	}
	return w.Flush()
}
