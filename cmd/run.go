package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/opencode-ai/genpipe/internal/llm/generator"
	"github.com/opencode-ai/genpipe/internal/logging"
	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run [prompt]",
		Short: "Send a prompt to the generator and print the replies",
		Long:  `Send a prompt to the generator and print the replies. Without arguments the prompt is read from standard input.`,
		RunE:  runPrompt,
	}
	runCmd.Flags().Bool("stream", false, "Print the reply as it is generated")
	runCmd.Flags().Bool("meta", false, "Print reply metadata as JSON")
	runCmd.Flags().StringToString("kwarg", nil, "Generation parameter for this call, e.g. --kwarg temperature=0.2")
	return runCmd
}

func runPrompt(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	prompt, err := readPrompt(cmd, args)
	if err != nil {
		return err
	}

	g, err := buildGenerator(cfg)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	stream, _ := cmd.Flags().GetBool("stream")
	withMeta, _ := cmd.Flags().GetBool("meta")
	kwargs, _ := cmd.Flags().GetStringToString("kwarg")

	var opts []generator.RunOption
	if len(kwargs) > 0 {
		opts = append(opts, generator.WithRunGenerationKwargs(parseKwargs(kwargs)))
	}
	if stream {
		opts = append(opts, generator.WithRunStreamingCallback(func(chunk generator.StreamingChunk) {
			fmt.Fprint(out, chunk.Content)
		}))
	}

	logging.Debug("Running prompt", "stream", stream, "length", len(prompt))
	result, err := g.Run(cmd.Context(), prompt, opts...)
	if err != nil {
		return err
	}

	if stream {
		fmt.Fprintln(out)
	} else {
		for _, reply := range result.Replies {
			fmt.Fprintln(out, reply)
		}
	}

	if withMeta {
		data, err := json.MarshalIndent(result.Meta, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding meta: %w", err)
		}
		fmt.Fprintln(out, string(data))
	}
	return nil
}

func readPrompt(cmd *cobra.Command, args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("reading prompt: %w", err)
	}
	prompt := strings.TrimSpace(string(data))
	if prompt == "" {
		return "", fmt.Errorf("a prompt is required")
	}
	return prompt, nil
}

// parseKwargs decodes flag values as JSON where possible so numbers and
// booleans reach the API with their proper types.
func parseKwargs(raw map[string]string) map[string]any {
	kwargs := make(map[string]any, len(raw))
	for k, v := range raw {
		var decoded any
		if err := json.Unmarshal([]byte(v), &decoded); err != nil {
			decoded = v
		}
		kwargs[k] = decoded
	}
	return kwargs
}
