package main

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/go-go-golems/trai/pkg/coach"
	"github.com/go-go-golems/trai/pkg/steps/ai/gemini"
)

func newToolsCommand() *cobra.Command {
	var format string
	var wire bool

	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Print the coach tool catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			descriptors := coach.Descriptors()
			var v any = descriptors
			if wire {
				v = gemini.ToolsFromDescriptors(descriptors)
			}

			switch format {
			case "json":
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(v)
			case "yaml":
				// round-trip through json so schemas keep their json field names
				b, err := json.Marshal(v)
				if err != nil {
					return err
				}
				var generic any
				if err = yaml.Unmarshal(b, &generic); err != nil {
					return err
				}
				enc := yaml.NewEncoder(os.Stdout)
				enc.SetIndent(2)
				defer enc.Close()
				return enc.Encode(generic)
			default:
				return errors.Errorf("unknown output format %q", format)
			}
		},
	}

	cmd.Flags().StringVar(&format, "output", "yaml", "Output format (json, yaml)")
	cmd.Flags().BoolVar(&wire, "wire", false, "Print the function declarations as sent to the backend")
	return cmd
}
