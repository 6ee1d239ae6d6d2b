package commands

import (
	"fmt"
	"strings"

	"github.com/form3tech-oss/pact-engine/internal/app/engine"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var (
	generatePactFile    string
	generateInteraction string
	generatePart        string
	generateTarget      string
	generateSeed        int64
	generateStates      []string
	generateMockURL     string
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Resolve an interaction's generators and print the concrete value",
	RunE: func(cmd *cobra.Command, args []string) error {
		pact, err := loadPact(generatePactFile)
		if err != nil {
			return err
		}
		record, err := findInteraction(pact, generateInteraction)
		if err != nil {
			return err
		}

		ctx := &engine.GenerationContext{MockServerURL: generateMockURL}
		if generateSeed != 0 {
			ctx = engine.NewGenerationContext(generateSeed)
			ctx.MockServerURL = generateMockURL
		}
		if len(generateStates) > 0 {
			ctx.ProviderState = map[string]interface{}{}
			for _, pair := range generateStates {
				key, value, found := strings.Cut(pair, "=")
				if !found {
					return errors.Errorf("provider state value %q is not key=value", pair)
				}
				ctx.ProviderState[key] = value
			}
		}

		value, err := record.Generate(engine.Part(generatePart), engine.Target(generateTarget), ctx)
		if err != nil {
			return err
		}
		raw, err := engine.MarshalValue(value)
		if err != nil {
			return err
		}
		fmt.Println(string(raw))
		return nil
	},
}

func init() {
	generateCmd.Flags().StringVar(&generatePactFile, "pact", "", "pact file to load")
	generateCmd.Flags().StringVar(&generateInteraction, "interaction", "", "interaction description")
	generateCmd.Flags().StringVar(&generatePart, "part", string(engine.PartResponse), "interaction part, request or response")
	generateCmd.Flags().StringVar(&generateTarget, "target", string(engine.TargetBody), "interaction target, e.g. body or header")
	generateCmd.Flags().Int64Var(&generateSeed, "seed", 0, "seed for deterministic generation, 0 means time-based")
	generateCmd.Flags().StringArrayVar(&generateStates, "state", nil, "provider state value as key=value, repeatable")
	generateCmd.Flags().StringVar(&generateMockURL, "mock-server-url", "", "base URL for MockServerURL generators")
	_ = generateCmd.MarkFlagRequired("pact")
	rootCmd.AddCommand(generateCmd)
}
