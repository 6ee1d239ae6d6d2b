package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/PaesslerAG/jsonpath"
	"github.com/form3tech-oss/pact-engine/internal/app/engine"
	"github.com/pkg/errors"
	"github.com/pmezard/go-difflib/difflib"
	"github.com/spf13/cobra"

	log "github.com/sirupsen/logrus"
)

var (
	verifyPactFile    string
	verifyActualFile  string
	verifyInteraction string
	verifyPart        string
	verifyTarget      string
	verifySelect      string
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Match an actual value against a pact interaction",
	RunE: func(cmd *cobra.Command, args []string) error {
		pact, err := loadPact(verifyPactFile)
		if err != nil {
			return err
		}
		record, err := findInteraction(pact, verifyInteraction)
		if err != nil {
			return err
		}

		actualBytes, err := os.ReadFile(verifyActualFile)
		if err != nil {
			return errors.Wrap(err, "read actual value")
		}

		var actualHost interface{}
		if err := json.Unmarshal(actualBytes, &actualHost); err != nil {
			return errors.Wrap(err, "parse actual value")
		}
		if verifySelect != "" {
			actualHost, err = jsonpath.Get(verifySelect, actualHost)
			if err != nil {
				return errors.Wrapf(err, "select %s from actual value", verifySelect)
			}
		}

		result, err := record.Match(engine.Part(verifyPart), engine.Target(verifyTarget), actualHost)
		if err != nil {
			return err
		}
		if result.Matched {
			log.Infof("interaction '%s' matched", record.Description)
			return nil
		}

		for _, mismatch := range result.Mismatches {
			fmt.Printf("%s: %s\n", mismatch.Path, mismatch.Reason)
		}
		if diff, err := templateDiff(record, actualHost); err == nil && diff != "" {
			fmt.Println(diff)
		}
		return errors.Errorf("interaction '%s' did not match, %d mismatch(es)", record.Description, len(result.Mismatches))
	},
}

func loadPact(path string) (*engine.Pact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read pact file")
	}
	return engine.LoadPactFile(data)
}

func findInteraction(pact *engine.Pact, description string) (*engine.InteractionRecord, error) {
	interactions := pact.Interactions()
	if description == "" {
		if len(interactions) == 1 {
			return interactions[0], nil
		}
		return nil, errors.Errorf("pact file has %d interactions, use --interaction to pick one", len(interactions))
	}
	for _, record := range interactions {
		if record.Description == description {
			return record, nil
		}
	}
	return nil, errors.Errorf("no interaction '%s' in pact file", description)
}

func templateDiff(record *engine.InteractionRecord, actualHost interface{}) (string, error) {
	template, ok := record.Template(engine.Part(verifyPart), engine.Target(verifyTarget))
	if !ok {
		return "", nil
	}
	expectedJSON, err := json.MarshalIndent(engine.ToInterface(template), "", "  ")
	if err != nil {
		return "", err
	}
	actualJSON, err := json.MarshalIndent(actualHost, "", "  ")
	if err != nil {
		return "", err
	}
	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(expectedJSON)),
		B:        difflib.SplitLines(string(actualJSON)),
		FromFile: "expected",
		ToFile:   "actual",
		Context:  3,
	})
}

func init() {
	verifyCmd.Flags().StringVar(&verifyPactFile, "pact", "", "pact file to load")
	verifyCmd.Flags().StringVar(&verifyActualFile, "actual", "", "file holding the actual JSON value")
	verifyCmd.Flags().StringVar(&verifyInteraction, "interaction", "", "interaction description")
	verifyCmd.Flags().StringVar(&verifyPart, "part", string(engine.PartResponse), "interaction part, request or response")
	verifyCmd.Flags().StringVar(&verifyTarget, "target", string(engine.TargetBody), "interaction target, e.g. body or header")
	verifyCmd.Flags().StringVar(&verifySelect, "select", "", "JSON path selecting the value to match inside the actual document")
	_ = verifyCmd.MarkFlagRequired("pact")
	_ = verifyCmd.MarkFlagRequired("actual")
	rootCmd.AddCommand(verifyCmd)
}
