package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/grant-ranker/internal/logger"
	"github.com/spigell/grant-ranker/internal/matching"
)

var explainCmd = &cobra.Command{
	Use:   "explain [result.json]",
	Short: "Explain a match result produced by rank --output json",
	Long: "Reads one match result, or a whole batch, as JSON from the given file or stdin " +
		"and prints a human readable explanation for every result.",
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		explain(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(explainCmd)

	explainCmd.Flags().String("id", "", "explain only the result with this opportunity id")
	explainCmd.Flags().String("output", outputTable, "output format: table or json")
}

func explain(cmd *cobra.Command, args []string) {
	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	var data []byte
	if len(args) == 0 || args[0] == "-" {
		data, err = readStdin()
	} else {
		data, err = os.ReadFile(args[0])
	}
	if err != nil {
		logger.Fatal("reading match results", zap.Error(err))
	}

	results, err := decodeResults(data)
	if err != nil {
		logger.Fatal("decoding match results", zap.Error(err))
	}

	id, _ := cmd.Flags().GetString("id")
	output, _ := cmd.Flags().GetString("output")

	var explanations []matching.Explanation
	for _, res := range results {
		if id != "" && res.OpportunityID != id {
			continue
		}
		explanations = append(explanations, matching.Explain(res))
	}

	if len(explanations) == 0 {
		logger.Fatal("no match results to explain", zap.String("id", id))
	}

	if output == outputJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(explanations); err != nil {
			logger.Fatal("writing explanations", zap.Error(err))
		}
		return
	}

	for _, e := range explanations {
		fmt.Println(e.String())
	}
}

// decodeResults accepts a single match result, an array of them, or a ranking batch.
func decodeResults(data []byte) ([]matching.MatchResult, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err == nil {
		if _, ok := probe["results"]; ok {
			var batch matching.Batch
			if err := json.Unmarshal(data, &batch); err != nil {
				return nil, err
			}
			return batch.Results, nil
		}

		var res matching.MatchResult
		if err := json.Unmarshal(data, &res); err != nil {
			return nil, err
		}
		if res.OpportunityID == "" {
			return nil, fmt.Errorf("match result has no opportunity_id")
		}
		return []matching.MatchResult{res}, nil
	}

	var results []matching.MatchResult
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, fmt.Errorf("expected a match result, a list of them or a ranking batch: %w", err)
	}
	return results, nil
}

func readStdin() ([]byte, error) {
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return nil, fmt.Errorf("reading stdin: %w", err)
	}
	return data, nil
}
