package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/manifoldco/promptui"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/grant-ranker/internal/logger"
	"github.com/spigell/grant-ranker/internal/matching"
)

const (
	outputTable = "table"
	outputJSON  = "json"
	promptDone  = "Done"
)

var rankCmd = &cobra.Command{
	Use:   "rank",
	Short: "Rank funding opportunities for an organization",
	Run: func(cmd *cobra.Command, _ []string) {
		rank(cmd)
	},
}

func init() {
	rootCmd.AddCommand(rankCmd)

	rankCmd.Flags().StringP("org", "o", "", "organization id whose profile is used for ranking")
	rankCmd.Flags().StringP("opportunities", "f", "", "JSON or YAML file with opportunities, '-' reads JSON from stdin")
	rankCmd.Flags().String("source-url", "", "base url of the opportunity listing api (overrides opportunities.http.base-url)")
	rankCmd.Flags().Bool("include-filtered", false, "list filtered opportunities after the ranked ones")
	rankCmd.Flags().String("output", outputTable, "output format: table or json")
	rankCmd.Flags().BoolP("yes", "y", false, "do not prompt for explanations after ranking")

	viper.BindPFlag("opportunities.http.base-url", rankCmd.Flags().Lookup("source-url"))
}

func rank(cmd *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	orgID, _ := cmd.Flags().GetString("org")
	file, _ := cmd.Flags().GetString("opportunities")
	includeFiltered, _ := cmd.Flags().GetBool("include-filtered")
	output, _ := cmd.Flags().GetString("output")
	yes, _ := cmd.Flags().GetBool("yes")

	if output != outputTable && output != outputJSON {
		logger.Fatal("unsupported output format", zap.String("output", output))
	}

	logger.Info("starting the grant-ranker", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config.redacted(), "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	eng, err := newEngine(ctx, config, logger)
	if err != nil {
		logger.Fatal("building the ranking engine", zap.Error(err))
	}
	defer eng.close()

	opps, err := loadOpportunities(ctx, file, config.Opportunities, logger)
	if err != nil {
		logger.Fatal("loading opportunities", zap.Error(err))
	}

	logger.Info("ranking opportunities", zap.String("org_id", orgID), zap.Int("count", len(opps)))

	batch, err := eng.ranker.Rank(ctx, orgID, opps, matching.RankOptions{IncludeFiltered: includeFiltered})
	if err != nil {
		if batch == nil {
			logger.Fatal("ranking failed", zap.Error(err))
		}
		logger.Warn("ranking interrupted, printing partial results", zap.Error(err))
	}

	for _, w := range batch.Warnings {
		logger.Warn(w)
	}

	if output == outputJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(batch); err != nil {
			logger.Fatal("writing results", zap.Error(err))
		}
		return
	}

	if err := printBatch(os.Stdout, batch); err != nil {
		logger.Fatal("writing results", zap.Error(err))
	}

	if yes || len(batch.Results) == 0 {
		return
	}

	if err := explainLoop(batch); err != nil {
		logger.Fatal("exiting", zap.Error(err))
	}
}

// printBatch renders the ranked results as a table.
func printBatch(out io.Writer, batch *matching.Batch) error {
	fmt.Fprintf(out, "Batch %s (%s), %d of %d opportunities scored\n\n",
		batch.ID, batch.Mode, batch.Stats.Scored, batch.Stats.Total)

	table := tablewriter.NewWriter(out)
	table.Header("#", "Score", "ID", "Title", "Note")
	for i, res := range batch.Results {
		row := []string{strconv.Itoa(i + 1), scoreCell(res), res.OpportunityID, res.Title, noteCell(res)}
		if err := table.Append(row); err != nil {
			return err
		}
	}
	return table.Render()
}

func scoreCell(res matching.MatchResult) string {
	if res.Filtered {
		return "-"
	}
	return fmt.Sprintf("%.1f", res.Score())
}

func noteCell(res matching.MatchResult) string {
	switch {
	case res.Filtered:
		return "filtered: " + res.FilterReason
	case len(res.MatchedKeywords) > 0:
		return "matched: " + strings.Join(res.MatchedKeywords, ", ")
	default:
		return ""
	}
}

// explainLoop lets the user pick results to explain until they choose Done.
func explainLoop(batch *matching.Batch) error {
	items := make([]string, 0, len(batch.Results)+1)
	items = append(items, promptDone)
	for _, res := range batch.Results {
		items = append(items, fmt.Sprintf("%s %s (%s)", res.OpportunityID, res.Title, scoreCell(res)))
	}

	for {
		prompt := promptui.Select{
			Label: "Explain an opportunity?",
			Items: items,
			Size:  10,
		}

		idx, _, err := prompt.Run()
		if err != nil {
			if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
				return nil
			}
			return err
		}
		if idx == 0 {
			return nil
		}

		fmt.Println(matching.Explain(batch.Results[idx-1]).String())
	}
}
