package cli

import (
	"errors"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	modelPath  string
	outPath    string
	jobID      string
	reportsDir string
	round      uint64
)

func NewAggregateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "aggregate <update files or directories...>",
		Short: "Aggregate one round",
		Long: `Aggregate one round of agent updates into the global model.

Update files are .npy arrays (agent named after the file, one sample) or
.json / .cbor update envelopes. Agents are ordered by file name; the first
ones are the corrupt agents of a poisoning rule.

Examples:
  # Plain FedAvg
  fedguard aggregate --model global.npy --out global-next.npy updates/

  # Min-max attack against the coordinate-wise median
  FEDGUARD_RULE=poison_minmax FEDGUARD_DEFENSE=coord_median \
    fedguard aggregate --model global.npy --out global-next.npy updates/`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) == 0 || modelPath == "" || outPath == "" {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			files, err := updateFiles(args)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			if len(files) == 0 {
				logErrorCmd(*cmd, errors.New("no update files found"))

				return
			}
			envs, err := loadEnvelopes(files, round)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			model, err := loadModel(modelPath)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}

			if jobID == "" {
				jobID = uuid.NewString()
			}
			svc, err := newService(jobID, model, reportsDir)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}

			report, err := svc.AggregateRound(cmd.Context(), round, envs)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			snapshot, err := svc.GlobalModel(cmd.Context())
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			if err := saveModel(outPath, snapshot.Params); err != nil {
				logErrorCmd(*cmd, err)

				return
			}

			logJSONCmd(*cmd, map[string]any{
				"job_id": jobID,
				"report": report,
				"model":  outPath,
			})
		},
	}

	cmd.Flags().StringVar(&modelPath, "model", "", "global model parameters (.npy)")
	cmd.Flags().StringVar(&outPath, "out", "", "where to write the updated parameters (.npy)")
	cmd.Flags().StringVar(&jobID, "job", "", "job id used for reports (random when empty)")
	cmd.Flags().StringVar(&reportsDir, "reports", "", "directory to store round reports")
	cmd.Flags().Uint64Var(&round, "round", 1, "round number")

	return cmd
}
