package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fogcitymarathoner/azure-batch-samples/internal/config"
	"github.com/fogcitymarathoner/azure-batch-samples/internal/samples"
	"github.com/fogcitymarathoner/azure-batch-samples/internal/staging"
	"github.com/fogcitymarathoner/azure-batch-samples/pkg/batch"
)

func newSampleCmd(s samples.Sample) *cobra.Command {
	return &cobra.Command{
		Use:   s.Name(),
		Short: s.Short(),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSample(cmd, s)
		},
	}
}

func runSample(cmd *cobra.Command, s samples.Sample) error {
	global, err := config.LoadGlobal(flagConfig)
	if err != nil {
		return err
	}
	if err := global.Validate(); err != nil {
		return fmt.Errorf("%s: %w", flagConfig, err)
	}

	samplePath := flagSampleConfig
	if samplePath == "" {
		samplePath = s.ConfigFile()
	}
	sampleCfg, err := config.LoadSample(samplePath, config.DefaultSample())
	if err != nil {
		return err
	}
	if err := sampleCfg.Validate(); err != nil {
		return fmt.Errorf("%s: %w", samplePath, err)
	}
	logger.Info("configuration", "sample", s.Name(), "global", global, "settings", sampleCfg)

	client, err := newBatchClient(global)
	if err != nil {
		return err
	}
	store, err := staging.NewAzureBlobStore(staging.AzureConfig{
		AccountName: global.StorageAccountName(),
		AccountKey:  global.Storage.AccountKey,
		AccountURL:  global.Storage.AccountURL,
		MaxRetries:  global.Batch.MaxRetries,
	})
	if err != nil {
		return err
	}

	env := samples.Env{
		Batch:       client,
		Stager:      staging.NewStager(store, logger),
		Out:         cmd.OutOrStdout(),
		Logger:      logger,
		ResourceDir: flagResources,
	}
	report, err := s.Run(cmd.Context(), env, sampleCfg)
	if err != nil {
		return fmt.Errorf("%s: %w", s.Name(), err)
	}
	logger.Info("sample finished", "sample", s.Name(), "job_id", report.JobID, "tasks", len(report.Tasks))
	return nil
}

// newBatchClient authenticates with the account key when one is configured
// and with the default Microsoft Entra credential chain otherwise.
func newBatchClient(g config.Global) (*batch.Client, error) {
	cfg := batch.DefaultConfig().WithRetries(
		g.Batch.MaxRetries, g.Batch.RetryDelay.Std(), g.Batch.MaxRetryDelay.Std())
	cfg.ServiceURL = g.Batch.ServiceURL
	if g.Batch.AccountKey != "" {
		cfg = cfg.WithSharedKey(g.Batch.AccountName, g.Batch.AccountKey)
	} else {
		cred, err := batch.NewDefaultCredential()
		if err != nil {
			return nil, err
		}
		cfg = cfg.WithCredential(cred)
	}
	return batch.NewClient(cfg, logger)
}
