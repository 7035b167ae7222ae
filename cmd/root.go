package cmd

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/AbigailYuHaixin/Bayesian-Nonparametric-and-Meta-Analyses-of-COVID19-Studies/model"
)

// startupParams gathers every flag the subcommands accept, plus the two
// loggers all output flows through: out carries the human-readable report
// and trace carries machine-readable output (per-draw TSV, dot graphs) when
// a trace file is given.
type startupParams struct {
	verbose   bool
	dataFile  string
	traceFile string

	specFile    string
	samplerName string
	randomSeed  int64

	alpha float64
	mu0   float64
	tau1  float64
	tau2  float64

	burnIn    int
	saveCount int
	thinning  int
	display   int

	labelsFile   string
	dbFile       string
	runName      string
	writeDot     bool
	dotThreshold float64
	useMonitor   bool

	alphaList  string
	replicates int

	out        *log.Logger
	trace      *log.Logger
	traceClose io.Closer
}

// setupLoggers points out at stdout and trace at the trace file. With no
// trace file, trace output is dropped.
func (sp *startupParams) setupLoggers() error {
	sp.out = log.New(os.Stdout, "", 0)

	if len(sp.traceFile) > 0 {
		f, err := os.Create(sp.traceFile)
		if err != nil {
			return errors.Wrapf(err, "Could not CREATE trace file %s", sp.traceFile)
		}
		sp.traceClose = f
		sp.trace = log.New(f, "", 0)
	} else {
		sp.trace = log.New(io.Discard, "", 0)
	}

	return nil
}

func (sp *startupParams) closeLoggers() {
	if sp.traceClose != nil {
		sp.traceClose.Close()
		sp.traceClose = nil
	}
}

// verb logs to the main report only when --verbose is on.
func (sp *startupParams) verb(format string, args ...interface{}) {
	if sp.verbose {
		sp.out.Printf(format, args...)
	}
}

// loadSpec builds the effective run spec: the YAML file when one was given,
// the command-line flags laid over the defaults otherwise.
func (sp *startupParams) loadSpec() (*model.RunSpec, error) {
	if len(sp.specFile) > 0 {
		return model.NewRunSpecFromFile(sp.specFile)
	}

	spec := model.DefaultRunSpec()
	spec.Seed = sp.randomSeed
	spec.Sampler = sp.samplerName
	spec.Hyper.Alpha = sp.alpha
	spec.Hyper.Mu0 = sp.mu0
	spec.Hyper.Tau1 = sp.tau1
	spec.Hyper.Tau2 = sp.tau2
	spec.MCMC.BurnIn = sp.burnIn
	spec.MCMC.SaveCount = sp.saveCount
	spec.MCMC.Thinning = sp.thinning
	spec.MCMC.DisplayInterval = sp.display

	err := spec.Check()
	if err != nil {
		return nil, errors.Wrap(err, "Run options are not valid")
	}

	return spec, nil
}

// loadDataset reads the effects table named by --data.
func (sp *startupParams) loadDataset() (*model.Dataset, error) {
	if len(sp.dataFile) < 1 {
		return nil, errors.New("No dataset given - use --data")
	}

	return model.NewDatasetFromFile(model.EffectsReader{}, sp.dataFile)
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main(). It only needs to happen once
// to the rootCmd.
func Execute() {
	sp := &startupParams{}

	rootCmd := &cobra.Command{
		Use:   "bnpmeta",
		Short: "Bayesian nonparametric pooling of study effects",
		Long: `bnpmeta pools study-level effect estimates (for example logit-scale
seroprevalences) with a Dirichlet process mixture over latent study
effects, so the number of study subpopulations is inferred rather than
fixed in advance. Among other features:

  - A plain-text effects table reader (ID, effect, variance per study)
  - An explicit-location Gibbs sampler for the DP mixture
  - A collapsed variant that integrates cluster locations away
  - Posterior summaries built to survive label switching
`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().BoolVarP(&sp.verbose, "verbose", "v", false, "Verbose logging (default is much more parsimonious)")
	rootCmd.PersistentFlags().StringVarP(&sp.dataFile, "data", "d", "", "Effects table file to read")
	rootCmd.PersistentFlags().StringVarP(&sp.traceFile, "trace", "t", "", "Trace file for machine-readable output")

	addSamplingFlags := func(cmd *cobra.Command) {
		cmd.Flags().StringVarP(&sp.samplerName, "sampler", "s", model.GIBBS, "Sampler to use (gibbs or collapsed)")
		cmd.Flags().Int64VarP(&sp.randomSeed, "seed", "r", 1, "Random seed to use")
		cmd.Flags().Float64Var(&sp.mu0, "mu0", 0.0, "Base measure mean")
		cmd.Flags().Float64Var(&sp.tau1, "tau1", 2.0, "Gamma shape for the base precision")
		cmd.Flags().Float64Var(&sp.tau2, "tau2", 2.0, "Gamma rate for the base precision")
		cmd.Flags().IntVar(&sp.burnIn, "burnin", 1000, "Burn-in sweeps to discard")
		cmd.Flags().IntVar(&sp.saveCount, "draws", 500, "Draws to save")
		cmd.Flags().IntVar(&sp.thinning, "thinning", 5, "Sweeps between saved draws")
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run one MCMC chain and report the posterior",
		RunE: func(cmd *cobra.Command, args []string) error {
			err := sp.setupLoggers()
			if err != nil {
				return err
			}
			defer sp.closeLoggers()
			return RunSampling(sp)
		},
	}
	addSamplingFlags(runCmd)
	runCmd.Flags().StringVar(&sp.specFile, "spec", "", "YAML run spec (overrides the sampler/seed/hyperparameter/schedule flags)")
	runCmd.Flags().Float64VarP(&sp.alpha, "alpha", "a", 1.0, "DP concentration parameter")
	runCmd.Flags().IntVar(&sp.display, "display", 500, "Sweeps between progress lines (0 for none)")
	runCmd.Flags().StringVar(&sp.labelsFile, "labels", "", "Reference partition file to score the clustering against")
	runCmd.Flags().StringVar(&sp.dbFile, "db", "", "SQLite draw store to save the run to")
	runCmd.Flags().StringVar(&sp.runName, "name", "", "Run name in the draw store (default is the dataset name)")
	runCmd.Flags().BoolVar(&sp.writeDot, "dot", false, "Write the co-clustering graph in graphviz format")
	runCmd.Flags().Float64Var(&sp.dotThreshold, "dot-threshold", 0.5, "Minimum co-clustering probability for a graph edge")
	runCmd.Flags().BoolVar(&sp.useMonitor, "monitor", false, "Serve chain progress over HTTP (expvar)")

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "Rerun the analysis across concentration values",
		RunE: func(cmd *cobra.Command, args []string) error {
			err := sp.setupLoggers()
			if err != nil {
				return err
			}
			defer sp.closeLoggers()
			return SweepAlpha(sp)
		},
	}
	addSamplingFlags(sweepCmd)
	sweepCmd.Flags().StringVar(&sp.alphaList, "alphas", "0.01,1,5", "Comma-separated concentration values to compare")
	sweepCmd.Flags().IntVar(&sp.replicates, "replicates", 2, "Replicate chains per concentration value")

	describeCmd := &cobra.Command{
		Use:   "describe",
		Short: "Validate a dataset and print descriptive statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			err := sp.setupLoggers()
			if err != nil {
				return err
			}
			defer sp.closeLoggers()
			return DescribeData(sp)
		},
	}
	describeCmd.Flags().Float64Var(&sp.mu0, "mu0", 0.0, "Base measure mean for the pooled readout")
	describeCmd.Flags().Float64Var(&sp.tau1, "tau1", 2.0, "Gamma shape for the base precision")
	describeCmd.Flags().Float64Var(&sp.tau2, "tau2", 2.0, "Gamma rate for the base precision")

	dotCmd := &cobra.Command{
		Use:   "dot",
		Short: "Render the co-clustering graph from a stored run",
		RunE: func(cmd *cobra.Command, args []string) error {
			err := sp.setupLoggers()
			if err != nil {
				return err
			}
			defer sp.closeLoggers()
			return DotOutput(sp)
		},
	}
	dotCmd.Flags().StringVar(&sp.dbFile, "db", "", "SQLite draw store to read")
	dotCmd.Flags().StringVar(&sp.runName, "name", "", "Run name to render (omit to list stored runs)")
	dotCmd.Flags().Float64Var(&sp.dotThreshold, "dot-threshold", 0.5, "Minimum co-clustering probability for a graph edge")
	dotCmd.MarkFlagRequired("db")

	rootCmd.AddCommand(runCmd, sweepCmd, describeCmd, dotCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
