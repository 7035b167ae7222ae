package cmd

import (
	"fmt"
	"log"

	"github.com/pkg/errors"

	"github.com/AbigailYuHaixin/Bayesian-Nonparametric-and-Meta-Analyses-of-COVID19-Studies/posterior"
	"github.com/AbigailYuHaixin/Bayesian-Nonparametric-and-Meta-Analyses-of-COVID19-Studies/store"
)

// TODO: optionally weight edge thickness by co-clustering probability

// DotOutput renders the co-clustering graph of a stored run in graphviz
// format. With no run name it lists the runs in the store instead.
func DotOutput(sp *startupParams) error {
	db, err := store.Open(sp.dbFile)
	if err != nil {
		return err
	}
	defer db.Close()

	if len(sp.runName) < 1 {
		names, err := db.ListRuns()
		if err != nil {
			return err
		}
		if len(names) < 1 {
			return errors.Errorf("Draw store %s has no runs", sp.dbFile)
		}

		sp.out.Printf("Stored runs in %s:\n", sp.dbFile)
		for _, n := range names {
			sp.out.Printf("  %s\n", n)
		}
		return nil
	}

	rec, err := db.LoadRun(sp.runName)
	if err != nil {
		return err
	}

	draws, err := db.LoadDraws(sp.runName)
	if err != nil {
		return err
	}
	sp.out.Printf("Run %s: %s sampler, seed %d, %d draws\n",
		rec.Name, rec.Sampler, rec.Seed, len(draws))

	summ, err := posterior.Summarize(draws, 0.95)
	if err != nil {
		return err
	}
	if summ.N != len(rec.StudyIDs) {
		return errors.Errorf("Run %s draws cover %d studies but the record lists %d",
			rec.Name, summ.N, len(rec.StudyIDs))
	}

	var target *log.Logger
	if len(sp.traceFile) > 0 {
		sp.out.Printf("Writing graph to trace file %v\n", sp.traceFile)
		target = sp.trace
	} else {
		target = sp.out
	}

	writeCoCluster(target, rec.StudyIDs, summ, sp.dotThreshold)

	return nil
}

// writeCoCluster emits a strict graphviz graph over the studies, with an
// edge for every pair whose co-clustering probability clears the threshold.
// Node labels carry the modal canonical cluster.
func writeCoCluster(target *log.Logger, ids []string, summ *posterior.Summary, threshold float64) {
	// Start graph
	target.Printf("strict graph G {\n")

	// Output studies
	for i, id := range ids {
		target.Printf("    %q [label=%q];\n", id, fmt.Sprintf("%s (%d)", id, summ.Labels[i]))
	}

	// Output links
	for i := 0; i < summ.N; i++ {
		for j := i + 1; j < summ.N; j++ {
			p := summ.CoCluster[i][j]
			if p >= threshold {
				target.Printf("    %q -- %q [label=\"%.2f\"];\n", ids[i], ids[j], p)
			}
		}
	}

	// Finish graph
	target.Printf("}\n")
}
