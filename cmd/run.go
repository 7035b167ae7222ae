package cmd

import (
	"context"
	"fmt"
	"log"
	"math"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/AbigailYuHaixin/Bayesian-Nonparametric-and-Meta-Analyses-of-COVID19-Studies/model"
	"github.com/AbigailYuHaixin/Bayesian-Nonparametric-and-Meta-Analyses-of-COVID19-Studies/posterior"
	"github.com/AbigailYuHaixin/Bayesian-Nonparametric-and-Meta-Analyses-of-COVID19-Studies/rand"
	"github.com/AbigailYuHaixin/Bayesian-Nonparametric-and-Meta-Analyses-of-COVID19-Studies/sampler"
	"github.com/AbigailYuHaixin/Bayesian-Nonparametric-and-Meta-Analyses-of-COVID19-Studies/store"
)

// RunSampling loads the dataset, runs one chain to completion, and prints
// the posterior report. SIGINT aborts the run cleanly at the next sweep
// boundary (no partial results are reported or saved).
func RunSampling(sp *startupParams) error {
	spec, err := sp.loadSpec()
	if err != nil {
		return err
	}

	ds, err := sp.loadDataset()
	if err != nil {
		return err
	}

	sp.out.Printf("Dataset %s: %d studies\n", ds.Name, ds.Len())
	sp.out.Printf("Sampler %s, seed %d\n", spec.Sampler, spec.Seed)
	sp.out.Printf("Prior: alpha=%.4f mu0=%.4f tau1=%.4f tau2=%.4f\n",
		spec.Hyper.Alpha, spec.Hyper.Mu0, spec.Hyper.Tau1, spec.Hyper.Tau2)
	sp.out.Printf("Schedule: %d burn-in + %d draws x %d thinning (%d sweeps)\n",
		spec.MCMC.BurnIn, spec.MCMC.SaveCount, spec.MCMC.Thinning, spec.MCMC.TotalSweeps())

	gen, err := rand.NewGenerator(spec.Seed)
	if err != nil {
		return err
	}

	samp, err := sampler.New(spec.Sampler, gen, ds, spec.Hyper, sampler.InitShared)
	if err != nil {
		return err
	}

	chain, err := sampler.NewChain(samp, spec.MCMC)
	if err != nil {
		return err
	}

	var mon *monitor
	if sp.useMonitor {
		mon = &monitor{}
		err = mon.Start()
		if err != nil {
			return err
		}
		defer mon.Stop()

		mon.Alpha.Set(spec.Hyper.Alpha)
		mon.BurnIn.Set(int64(spec.MCMC.BurnIn))
		mon.SaveCount.Set(int64(spec.MCMC.SaveCount))
		mon.Thinning.Set(int64(spec.MCMC.Thinning))
	}

	start := time.Now()
	chain.OnProgress = func(p sampler.Progress) {
		phase := "burn-in"
		if p.BurnedIn {
			phase = "sample "
		}

		line := fmt.Sprintf("%s %7d/%7d | K %2d | lambda0 %7.4f | LL %11.4f | draws %d",
			phase, p.Sweep, p.TotalSweeps, p.ClusterCount, p.BasePrec, p.LogLike, p.SavedDraws)
		if p.TraceReady {
			line += fmt.Sprintf(" | K window %.2f -> %.2f", p.TraceOlder, p.TraceNewer)
		}
		sp.out.Printf("%s\n", line)

		if mon != nil {
			mon.Update(p, time.Since(start).Seconds())
		}
	}

	ctx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stopSignals()

	err = chain.Run(ctx)
	if err != nil {
		return err
	}
	sp.out.Printf("Run complete: %d sweeps in %v\n",
		chain.SweepCount, time.Since(start).Round(time.Millisecond))

	if len(sp.traceFile) > 0 {
		writeDrawTrace(sp.trace, chain.Draws)
		sp.out.Printf("Wrote draw trace to %s\n", sp.traceFile)
	}

	summ, err := posterior.Summarize(chain.Draws, 0.95)
	if err != nil {
		return err
	}

	reportSummary(sp, ds, summ)

	if sp.verbose {
		err = reportPredictive(sp, ds, spec.Hyper, chain.Draws)
		if err != nil {
			return err
		}
	}

	if len(sp.labelsFile) > 0 {
		part, err := model.NewPartitionFromFile(model.EffectsReader{}, sp.labelsFile)
		if err != nil {
			return err
		}

		ref, err := part.Align(ds)
		if err != nil {
			return err
		}

		ri, err := posterior.RandIndex(summ.Labels, ref)
		if err != nil {
			return err
		}
		sp.out.Printf("\nRand index vs reference partition: %.4f\n", ri)
	}

	if sp.writeDot {
		sp.out.Printf("\n")
		writeCoCluster(sp.out, ds.IDs(), summ, sp.dotThreshold)
	}

	if len(sp.dbFile) > 0 {
		name := sp.runName
		if len(name) < 1 {
			name = ds.Name
		}

		db, err := store.Open(sp.dbFile)
		if err != nil {
			return err
		}
		defer db.Close()

		rec := &store.RunRecord{
			Name:     name,
			Sampler:  spec.Sampler,
			Seed:     spec.Seed,
			Hyper:    spec.Hyper,
			Plan:     spec.MCMC,
			StudyIDs: ds.IDs(),
		}

		err = db.SaveRun(rec, chain.Draws)
		if err != nil {
			return err
		}
		sp.out.Printf("\nSaved run %s (%d draws) to %s\n", name, len(chain.Draws), sp.dbFile)
	}

	return nil
}

// reportSummary prints the per-study posterior table and the cluster-count
// distribution.
func reportSummary(sp *startupParams, ds *model.Dataset, summ *posterior.Summary) {
	sp.out.Printf("\nPer-study posterior (central %.0f%% intervals):\n", summ.Level*100.0)
	sp.out.Printf("%-16s %10s %10s %22s %5s  %s\n",
		"Study", "Effect", "PostMean", "Interval", "Label", "Closest")

	for i, st := range ds.Studies {
		partnerID := "-"
		partner, prob := closestPartner(summ, i)
		if partner >= 0 {
			partnerID = fmt.Sprintf("%s (%.2f)", ds.Studies[partner].ID, prob)
		}

		sp.out.Printf("%-16s %10.4f %10.4f [%9.4f, %9.4f] %5d  %s\n",
			st.ID, st.Effect, summ.Means[i], summ.Lower[i], summ.Upper[i],
			summ.Labels[i], partnerID)
	}

	sp.out.Printf("\nPosterior cluster count (mean %.2f):\n", summ.MeanK)

	ks := make([]int, 0, len(summ.KDist))
	for k := range summ.KDist {
		ks = append(ks, k)
	}
	sort.Ints(ks)
	for _, k := range ks {
		sp.out.Printf("  K=%2d: %5.3f\n", k, summ.KDist[k])
	}
}

// closestPartner returns the study most often sharing a cluster with i.
func closestPartner(summ *posterior.Summary, i int) (int, float64) {
	best, bestP := -1, 0.0
	for j := 0; j < summ.N; j++ {
		if j == i {
			continue
		}
		if summ.CoCluster[i][j] > bestP {
			best, bestP = j, summ.CoCluster[i][j]
		}
	}
	return best, bestP
}

// reportPredictive prints the predictive density for a new study over a
// small grid spanning the observed effects, using the median study variance.
func reportPredictive(sp *startupParams, ds *model.Dataset, h model.Hyperparameters, draws []*sampler.Draw) error {
	lo, hi := ds.Studies[0].Effect, ds.Studies[0].Effect
	vs := make([]float64, 0, ds.Len())
	for _, st := range ds.Studies {
		lo = math.Min(lo, st.Effect)
		hi = math.Max(hi, st.Effect)
		vs = append(vs, st.Variance)
	}
	sort.Float64s(vs)
	v := vs[len(vs)/2]

	pad := (hi - lo) * 0.25
	if pad <= 0.0 {
		pad = 1.0
	}
	lo, hi = lo-pad, hi+pad

	sp.out.Printf("\nPredictive density for a new study (v=%.4g):\n", v)

	const gridN = 9
	for g := 0; g < gridN; g++ {
		y := lo + (hi-lo)*float64(g)/float64(gridN-1)
		dens, err := posterior.PredictiveDensity(draws, h, y, v)
		if err != nil {
			return err
		}
		sp.out.Printf("  y=%9.4f: %.5f\n", y, dens)
	}

	return nil
}

// writeDrawTrace emits one TSV row per saved draw for post-hoc analysis.
func writeDrawTrace(target *log.Logger, draws []*sampler.Draw) {
	target.Printf("draw\tsweep\tk\tlambda0\tloglike\tassignments\n")

	for _, d := range draws {
		labels := make([]string, len(d.Assignments))
		for i, a := range d.Assignments {
			labels[i] = strconv.Itoa(a)
		}
		target.Printf("%d\t%d\t%d\t%g\t%g\t%s\n",
			d.Index, d.Sweep, d.ClusterCount, d.BasePrec, d.LogLike,
			strings.Join(labels, ","))
	}
}
