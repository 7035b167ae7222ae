package cmd

import (
	"expvar"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/pkg/errors"

	"github.com/AbigailYuHaixin/Bayesian-Nonparametric-and-Meta-Analyses-of-COVID19-Studies/sampler"
)

type monitor struct {
	info    *expvar.Map
	stopped chan struct{}
	server  *http.Server

	Alpha       *expvar.Float
	BurnIn      *expvar.Int
	SaveCount   *expvar.Int
	Thinning    *expvar.Int
	Sweeps      *expvar.Int
	TotalSweeps *expvar.Int
	SavedDraws  *expvar.Int
	Clusters    *expvar.Int
	BasePrec    *expvar.Float
	LogLike     *expvar.Float
	RunTime     *expvar.Float
}

// Start begins the monitor
func (m *monitor) Start() error {
	if m.info != nil {
		return errors.Errorf("BUG: You may only start the process monitor once")
	}

	m.info = expvar.NewMap("bnpmeta-progress")
	m.stopped = make(chan struct{})
	m.server = &http.Server{
		Addr: ":8000", // TODO: allow override in call to start
	}

	// Help the user and redirect to the only thing currently available:
	// the handler from the expvar package
	http.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/debug/vars", http.StatusTemporaryRedirect)
	})

	m.Alpha = expvar.NewFloat("Alpha")
	m.BurnIn = expvar.NewInt("Burn-In")
	m.SaveCount = expvar.NewInt("Save-Count")
	m.Thinning = expvar.NewInt("Thinning")
	m.Sweeps = expvar.NewInt("Sweeps")
	m.TotalSweeps = expvar.NewInt("Total-Sweeps")
	m.SavedDraws = expvar.NewInt("Saved-Draws")
	m.Clusters = expvar.NewInt("Cluster-Count")
	m.BasePrec = expvar.NewFloat("Base-Precision")
	m.LogLike = expvar.NewFloat("Log-Likelihood")
	m.RunTime = expvar.NewFloat("Run-Time")

	// Actual server that will close the stopped channel on exit
	started := make(chan struct{})
	go func() {
		defer close(m.stopped)
		fmt.Fprintf(os.Stderr, "HTTP now available at %v (see debug/vars/)\n", m.server.Addr)
		close(started)
		m.server.ListenAndServe()
	}()

	<-started
	return nil
}

// Update publishes the latest chain progress.
func (m *monitor) Update(p sampler.Progress, elapsed float64) {
	m.Sweeps.Set(int64(p.Sweep))
	m.TotalSweeps.Set(int64(p.TotalSweeps))
	m.SavedDraws.Set(int64(p.SavedDraws))
	m.Clusters.Set(int64(p.ClusterCount))
	m.BasePrec.Set(p.BasePrec)
	m.LogLike.Set(p.LogLike)
	m.RunTime.Set(elapsed)
}

func (m *monitor) Stop() {
	if m.info == nil {
		return
	}

	m.server.Close()

	select {
	case <-m.stopped:
		fmt.Fprintf(os.Stderr, "HTTP Info Stopped\n")
	case <-time.After(2 * time.Second):
		fmt.Fprintf(os.Stderr, "HTTP would NOT stop: just continuing on\n")
	}
}
