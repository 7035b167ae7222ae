package main

import "github.com/AbigailYuHaixin/Bayesian-Nonparametric-and-Meta-Analyses-of-COVID19-Studies/cmd"

// TODO: checkpointing for chains (save/restore sampler state mid-run so long
//       burn-ins can be frozen and continued)

// TODO: split-Rhat across replicate chains in the sweep report

func main() {
	cmd.Execute()
}
