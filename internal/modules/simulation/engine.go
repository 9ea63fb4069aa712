package simulation

import (
	"fmt"
	"math"
	"runtime"
	"sync"

	"gonum.org/v1/gonum/mat"
)

// shardSize fixes how many simulations each RNG shard covers. Shard i always
// seeds its own generator with (seed, i) and writes into a disjoint offset
// range, so output is bit-identical for a given seed no matter how many
// workers execute the shards.
const shardSize = 1024

func numShardsFor(nSims int) int {
	return (nSims + shardSize - 1) / shardSize
}

// shardBounds returns the [start, end) simulation range covered by a shard
func shardBounds(shard, nSims int) (int, int) {
	start := shard * shardSize
	end := start + shardSize
	if end > nSims {
		end = nSims
	}
	return start, end
}

// runShards executes fn(shard) for every shard index on a bounded worker pool
func runShards(numShards int, fn func(shard int)) {
	workers := runtime.GOMAXPROCS(0)
	if workers > numShards {
		workers = numShards
	}
	if workers <= 1 {
		for i := 0; i < numShards; i++ {
			fn(i)
		}
		return
	}

	shardCh := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for shard := range shardCh {
				fn(shard)
			}
		}()
	}

	for i := 0; i < numShards; i++ {
		shardCh <- i
	}
	close(shardCh)
	wg.Wait()
}

// mvSampler draws correlated return vectors rv = mu + F*z where F satisfies
// F*F' = Sigma and z is a vector of standard normal draws
type mvSampler struct {
	mu     []float64
	factor *mat.Dense
}

// newMVSampler factorizes the covariance matrix. Cholesky is the fast path;
// if the matrix is only positive semi-definite (duplicated assets, short
// histories) it falls back to a symmetric eigendecomposition with negative
// eigenvalues clamped to zero.
func newMVSampler(mu []float64, cov *mat.SymDense) (*mvSampler, error) {
	n := len(mu)

	var chol mat.Cholesky
	if chol.Factorize(cov) {
		var lower mat.TriDense
		chol.LTo(&lower)
		return &mvSampler{mu: mu, factor: mat.DenseCopyOf(&lower)}, nil
	}

	var eig mat.EigenSym
	if !eig.Factorize(cov, true) {
		return nil, fmt.Errorf("failed to factorize covariance matrix")
	}

	values := eig.Values(nil)
	var vectors mat.Dense
	eig.VectorsTo(&vectors)

	factor := mat.NewDense(n, n, nil)
	for j := 0; j < n; j++ {
		scale := 0.0
		if values[j] > 0 {
			scale = math.Sqrt(values[j])
		}
		for i := 0; i < n; i++ {
			factor.Set(i, j, vectors.At(i, j)*scale)
		}
	}

	return &mvSampler{mu: mu, factor: factor}, nil
}

// sample fills rv with one correlated return vector from the z draws
func (s *mvSampler) sample(z, rv []float64) {
	n := len(s.mu)
	for i := 0; i < n; i++ {
		sum := s.mu[i]
		for j := 0; j < n; j++ {
			sum += s.factor.At(i, j) * z[j]
		}
		rv[i] = sum
	}
}
