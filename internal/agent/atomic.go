package agent

import (
	"os"

	"repostack/internal/repository"
)

// applyAtomicLoadingPolicy switches composite repository loading to
// all-or-nothing semantics unless external configuration already decided.
//
// Historically a composite repository counted as loaded even when some of
// its children failed, which lets network or mirror outages threaten build
// reproducibility. The loader therefore treats composites atomically by
// default; individual repositories can still opt out with the
// atomic.loading=false descriptor property.
func applyAtomicLoadingPolicy() {
	if os.Getenv(repository.AtomicLoadingEnv) == "" {
		// Not set externally, apply our default.
		os.Setenv(repository.AtomicLoadingEnv, "true")
	}
}
