package preflight

import (
	"fmt"
	"sort"

	"transmute/internal/registry"
)

// CodecResults turns a discovery report into one result per provider:
// loaded providers pass, skipped providers fail with the load error.
func CodecResults(report registry.DiscoveryReport) []Result {
	results := make([]Result, 0, len(report.Loaded)+len(report.Skipped))
	for _, name := range report.Loaded {
		results = append(results, Result{Name: "Codec " + name, Passed: true, Detail: "loaded"})
	}

	skipped := make([]string, 0, len(report.Skipped))
	for name := range report.Skipped {
		skipped = append(skipped, name)
	}
	sort.Strings(skipped)
	for _, name := range skipped {
		results = append(results, Result{Name: "Codec " + name, Detail: fmt.Sprintf("skipped: %s", report.Skipped[name])})
	}
	return results
}
