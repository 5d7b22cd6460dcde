// Package chain executes a multi-step conversion path as a single converter.
//
// Each step reads the previous step's output; intermediate artifacts live in
// a private chain-* directory under the configured work dir that is removed
// when Convert returns, whatever the outcome. The first failing step aborts
// the chain and the failure names the step index and pair.
package chain
