// Package fl aggregates federated learning updates with honest and
// poisoning-robust rules, simulates attacks on them and applies the result
// to a global model.
//
// SignAgreement needs an ImportanceEstimator, which this module does not
// provide; callers wire their own, typically a Fisher information estimate
// from their training stack, and own the NetMovement accumulator.
package fl
