// Package threshold decides whether a sensor reading violates a
// per-device alerting band.
//
// Evaluate is a pure function over (value, threshold); it holds no
// state and touches no storage, so the synchronisation core can call
// it inline on every reading.
package threshold
