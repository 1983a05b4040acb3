// Package dashboard keeps the dashboard's metrics, incident list and
// time series current.
//
// Refresh produces one snapshot for a given data-source mode. In snapshot
// mode it returns the fallback dataset without touching the network. In
// live mode it fetches the three endpoints concurrently; if any of them
// fails the whole cycle fails and the fallback dataset is returned together
// with the error, so a caller always has something to show.
//
// Controller runs Refresh on a fixed interval, on demand and whenever the
// mode changes. Cycles may overlap. Each cycle is numbered when it starts
// and its result is applied only if no later cycle has been applied yet.
// Once the context passed to Run is done, no further result is applied.
//
// DetailView covers the single-incident page: loading one incident with
// the same live/fallback behaviour, and marking it resolved.
package dashboard
