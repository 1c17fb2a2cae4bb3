// Package haproxy controls the local HAProxy service: configuration tests,
// restarts and version checks. Commands run through a Runner, which defaults
// to os/exec.
package haproxy
