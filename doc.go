/*
Package ddnsd keeps DNS records at a remote provider in sync with the
addresses of local network interfaces.

The building blocks are [Resolver] (where addresses come from),
[Provider] (where records live), and [Notifier] (who hears about
changes). [Reconcile] computes and applies the minimal set of provider
mutations for one sync cycle, and [Runner] schedules many independent
periodic tasks with staggered startup, graceful shutdown, and
configuration reload.
*/
package ddnsd
