/*
Package notify is the subscription relay and notification sink: the
pub/sub channel between replicas and in-process observers (a reactive
scheduler, a debug logger, a test harness).

Notifications form a closed set of six kinds (pull, load, integrate,
commit, revert, reset); each carries the affected space and a set of
before/after changes. A sink is a plain function; it returns whether it
is done (to be pruned) after each call. A panicking sink is recovered,
logged, and kept — one broken observer must not take down the relay or
silently stop delivering to everyone else.
*/
package notify
