// Package markethours computes the UTC window during which an exchange
// worker should be running: [pre_open − 5min, post_close + 5min] on the
// exchange's local date, empty on local weekends. All functions are pure so
// the lifecycle controller can be tested against fixed instants.
package markethours
