// Package dedupe rejects repeated submissions of the same form within a
// time window, so a double-clicked save sends one update.
package dedupe
