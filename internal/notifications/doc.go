// Package notifications delivers relay events via pluggable notifiers.
//
// Render turns an Event and its Payload into a transport-neutral Message.
// NewService publishes to ntfy using the topic configured in config.toml and
// degrades to a no-op when no topic is set; the Telegram operator chat lives
// in the telegram package and plugs in through Multi.
//
// Async wraps any Service with a bounded queue and a single delivery
// goroutine so the pipeline never waits on a slow notifier.
package notifications
