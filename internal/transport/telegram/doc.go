// Package telegram implements transport.Sender on top of telebot.
//
// The bot never polls for updates; it only sends. Every API call passes through a
// token bucket so bursts (for example a log sink and a delivery at the same time)
// stay under Telegram's flood limits, and a single flood-wait response is retried.
package telegram
