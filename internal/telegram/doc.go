// Package telegram connects the relay to the Telegram Bot API.
//
// Bot long-polls updates and forwards messages from the configured admin to
// the command interpreter; everyone else is ignored. Client uploads videos to
// the target chat and implements the operator side of notifications,
// including checkpoint documents.
package telegram
