// Package protocol defines the JSON bodies of the HTTP API and the messages pushed to
// the page over the websocket, including their parsing and validation.
package protocol
