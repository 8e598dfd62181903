// Command shell runs the IconicPlus client state core: the conversation
// store, auth session tracking, and the navigation state machine, exposed
// over REST and a WebSocket state stream.
package main
