// Package identity implements the identity-provider collaborator consumed
// by the auth session controller.
//
// Two implementations are provided:
//   - Client: REST client for a hosted auth service (gotrue-style
//     /user and /logout endpoints), with a polling change stream
//   - Local: in-process email/password provider for development and tests
//
// Both expose the same narrow surface: query the current session, subscribe
// to session changes (returning a disposer), and sign out. Protocol details
// such as token refresh stay inside this package; the core only sees
// types.SessionRecord values.
package identity
