// Package callback connects a Client to a user agent running outside the
// process, typically the system browser.
//
// Server is a loopback HTTP listener on the host and port of the configured
// redirect URL. Every request it receives is reported to the client as a
// navigation; redirect and cancel URLs are absorbed and answered with a short
// page telling the user to return to the application, anything else is 404.
//
// Navigators hand the authorization URL to the user: PrintNavigator writes it
// out, CommandNavigator runs an opener such as xdg-open.
package callback
