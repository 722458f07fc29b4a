// Package auth implements the account service: local registration, credential
// and OAuth sign-in, signed session tokens and the profile pages that consume
// them.
//
// Sign-in flow:
//   - UserProvider verifies a submitted identifier/password pair against the
//     UserStore, or accepts a verified OAuth profile and provisions a user for
//     unseen emails.
//   - Auther turns the resulting Identity into a signed JWT. MintClaims decides
//     which identity fields reach the token and ReconstructSession maps a
//     validated token back into a SessionView.
//   - RouteAuthenticator carries the token in an HTTP-only cookie and exposes
//     fiber middleware that loads the SessionView for protected routes.
//
// Provisioning:
//   - RegisterUserHandler creates password accounts. Emails and usernames are
//     lowercased before they are compared or stored.
//   - ProvisionUserHandler creates OAuth accounts with a username derived from
//     the email local part and EmailVerified set.
//
// Stores live in the repository sub package (MongoDB, SQL through Bun, and an
// in-memory store); the OAuth handshake lives in the social sub package.
package auth
