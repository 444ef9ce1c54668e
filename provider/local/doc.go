// Package local implements auth.SessionStore on top of a SQL database.
//
// Accounts live in the garage_accounts table, passwords are stored as
// bcrypt hashes and sessions are HS256 signed JWTs. The store keeps a single
// process wide session, the same model a client side identity SDK exposes,
// and notifies its subscribers on every change.
package local
