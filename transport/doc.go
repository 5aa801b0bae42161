// Package transport moves bearer credentials between clients and the
// service. API clients use a plain Authorization header; the first-party
// browser client uses a split cookie pair so the payload segment stays
// script-readable while the signature segment remains httpOnly, and an
// attacker holding only one segment cannot reconstruct a valid token.
package transport
