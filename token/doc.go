// Package token parses console access tokens and extracts the identity and
// expiry claims the session coordinator and route guards depend on.
//
// The console is a pure client of the lending backend: tokens are issued
// server-side, so the default posture is claim extraction without signature
// verification. Deployments that pin the backend's keys can opt into HS256 or
// Ed25519 verification. [Issuer] exists for stub backends and tests only.
package token
