// Package integration contains the marketplace integration bounded context.
//
// Key concepts:
//   - EcommercePlatform: port for Shopee and TikTok Shop adapters
//   - PlatformError: typed failure (transient, auth, permanent) returned by adapters
//   - OrderSnapshot / ProductSnapshot: last known local state used for reconciliation
//   - CredentialStore: read-only access to per-tenant platform credentials
//
// Design Pattern: Ports & Adapters
//   - Ports (interfaces) are defined here in the domain layer
//   - Adapters (implementations) are in the infrastructure layer
package integration
