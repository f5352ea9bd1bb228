// Package keycloak provides a client for the Keycloak admin REST API.
//
// The client authenticates with the client credentials grant against the
// realm's token endpoint and exposes the small slice of the admin API the
// verification flow needs: reading user representations, listing federated
// identities, and unlinking the Discord identity from an account.
package keycloak
