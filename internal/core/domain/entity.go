package domain

import (
	"fmt"
	"strings"
)

// EntityType is the Management API collection an id belongs to.
type EntityType string

const (
	EntityUsers             EntityType = "users"
	EntityClients           EntityType = "clients"
	EntityResourceServers   EntityType = "resource-servers"
	EntityDeviceCredentials EntityType = "device-credentials"
	EntityClientGrants      EntityType = "client-grants"
	EntityConnections       EntityType = "connections"
)

// EntityTypes lists every entity type that can be bulk deleted, in usage order.
var EntityTypes = []EntityType{
	EntityUsers,
	EntityClients,
	EntityResourceServers,
	EntityDeviceCredentials,
	EntityClientGrants,
	EntityConnections,
}

// ParseEntityType returns the EntityType named by s.
func ParseEntityType(s string) (EntityType, error) {
	for _, e := range EntityTypes {
		if string(e) == s {
			return e, nil
		}
	}
	return "", fmt.Errorf("unknown entity type %q", s)
}

// Valid reports whether e is one of EntityTypes.
func (e EntityType) Valid() bool {
	_, err := ParseEntityType(string(e))
	return err == nil
}

// Scope returns the OAuth scope needed to read and delete this entity type,
// e.g. "delete:resource_servers read:resource_servers".
func (e EntityType) Scope() string {
	s := strings.ReplaceAll(string(e), "-", "_")
	return "delete:" + s + " read:" + s
}

func (e EntityType) String() string {
	return string(e)
}

// TenantShortName returns the part of an Auth0 domain before its first dot,
// e.g. "acme" for "acme.eu.auth0.com".
func TenantShortName(tenantDomain string) string {
	short, _, _ := strings.Cut(tenantDomain, ".")
	return short
}
