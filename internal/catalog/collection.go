package catalog

import (
	"errors"
	"fmt"
	"strings"
)

const (
	collectionVulnerabilitiesNameConstant  = "vulnerabilities"
	collectionAuditorsNameConstant         = "auditors"
	collectionClientsNameConstant          = "clients"
	collectionVulnerabilitiesAliasConstant = "vulns"
	remoteFileExtensionConstant            = ".json"
	unknownCollectionMessageConstant       = "unknown collection"
	unknownCollectionTemplateConstant      = "%w: %q"
)

// Collection names one of the three synchronized record collections.
type Collection string

// Supported collections.
const (
	CollectionVulnerabilities Collection = Collection(collectionVulnerabilitiesNameConstant)
	CollectionAuditors        Collection = Collection(collectionAuditorsNameConstant)
	CollectionClients         Collection = Collection(collectionClientsNameConstant)
)

// ErrUnknownCollection indicates a collection name outside the supported set.
var ErrUnknownCollection = errors.New(unknownCollectionMessageConstant)

var collectionAliases = map[string]Collection{
	collectionVulnerabilitiesNameConstant:  CollectionVulnerabilities,
	collectionVulnerabilitiesAliasConstant: CollectionVulnerabilities,
	collectionAuditorsNameConstant:         CollectionAuditors,
	collectionClientsNameConstant:          CollectionClients,
}

// AllCollections returns every supported collection in a stable order.
func AllCollections() []Collection {
	return []Collection{CollectionVulnerabilities, CollectionAuditors, CollectionClients}
}

// ParseCollection resolves a user supplied collection name.
func ParseCollection(name string) (Collection, error) {
	normalizedName := strings.ToLower(strings.TrimSpace(name))
	collection, known := collectionAliases[normalizedName]
	if !known {
		return "", fmt.Errorf(unknownCollectionTemplateConstant, ErrUnknownCollection, name)
	}
	return collection, nil
}

// Validate reports ErrUnknownCollection for unsupported values.
func (collection Collection) Validate() error {
	switch collection {
	case CollectionVulnerabilities, CollectionAuditors, CollectionClients:
		return nil
	default:
		return fmt.Errorf(unknownCollectionTemplateConstant, ErrUnknownCollection, string(collection))
	}
}

// String returns the collection name.
func (collection Collection) String() string {
	return string(collection)
}

// RemoteFileName is the file holding the collection at the root of the remote repository.
func (collection Collection) RemoteFileName() string {
	return string(collection) + remoteFileExtensionConstant
}
