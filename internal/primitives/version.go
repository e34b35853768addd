// Package primitives provides versioning utilities for DocumentConfig.
package primitives

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
)

// ComputeVersion returns the declared version or a content hash of the document.
// Go guards and Go actions are not part of the hash.
func ComputeVersion(doc *DocumentConfig) string {
	if doc == nil {
		return ""
	}
	if doc.Version != "" {
		return doc.Version
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return "unversioned"
	}

	hash := sha256.Sum256(data)
	return fmt.Sprintf("%x", hash[:8])
}
